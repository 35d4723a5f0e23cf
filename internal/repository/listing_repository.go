package repository

import (
	"context"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"gorm.io/gorm"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	FindByID(ctx context.Context, id uint64) (*model.Listing, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Listing, error)
	List(ctx context.Context) ([]model.Listing, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.Listing, error)
	// Update saves scalar fields; images are replaced only when images is non-nil.
	Update(ctx context.Context, listing *model.Listing, images []string) error
	Delete(ctx context.Context, id uint64) error
	DeleteByOwner(ctx context.Context, ownerUID string) ([]uint64, error)
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func (r *listingRepository) Create(ctx context.Context, listing *model.Listing) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	for i := range listing.Images {
		listing.Images[i].Position = i
	}
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *listingRepository) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var listing model.Listing
	if err := r.db.WithContext(ctx).Preload("Images", orderedImages).First(&listing, id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}
	var list []model.Listing
	if err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) List(ctx context.Context) ([]model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Listing
	if err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) ListByOwner(ctx context.Context, ownerUID string) ([]model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Listing
	if err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("owner_uid = ?", ownerUID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) Update(ctx context.Context, listing *model.Listing, images []string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(listing).Select(
			"title", "location", "latitude", "longitude", "rent", "description",
			"gender_preference", "available_from", "available_to", "updated_at",
		).Updates(listing).Error; err != nil {
			return err
		}
		if images == nil {
			return nil
		}
		if err := tx.Where("listing_id = ?", listing.ID).Delete(&model.ListingImage{}).Error; err != nil {
			return err
		}
		listing.Images = make([]model.ListingImage, 0, len(images))
		for i, u := range images {
			listing.Images = append(listing.Images, model.ListingImage{ListingID: listing.ID, ImageURL: u, Position: i})
		}
		if len(listing.Images) == 0 {
			return nil
		}
		return tx.Create(&listing.Images).Error
	})
}

func (r *listingRepository) Delete(ctx context.Context, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteListings(tx, []uint64{id})
	})
}

func (r *listingRepository) DeleteByOwner(ctx context.Context, ownerUID string) ([]uint64, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var ids []uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Listing{}).Where("owner_uid = ?", ownerUID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return deleteListings(tx, ids)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// deleteListings removes listings together with their images and favorites.
func deleteListings(tx *gorm.DB, ids []uint64) error {
	if err := tx.Where("listing_id IN ?", ids).Delete(&model.ListingImage{}).Error; err != nil {
		return err
	}
	if err := tx.Where("listing_id IN ?", ids).Delete(&model.Favorite{}).Error; err != nil {
		return err
	}
	res := tx.Where("id IN ?", ids).Delete(&model.Listing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
