package repository

import (
	"context"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FavoriteRepository interface {
	Exists(ctx context.Context, userUID string, listingID uint64) (bool, error)
	Add(ctx context.Context, userUID string, listingID uint64) error
	Remove(ctx context.Context, userUID string, listingID uint64) (bool, error)
	ListListingIDs(ctx context.Context, userUID string) ([]uint64, error)
	DeleteByUser(ctx context.Context, userUID string) error
}

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Exists(ctx context.Context, userUID string, listingID uint64) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Where("user_uid = ? AND listing_id = ?", userUID, listingID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Add is idempotent: favoriting an already favorited listing is a no-op.
func (r *favoriteRepository) Add(ctx context.Context, userUID string, listingID uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	fav := model.Favorite{UserUID: userUID, ListingID: listingID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
}

func (r *favoriteRepository) Remove(ctx context.Context, userUID string, listingID uint64) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Where("user_uid = ? AND listing_id = ?", userUID, listingID).
		Delete(&model.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *favoriteRepository) ListListingIDs(ctx context.Context, userUID string) ([]uint64, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var ids []uint64
	if err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Where("user_uid = ?", userUID).
		Order("created_at DESC, listing_id DESC").
		Pluck("listing_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *favoriteRepository) DeleteByUser(ctx context.Context, userUID string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Where("user_uid = ?", userUID).Delete(&model.Favorite{}).Error
}
