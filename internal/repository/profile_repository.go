package repository

import (
	"context"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"gorm.io/gorm"
)

type ProfileRepository interface {
	FindOrCreate(ctx context.Context, uid string) (*model.Profile, error)
	FindByUID(ctx context.Context, uid string) (*model.Profile, error)
	FindByUIDs(ctx context.Context, uids []string) (map[string]model.Profile, error)
	Update(ctx context.Context, p *model.Profile) error
	Delete(ctx context.Context, uid string) error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindOrCreate(ctx context.Context, uid string) (*model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	p := model.Profile{UID: uid}
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).FirstOrCreate(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) FindByUID(ctx context.Context, uid string) (*model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) FindByUIDs(ctx context.Context, uids []string) (map[string]model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[string]model.Profile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var list []model.Profile
	if err := r.db.WithContext(ctx).Where("uid IN ?", uids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.UID] = p
	}
	return out, nil
}

func (r *profileRepository) Update(ctx context.Context, p *model.Profile) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *profileRepository) Delete(ctx context.Context, uid string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Where("uid = ?", uid).Delete(&model.Profile{}).Error
}
