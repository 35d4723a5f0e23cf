package model

import "time"

type ListingImage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ListingID uint64    `gorm:"column:listing_id;not null;index:idx_listing_images_listing_id"`
	ImageURL  string    `gorm:"column:image_url;size:512;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}
