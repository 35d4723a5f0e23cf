package model

import "time"

type Favorite struct {
	UserUID   string    `gorm:"column:user_uid;size:128;not null;primaryKey"`
	ListingID uint64    `gorm:"column:listing_id;not null;primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Favorite) TableName() string {
	return "favorites"
}
