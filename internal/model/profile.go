package model

import "time"

// Profile is one-to-one with an authenticated user; UID is the identity provider's user id.
type Profile struct {
	UID             string    `gorm:"column:uid;primaryKey;size:128"`
	Name            string    `gorm:"size:120"`
	Age             int       `gorm:"not null;default:0"`
	Gender          string    `gorm:"size:16"`
	ProfileImageURL *string   `gorm:"column:profile_image_url;size:512"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Profile) TableName() string {
	return "profiles"
}
