package model

import "time"

type GenderPreference string

const (
	GenderAny    GenderPreference = "Any"
	GenderMale   GenderPreference = "Male"
	GenderFemale GenderPreference = "Female"
)

func (g GenderPreference) Valid() bool {
	switch g {
	case GenderAny, GenderMale, GenderFemale:
		return true
	}
	return false
}

type Listing struct {
	ID               uint64           `gorm:"primaryKey;autoIncrement"`
	Title            string           `gorm:"size:120;not null"`
	Location         string           `gorm:"size:255;not null"`
	Latitude         *float64         `gorm:"column:latitude"`
	Longitude        *float64         `gorm:"column:longitude"`
	Rent             float64          `gorm:"not null"`
	Description      string           `gorm:"type:text"`
	GenderPreference GenderPreference `gorm:"column:gender_preference;size:16;not null;default:Any"`
	AvailableFrom    time.Time        `gorm:"column:available_from;not null"`
	AvailableTo      *time.Time       `gorm:"column:available_to"`
	OwnerUID         string           `gorm:"column:owner_uid;size:128;not null;index"`
	Images           []ListingImage   `gorm:"foreignKey:ListingID"`
	CreatedAt        time.Time        `gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}

// Coordinates reports the listing position when both latitude and longitude are set.
func (l Listing) Coordinates() (lat, lng float64, ok bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

func (l Listing) ImageURLs() []string {
	urls := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		urls = append(urls, img.ImageURL)
	}
	return urls
}
