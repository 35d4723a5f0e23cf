package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/leaselink-backend/internal/config"
	"github.com/shinyyama/leaselink-backend/internal/db"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/repository"
	"gorm.io/gorm"
)

const seedOwnerUID = "seed-lister"

type seedListing struct {
	Title    string
	Location string
	Lat, Lng float64
	Rent     float64
	Gender   model.GenderPreference
	Desc     string
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadSeed()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	gdb, err := db.Connect(&cfg.DB)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	canSeed, err := shouldSeed(ctx, gdb, cfg.ForceSeed)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Printf("listings already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	if cfg.ForceSeed {
		ids, err := repository.NewListingRepository(gdb).DeleteByOwner(ctx, seedOwnerUID)
		if err != nil {
			return fmt.Errorf("clear seed listings: %w", err)
		}
		log.Printf("removed %d previous seed listings", len(ids))
	}

	listings := buildSeedListings(time.Now().UTC())
	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range listings {
			if err := tx.Create(&listings[i]).Error; err != nil {
				return fmt.Errorf("insert listing %q: %w", listings[i].Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("seeded %d listings", len(listings))
	return nil
}

func shouldSeed(ctx context.Context, gdb *gorm.DB, force bool) (bool, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Listing{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count listings: %w", err)
	}
	return cnt == 0 || force, nil
}

func buildSeedListings(now time.Time) []model.Listing {
	samples := []seedListing{
		{"Sunny room near BU", "Allston, MA", 42.3539, -71.1337, 1150, model.GenderAny, "Furnished bedroom in a 3BR apartment, utilities included."},
		{"Summer sublet by Fenway", "Fenway, Boston, MA", 42.3467, -71.0972, 1400, model.GenderFemale, "Female roommates, walk to Northeastern and the Green Line."},
		{"Studio in Cambridge", "Cambridge, MA", 42.3736, -71.1097, 1850, model.GenderAny, "Whole studio, close to Harvard Square. Laundry in building."},
		{"Shared room in Somerville", "Somerville, MA", 42.3876, -71.0995, 850, model.GenderMale, "Bunk in a shared room, five minutes to Davis."},
		{"Private room in Mission Hill", "Mission Hill, Boston, MA", 42.3316, -71.1036, 1250, model.GenderAny, "Quiet street, near the hospitals. Available all summer."},
		{"Brookline two-bedroom share", "Brookline, MA", 42.3318, -71.1212, 1300, model.GenderAny, "One room in a 2BR with a grad student. Parking spot included."},
	}
	out := make([]model.Listing, 0, len(samples))
	for i, s := range samples {
		lat, lng := s.Lat, s.Lng
		from := now.AddDate(0, 0, 7*(i+1)).Truncate(24 * time.Hour)
		to := from.AddDate(0, 3, 0)
		out = append(out, model.Listing{
			Title:            s.Title,
			Location:         s.Location,
			Latitude:         &lat,
			Longitude:        &lng,
			Rent:             s.Rent,
			Description:      s.Desc,
			GenderPreference: s.Gender,
			AvailableFrom:    from,
			AvailableTo:      &to,
			OwnerUID:         seedOwnerUID,
			Images: []model.ListingImage{
				{ImageURL: picsumURL(i+1, 1), Position: 0},
				{ImageURL: picsumURL(i+1, 2), Position: 1},
			},
		})
	}
	return out
}

func picsumURL(listingIndex, k int) string {
	return fmt.Sprintf("https://picsum.photos/seed/leaselink-%d-%d/800/600", listingIndex, k)
}
