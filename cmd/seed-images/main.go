package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/leaselink-backend/internal/config"
	"github.com/shinyyama/leaselink-backend/internal/db"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/storage"
	"gorm.io/gorm"
)

const (
	photosPerListing = 2
	placeholderHost  = "https://picsum.photos"
)

// ImageUploader stores one image and returns its public URL.
type ImageUploader interface {
	PutListingImage(ctx context.Context, r io.Reader, contentType, filename string) (string, error)
}

type backfill struct {
	db       *gorm.DB
	uploader ImageUploader
	client   *http.Client
	baseURL  string
	// replace re-uploads listings whose photos still point at the placeholder host.
	replace bool
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadSeed()
	if err != nil {
		log.Fatalf("failed to parse env: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	gdb, err := db.Connect(&cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("failed to get sql db: %v", err)
	}
	defer sqlDB.Close()

	gcs, err := storage.Open(ctx, cfg.ListingImagesBucket, "")
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer gcs.Close()

	b := &backfill{
		db:       gdb,
		uploader: gcs,
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  placeholderHost,
		replace:  cfg.UpdateImages,
	}
	n, err := b.run(ctx)
	if err != nil {
		log.Fatalf("seed-images failed: %v", err)
	}
	log.Printf("seed-images completed successfully listings=%d", n)
}

// targets returns listings with no photos, plus placeholder-only listings in replace mode.
func (b *backfill) targets(ctx context.Context) ([]model.Listing, error) {
	var listings []model.Listing
	if err := b.db.WithContext(ctx).Preload("Images").Order("id ASC").Find(&listings).Error; err != nil {
		return nil, err
	}
	out := listings[:0]
	for _, l := range listings {
		if len(l.Images) == 0 || (b.replace && allPlaceholders(l.Images, b.baseURL)) {
			out = append(out, l)
		}
	}
	return out, nil
}

func allPlaceholders(images []model.ListingImage, base string) bool {
	for _, img := range images {
		if !strings.HasPrefix(img.ImageURL, base) {
			return false
		}
	}
	return true
}

func (b *backfill) run(ctx context.Context) (int, error) {
	listings, err := b.targets(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("backfill mode: target listings=%d (replace=%v)", len(listings), b.replace)
	done := 0
	for _, l := range listings {
		log.Printf("[listing %d] start title=%s", l.ID, l.Title)
		urls := make([]string, 0, photosPerListing)
		for k := 1; k <= photosPerListing; k++ {
			seed := fmt.Sprintf("listing-%d-%d", l.ID, k)
			data, err := b.fetchPlaceholder(ctx, seed)
			if err != nil {
				log.Printf("[listing %d] placeholder failed: %v", l.ID, err)
				break
			}
			u, err := b.uploader.PutListingImage(ctx, bytes.NewReader(data), "image/jpeg", seed+".jpg")
			if err != nil {
				log.Printf("[listing %d] upload failed: %v", l.ID, err)
				break
			}
			urls = append(urls, u)
		}
		if len(urls) == 0 {
			continue
		}
		if err := replaceImages(ctx, b.db, l.ID, urls); err != nil {
			log.Printf("[listing %d] db update failed: %v", l.ID, err)
			continue
		}
		log.Printf("[listing %d] db update success images=%d", l.ID, len(urls))
		done++
	}
	return done, nil
}

func (b *backfill) fetchPlaceholder(ctx context.Context, seed string) ([]byte, error) {
	u := fmt.Sprintf("%s/seed/%s/800/600", b.baseURL, url.PathEscape(seed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("placeholder status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func replaceImages(ctx context.Context, gdb *gorm.DB, listingID uint64, urls []string) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", listingID).Delete(&model.ListingImage{}).Error; err != nil {
			return err
		}
		for i, u := range urls {
			img := model.ListingImage{ListingID: listingID, ImageURL: u, Position: i}
			if err := tx.Create(&img).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
