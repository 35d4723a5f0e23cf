package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shinyyama/leaselink-backend/internal/geo"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/repository"
	"golang.org/x/sync/singleflight"
)

// ListingCache is the read-through store in front of the listings table.
type ListingCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
}

// ImageStore persists uploaded images and returns their public URLs.
type ImageStore interface {
	PutListingImage(ctx context.Context, r io.Reader, contentType, filename string) (string, error)
	PutProfileImage(ctx context.Context, r io.Reader, contentType, filename string) (string, error)
}

type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type ListingInput struct {
	Title            string
	Location         string
	Description      string
	Latitude         *float64
	Longitude        *float64
	Rent             float64
	GenderPreference string
	AvailableFrom    *time.Time
	AvailableTo      *time.Time
	// Images replaces the listing's images when non-nil.
	Images []string
}

const (
	maxTitleLen       = 120
	maxListingImages  = 10
	maxImageUploadLen = 10 << 20
)

type ListingService interface {
	Create(ctx context.Context, ownerUID string, in ListingInput) (*model.Listing, error)
	Get(ctx context.Context, id uint64) (*model.Listing, error)
	// List returns every listing ranked by distance from ref; ref == nil keeps insertion order.
	List(ctx context.Context, ref *geo.Point) ([]geo.Ranked[model.Listing], error)
	ListMine(ctx context.Context, ownerUID string) ([]model.Listing, error)
	Update(ctx context.Context, uid string, id uint64, in ListingInput) (*model.Listing, error)
	Delete(ctx context.Context, uid string, id uint64) error
	UploadImages(ctx context.Context, uid string, files []Upload) ([]string, error)
}

type listingService struct {
	repo   repository.ListingRepository
	cache  ListingCache
	images ImageStore
	group  singleflight.Group
}

// NewListingService wires the listing use cases. cache and images may be nil.
func NewListingService(repo repository.ListingRepository, cache ListingCache, images ImageStore) ListingService {
	return &listingService{repo: repo, cache: cache, images: images}
}

func listingKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *listingService) Create(ctx context.Context, ownerUID string, in ListingInput) (*model.Listing, error) {
	if ownerUID == "" {
		return nil, ErrForbidden
	}
	listing := &model.Listing{OwnerUID: ownerUID}
	if err := applyListingInput(listing, &in, true); err != nil {
		return nil, err
	}
	for _, u := range in.Images {
		listing.Images = append(listing.Images, model.ListingImage{ImageURL: u})
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *listingService) Get(ctx context.Context, id uint64) (*model.Listing, error) {
	key := listingKey(id)
	if s.cache != nil {
		var cached model.Listing
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Printf("[listing] cache get failed id=%d err=%v", id, err)
		} else if ok {
			return &cached, nil
		}
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		listing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, mapNotFound(err)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, listing); err != nil {
				log.Printf("[listing] cache set failed id=%d err=%v", id, err)
			}
		}
		return listing, nil
	})
	if err != nil {
		return nil, err
	}
	// singleflight shares the pointer between callers
	cp := *v.(*model.Listing)
	return &cp, nil
}

func (s *listingService) List(ctx context.Context, ref *geo.Point) ([]geo.Ranked[model.Listing], error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return geo.Rank(ref, list, listingPoint), nil
}

func listingPoint(l model.Listing) (geo.Point, bool) {
	lat, lng, ok := l.Coordinates()
	return geo.Point{Lat: lat, Lng: lng}, ok
}

func (s *listingService) ListMine(ctx context.Context, ownerUID string) ([]model.Listing, error) {
	return s.repo.ListByOwner(ctx, ownerUID)
}

func (s *listingService) owned(ctx context.Context, uid string, id uint64) (*model.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if uid == "" || listing.OwnerUID != uid {
		return nil, ErrForbidden
	}
	return listing, nil
}

func (s *listingService) Update(ctx context.Context, uid string, id uint64, in ListingInput) (*model.Listing, error) {
	listing, err := s.owned(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if err := applyListingInput(listing, &in, false); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, listing, in.Images); err != nil {
		return nil, mapNotFound(err)
	}
	s.invalidate(ctx, id)
	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return updated, nil
}

func (s *listingService) Delete(ctx context.Context, uid string, id uint64) error {
	if _, err := s.owned(ctx, uid, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *listingService) invalidate(ctx context.Context, ids ...uint64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, listingKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("[listing] cache invalidate failed ids=%v err=%v", ids, err)
	}
}

func (s *listingService) UploadImages(ctx context.Context, uid string, files []Upload) ([]string, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	if s.images == nil {
		return nil, ErrUnavailable
	}
	if len(files) == 0 {
		return nil, invalidf("images are required")
	}
	if len(files) > maxListingImages {
		return nil, invalidf("at most %d images", maxListingImages)
	}
	for _, f := range files {
		if !strings.HasPrefix(f.ContentType, "image/") {
			return nil, invalidf("%s is not an image", f.Filename)
		}
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		u, err := s.images.PutListingImage(ctx, io.LimitReader(f.Body, maxImageUploadLen), f.ContentType, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Filename, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// applyListingInput validates in and copies it onto listing. On create every
// required field must be present; on update omitted fields keep their value.
// in.Images is replaced by its trimmed form.
func applyListingInput(listing *model.Listing, in *ListingInput, create bool) error {
	title := strings.TrimSpace(in.Title)
	location := strings.TrimSpace(in.Location)
	if create || title != "" {
		if title == "" || len(title) > maxTitleLen {
			return invalidf("invalid title")
		}
		listing.Title = title
	}
	if create || location != "" {
		if location == "" {
			return invalidf("location is required")
		}
		listing.Location = location
	}
	if create || in.Rent != 0 {
		if in.Rent <= 0 {
			return invalidf("rent must be positive")
		}
		listing.Rent = in.Rent
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return invalidf("latitude and longitude must be set together")
	}
	if in.Latitude != nil {
		if *in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180 {
			return invalidf("coordinates out of range")
		}
		lat, lng := *in.Latitude, *in.Longitude
		listing.Latitude, listing.Longitude = &lat, &lng
	} else if create {
		return invalidf("select a valid location")
	}
	gender := strings.TrimSpace(in.GenderPreference)
	if gender == "" && create {
		gender = string(model.GenderAny)
	}
	if gender != "" {
		g := model.GenderPreference(gender)
		if !g.Valid() {
			return invalidf("invalid gender preference")
		}
		listing.GenderPreference = g
	}
	if in.AvailableFrom != nil {
		listing.AvailableFrom = in.AvailableFrom.UTC()
	} else if create {
		return invalidf("availableFrom is required")
	}
	if in.AvailableTo != nil {
		to := in.AvailableTo.UTC()
		listing.AvailableTo = &to
	} else if create {
		return invalidf("availableTo is required")
	}
	if listing.AvailableTo != nil && listing.AvailableTo.Before(listing.AvailableFrom) {
		return invalidf("availableTo must not be before availableFrom")
	}
	if in.Description != "" || create {
		listing.Description = strings.TrimSpace(in.Description)
	}
	if len(in.Images) > maxListingImages {
		return invalidf("at most %d images", maxListingImages)
	}
	if in.Images == nil {
		return nil
	}
	images := make([]string, 0, len(in.Images))
	for _, u := range in.Images {
		u = strings.TrimSpace(u)
		if u == "" {
			return invalidf("image url is empty")
		}
		if strings.HasPrefix(u, "data:") {
			return invalidf("imageUrl must be a URL, not data URI")
		}
		images = append(images, u)
	}
	in.Images = images
	return nil
}
