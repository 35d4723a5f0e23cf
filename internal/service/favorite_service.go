package service

import (
	"context"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/repository"
)

type FavoriteService interface {
	// Toggle flips the favorite flag for a listing and returns the new state.
	Toggle(ctx context.Context, uid string, listingID uint64) (bool, error)
	Add(ctx context.Context, uid string, listingID uint64) error
	Remove(ctx context.Context, uid string, listingID uint64) error
	List(ctx context.Context, uid string) ([]model.Listing, error)
	IDs(ctx context.Context, uid string) (map[uint64]bool, error)
}

type favoriteService struct {
	favorites repository.FavoriteRepository
	listings  repository.ListingRepository
}

func NewFavoriteService(favorites repository.FavoriteRepository, listings repository.ListingRepository) FavoriteService {
	return &favoriteService{favorites: favorites, listings: listings}
}

func (s *favoriteService) Toggle(ctx context.Context, uid string, listingID uint64) (bool, error) {
	if uid == "" {
		return false, ErrForbidden
	}
	ok, err := s.favorites.Exists(ctx, uid, listingID)
	if err != nil {
		return false, err
	}
	if ok {
		if _, err := s.favorites.Remove(ctx, uid, listingID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.Add(ctx, uid, listingID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *favoriteService) Add(ctx context.Context, uid string, listingID uint64) error {
	if uid == "" {
		return ErrForbidden
	}
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		return mapNotFound(err)
	}
	return s.favorites.Add(ctx, uid, listingID)
}

func (s *favoriteService) Remove(ctx context.Context, uid string, listingID uint64) error {
	if uid == "" {
		return ErrForbidden
	}
	_, err := s.favorites.Remove(ctx, uid, listingID)
	return err
}

func (s *favoriteService) List(ctx context.Context, uid string) ([]model.Listing, error) {
	ids, err := s.favorites.ListListingIDs(ctx, uid)
	if err != nil {
		return nil, err
	}
	found, err := s.listings.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	// most recently favorited first
	byID := make(map[uint64]model.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	out := make([]model.Listing, 0, len(found))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *favoriteService) IDs(ctx context.Context, uid string) (map[uint64]bool, error) {
	out := map[uint64]bool{}
	if uid == "" {
		return out, nil
	}
	ids, err := s.favorites.ListListingIDs(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
