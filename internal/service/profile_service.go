package service

import (
	"context"
	"io"
	"log"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/repository"
)

// IdentityLookup resolves a user record from the identity provider. *auth.Client satisfies it.
type IdentityLookup interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type ProfileInput struct {
	Name   *string
	Age    *int
	Gender *string
}

var profileGenders = map[string]bool{"": true, "Male": true, "Female": true, "Other": true}

type ProfileService interface {
	Me(ctx context.Context, uid string) (*model.Profile, error)
	// Get returns the public profile of uid, falling back to the identity provider
	// when the user never saved a profile.
	Get(ctx context.Context, uid string) (*model.Profile, error)
	Update(ctx context.Context, uid string, in ProfileInput) (*model.Profile, error)
	UploadImage(ctx context.Context, uid string, file Upload) (*model.Profile, error)
	DeleteAccount(ctx context.Context, uid string) error
}

type profileService struct {
	profiles      repository.ProfileRepository
	listings      repository.ListingRepository
	favorites     repository.FavoriteRepository
	notifications repository.NotificationRepository
	identity      IdentityLookup
	images        ImageStore
	cache         ListingCache
}

func NewProfileService(
	profiles repository.ProfileRepository,
	listings repository.ListingRepository,
	favorites repository.FavoriteRepository,
	notifications repository.NotificationRepository,
	identity IdentityLookup,
	images ImageStore,
	cache ListingCache,
) ProfileService {
	return &profileService{
		profiles:      profiles,
		listings:      listings,
		favorites:     favorites,
		notifications: notifications,
		identity:      identity,
		images:        images,
		cache:         cache,
	}
}

func (s *profileService) Me(ctx context.Context, uid string) (*model.Profile, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	return s.profiles.FindOrCreate(ctx, uid)
}

func (s *profileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, invalidf("invalid uid")
	}
	p, err := s.profiles.FindByUID(ctx, uid)
	if err == nil {
		return p, nil
	}
	if err = mapNotFound(err); err != ErrNotFound {
		return nil, err
	}
	if s.identity == nil {
		return nil, ErrNotFound
	}
	user, err := s.identity.GetUser(ctx, uid)
	if err != nil || user == nil || user.UserInfo == nil {
		if err != nil && !auth.IsUserNotFound(err) {
			log.Printf("[profile] identity lookup failed uid=%s err=%v", uid, err)
		}
		return nil, ErrNotFound
	}
	fallback := &model.Profile{UID: user.UID, Name: user.DisplayName}
	if user.PhotoURL != "" {
		photo := user.PhotoURL
		fallback.ProfileImageURL = &photo
	}
	return fallback, nil
}

func (s *profileService) Update(ctx context.Context, uid string, in ProfileInput) (*model.Profile, error) {
	p, err := s.Me(ctx, uid)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) > 120 {
			return nil, invalidf("name is too long")
		}
		p.Name = name
	}
	if in.Age != nil {
		if *in.Age < 0 || *in.Age > 150 {
			return nil, invalidf("invalid age")
		}
		p.Age = *in.Age
	}
	if in.Gender != nil {
		gender := strings.TrimSpace(*in.Gender)
		if !profileGenders[gender] {
			return nil, invalidf("invalid gender")
		}
		p.Gender = gender
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) UploadImage(ctx context.Context, uid string, file Upload) (*model.Profile, error) {
	if s.images == nil {
		return nil, ErrUnavailable
	}
	if !strings.HasPrefix(file.ContentType, "image/") {
		return nil, invalidf("%s is not an image", file.Filename)
	}
	p, err := s.Me(ctx, uid)
	if err != nil {
		return nil, err
	}
	url, err := s.images.PutProfileImage(ctx, io.LimitReader(file.Body, maxImageUploadLen), file.ContentType, file.Filename)
	if err != nil {
		return nil, err
	}
	p.ProfileImageURL = &url
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteAccount removes the user's listings, favorites, notifications and profile.
// Chats stay so the other participant keeps the history.
func (s *profileService) DeleteAccount(ctx context.Context, uid string) error {
	if uid == "" {
		return ErrForbidden
	}
	ids, err := s.listings.DeleteByOwner(ctx, uid)
	if err != nil {
		return err
	}
	if s.cache != nil && len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, listingKey(id))
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			log.Printf("[profile] cache invalidate failed uid=%s err=%v", uid, err)
		}
	}
	if err := s.favorites.DeleteByUser(ctx, uid); err != nil {
		return err
	}
	if err := s.notifications.DeleteByUser(ctx, uid); err != nil {
		return err
	}
	log.Printf("[profile] account deleted uid=%s listings=%d", uid, len(ids))
	return s.profiles.Delete(ctx, uid)
}
