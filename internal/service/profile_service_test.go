package service

import (
	"context"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/leaselink-backend/internal/repository"
	"github.com/shinyyama/leaselink-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileFixture struct {
	profiles  ProfileService
	listings  ListingService
	favorites FavoriteService
	cache     *memCache
	images    *memImages
}

func newProfileFixture(t *testing.T) profileFixture {
	t.Helper()
	db := testutil.NewDB(t)
	cache := newMemCache()
	images := &memImages{}
	listingRepo := repository.NewListingRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	identity := fakeIdentity{users: map[string]*auth.UserRecord{
		"google-user": {UserInfo: &auth.UserInfo{UID: "google-user", DisplayName: "Gina", PhotoURL: "https://photo.test/g.png"}},
	}}
	return profileFixture{
		profiles: NewProfileService(repository.NewProfileRepository(db), listingRepo, favoriteRepo,
			repository.NewNotificationRepository(db), identity, images, cache),
		listings:  NewListingService(listingRepo, cache, images),
		favorites: NewFavoriteService(favoriteRepo, listingRepo),
		cache:     cache,
		images:    images,
	}
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func TestProfileService_MeAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := newProfileFixture(t)

	me, err := f.profiles.Me(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", me.UID)
	assert.Empty(t, me.Name)

	updated, err := f.profiles.Update(ctx, "user-1", ProfileInput{Name: strPtr("  Sam  "), Age: intPtr(21), Gender: strPtr("Other")})
	require.NoError(t, err)
	assert.Equal(t, "Sam", updated.Name)
	assert.Equal(t, 21, updated.Age)

	tests := []struct {
		name string
		in   ProfileInput
	}{
		{"negative age", ProfileInput{Age: intPtr(-1)}},
		{"unknown gender", ProfileInput{Gender: strPtr("Robot")}},
		{"long name", ProfileInput{Name: strPtr(strings.Repeat("n", 121))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.profiles.Update(ctx, "user-1", tt.in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	again, err := f.profiles.Me(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", again.Name)
	assert.Equal(t, "Other", again.Gender)
}

func TestProfileService_GetFallsBackToIdentity(t *testing.T) {
	ctx := context.Background()
	f := newProfileFixture(t)

	_, err := f.profiles.Update(ctx, "saved", ProfileInput{Name: strPtr("Saved User")})
	require.NoError(t, err)
	saved, err := f.profiles.Get(ctx, "saved")
	require.NoError(t, err)
	assert.Equal(t, "Saved User", saved.Name)

	fallback, err := f.profiles.Get(ctx, "google-user")
	require.NoError(t, err)
	assert.Equal(t, "Gina", fallback.Name)
	require.NotNil(t, fallback.ProfileImageURL)
	assert.Equal(t, "https://photo.test/g.png", *fallback.ProfileImageURL)

	_, err = f.profiles.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.profiles.Get(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProfileService_UploadImage(t *testing.T) {
	ctx := context.Background()
	f := newProfileFixture(t)

	p, err := f.profiles.UploadImage(ctx, "user-1", Upload{Filename: "me.png", ContentType: "image/png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	require.NotNil(t, p.ProfileImageURL)
	assert.Equal(t, "https://storage.test/profile-images/me.png", *p.ProfileImageURL)

	_, err = f.profiles.UploadImage(ctx, "user-1", Upload{Filename: "me.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProfileService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	f := newProfileFixture(t)

	_, err := f.profiles.Update(ctx, "leaver", ProfileInput{Name: strPtr("Leaver")})
	require.NoError(t, err)
	mine, err := f.listings.Create(ctx, "leaver", validInput())
	require.NoError(t, err)
	other, err := f.listings.Create(ctx, "stayer", validInput())
	require.NoError(t, err)
	require.NoError(t, f.favorites.Add(ctx, "leaver", other.ID))
	require.NoError(t, f.favorites.Add(ctx, "stayer", mine.ID))
	_, err = f.listings.Get(ctx, mine.ID)
	require.NoError(t, err)

	require.NoError(t, f.profiles.DeleteAccount(ctx, "leaver"))

	_, err = f.listings.Get(ctx, mine.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, f.cache.has(listingKey(mine.ID)))
	favs, err := f.favorites.List(ctx, "leaver")
	require.NoError(t, err)
	assert.Empty(t, favs)
	stayerFavs, err := f.favorites.List(ctx, "stayer")
	require.NoError(t, err)
	assert.Empty(t, stayerFavs, "favorites of deleted listings go with them")
	_, err = f.profiles.Get(ctx, "leaver")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.listings.Get(ctx, other.ID)
	assert.NoError(t, err)
}
