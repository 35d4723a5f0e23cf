package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUploader struct {
	mu    sync.Mutex
	names []string
}

func (m *memUploader) PutListingImage(_ context.Context, r io.Reader, _, filename string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, filename)
	return "https://storage.test/listing-images/" + filename, nil
}

func TestBackfill_Run(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = io.WriteString(w, "jpeg-bytes")
	}))
	t.Cleanup(srv.Close)

	bare := model.Listing{Title: "bare", Location: "x", Rent: 1, OwnerUID: "u", AvailableFrom: time.Now()}
	placeholder := model.Listing{Title: "placeholder", Location: "x", Rent: 1, OwnerUID: "u", AvailableFrom: time.Now(),
		Images: []model.ListingImage{{ImageURL: srv.URL + "/seed/a/800/600"}}}
	kept := model.Listing{Title: "kept", Location: "x", Rent: 1, OwnerUID: "u", AvailableFrom: time.Now(),
		Images: []model.ListingImage{{ImageURL: "https://cdn.test/photo.jpg"}}}
	for _, l := range []*model.Listing{&bare, &placeholder, &kept} {
		require.NoError(t, gdb.Create(l).Error)
	}

	up := &memUploader{}
	b := &backfill{db: gdb, uploader: up, client: srv.Client(), baseURL: srv.URL}
	n, err := b.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the listing without photos")

	var imgs []model.ListingImage
	require.NoError(t, gdb.Where("listing_id = ?", bare.ID).Order("position").Find(&imgs).Error)
	require.Len(t, imgs, photosPerListing)
	assert.Equal(t, fmt.Sprintf("https://storage.test/listing-images/listing-%d-1.jpg", bare.ID), imgs[0].ImageURL)

	b.replace = true
	n, err = b.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "placeholder listing is replaced, uploaded photos stay")
	require.NoError(t, gdb.Where("listing_id = ?", placeholder.ID).Find(&imgs).Error)
	require.Len(t, imgs, photosPerListing)
	for _, img := range imgs {
		assert.True(t, strings.HasPrefix(img.ImageURL, "https://storage.test/"))
	}
	require.NoError(t, gdb.Where("listing_id = ?", kept.ID).Find(&imgs).Error)
	require.Len(t, imgs, 1)
	assert.Equal(t, "https://cdn.test/photo.jpg", imgs[0].ImageURL)
}
