package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/leaselink-backend/internal/model"
)

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
	hits  int
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type memImages struct {
	listing []string
	profile []string
	fail    bool
}

func (m *memImages) put(bucket string, r io.Reader, filename string) (string, error) {
	if m.fail {
		return "", errors.New("bucket unavailable")
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://storage.test/%s/%s", bucket, filename), nil
}

func (m *memImages) PutListingImage(_ context.Context, r io.Reader, _ string, filename string) (string, error) {
	u, err := m.put("listing-images", r, filename)
	if err == nil {
		m.listing = append(m.listing, u)
	}
	return u, err
}

func (m *memImages) PutProfileImage(_ context.Context, r io.Reader, _ string, filename string) (string, error) {
	u, err := m.put("profile-images", r, filename)
	if err == nil {
		m.profile = append(m.profile, u)
	}
	return u, err
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (p *recordingPublisher) Publish(msg model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

type fakeIdentity struct {
	users map[string]*auth.UserRecord
}

func (f fakeIdentity) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	if u, ok := f.users[uid]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}
