// Package storage uploads images to Cloud Storage buckets served through
// Firebase download-token URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const downloadTokenKey = "firebaseStorageDownloadTokens"

type GCS struct {
	client        *storage.Client
	listingBucket string
	profileBucket string
}

func New(client *storage.Client, listingBucket, profileBucket string) *GCS {
	return &GCS{client: client, listingBucket: listingBucket, profileBucket: profileBucket}
}

// Open creates a storage client with application default credentials.
func Open(ctx context.Context, listingBucket, profileBucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return New(client, listingBucket, profileBucket), nil
}

func (g *GCS) PutListingImage(ctx context.Context, r io.Reader, contentType, filename string) (string, error) {
	return g.Put(ctx, g.listingBucket, ObjectName("listings", contentType, filename), r, contentType)
}

func (g *GCS) PutProfileImage(ctx context.Context, r io.Reader, contentType, filename string) (string, error) {
	return g.Put(ctx, g.profileBucket, ObjectName("profiles", contentType, filename), r, contentType)
}

// Put writes r to bucket/objectPath with a fresh download token and returns its public URL.
func (g *GCS) Put(ctx context.Context, bucket, objectPath string, r io.Reader, contentType string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("storage: bucket is not configured")
	}
	token := uuid.NewString()
	w := g.client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	w.Metadata = map[string]string{downloadTokenKey: token}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", objectPath, err)
	}
	return PublicURL(bucket, objectPath, token), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// ObjectName returns dir/<uuid>.<ext>, taking the extension from filename or,
// failing that, from contentType.
func ObjectName(dir, contentType, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ""
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == ".jpe" || ext == ".jfif" {
		ext = ".jpg"
	}
	name := uuid.NewString() + ext
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func PublicURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}
