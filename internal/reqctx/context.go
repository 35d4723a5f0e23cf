package reqctx

import "context"

type ctxKey string

const (
	keyRID       ctxKey = "leaselink_rid"
	keyUID       ctxKey = "leaselink_uid"
	keyListingID ctxKey = "leaselink_listing_id"
)

// WithRID stores the request correlation id used in component logs.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}

// WithUID stores the authenticated user id.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, keyUID, uid)
}

func UID(ctx context.Context) string {
	v, _ := ctx.Value(keyUID).(string)
	return v
}

// WithListingID stores the listing a request is about.
func WithListingID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, keyListingID, id)
}

// ListingID returns listing id if present.
func ListingID(ctx context.Context) uint64 {
	v, _ := ctx.Value(keyListingID).(uint64)
	return v
}
