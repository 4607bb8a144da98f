package sync

import (
	"context"
	"io"
	"time"
)

// Object holds metadata about a remote object as returned by a listing.
type Object struct {
	Key          string
	Size         int64
	ETag         string // without surrounding quotes
	LastModified time.Time
}

// Page is one page of a remote listing.
type Page struct {
	Objects []Object
	// NextToken continues the listing. Empty when there are no more pages.
	NextToken string
}

// Source is a read origin for synced objects. A Source is bound to a single
// bucket and prefix; the keys it returns are full object keys.
type Source interface {
	// ListPage returns one page of objects under the prefix, starting at
	// token (empty for the first page).
	ListPage(ctx context.Context, token string, maxKeys int32) (Page, error)
	// Download streams the object with the given key into w and returns the
	// number of bytes written.
	Download(ctx context.Context, key string, w io.WriterAt) (int64, error)
	// Prefix returns the key prefix the source is scoped to.
	Prefix() string
}
