package blob

import (
	"context"
	"time"
)

// Object describes one stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Fetcher retrieves raw blob content by locator. The locator is either a
// full blob URL (as delivered in storage notification events) or a bare
// object key.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Lister enumerates blobs for the polling harvester.
type Lister interface {
	List(ctx context.Context, prefix, startAfter string, max int) ([]Object, error)
}

// Store combines read access used by the ingestion paths.
type Store interface {
	Fetcher
	Lister
}
