package storage

import "context"

// StoredObject describes a document after it has been written.
type StoredObject struct {
	Key  string
	URL  string // empty when the bucket has no public base URL
	ETag string
}

// SnapshotStore keeps JSON documents under stable keys. Save overwrites, Remove of a missing key
// is not an error.
type SnapshotStore interface {
	Save(ctx context.Context, key string, document []byte) (*StoredObject, error)
	Remove(ctx context.Context, key string) error
}
