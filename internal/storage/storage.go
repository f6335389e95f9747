// Package storage is the content-addressed blob store. Storage ids are
// opaque derived path strings; only this package knows their structure.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotExist marks a blob that is not present in storage.
var ErrNotExist = errors.New("blob does not exist")

// Error is the distinct failure type for all storage I/O. Callers are
// responsible for compensating actions (e.g. deleting a half-created dir).
type Error struct {
	Op        string
	StorageID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.StorageID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Storage stores and retrieves binary blobs keyed by derived storage ids.
//
// Put derives a fresh time-bucketed id for a project's primary blob;
// PutThumbnail derives the id from the owning video's id by appending the
// thumbnails segment. Replace overwrites bytes in place so external
// references to the id stay valid.
type Storage interface {
	Put(ctx context.Context, content []byte, filename string, projectID uuid.UUID) (string, error)
	PutThumbnail(ctx context.Context, content []byte, filename, ownerStorageID string) (string, error)
	Get(ctx context.Context, storageID string) ([]byte, error)
	GetRange(ctx context.Context, storageID string, start, length int64) ([]byte, error)
	Replace(ctx context.Context, storageID string, content []byte) error
	Delete(ctx context.Context, storageID string) error
	DeleteDir(ctx context.Context, storageID string) error
}
