// Package docstore is the generic document persistence collaborator: answer
// logs and rate-limit counters live behind it. The orchestrator only ever
// sees the Store interface.
package docstore

import (
	"context"
)

// Op is one write in a batch commit.
type Op struct {
	Kind       string // "set" or "delete"
	Collection string
	ID         string
	Data       map[string]interface{}
}

// Document is a stored record.
type Document struct {
	ID    string
	Data  map[string]interface{}
	Ctime int64
	Mtime int64
}

type Store interface {
	// Get returns errors.ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	// Add stores data under a fresh id and returns it.
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	BatchCommit(ctx context.Context, ops []Op) error
}
