package db

import (
	"context"
	"time"
)

// Store is the database facade used by the index client.
type Store interface {
	Pinger
	JSONStore
	IndexManager
	Counter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JSONSetItem holds a single key+data pair for pipelined JSON.SET.
type JSONSetItem struct {
	Key  string
	Data []byte
}

// Rejection is a document refused by the server.
type Rejection struct {
	Key    string
	Reason string
}

// CreateResult reports a create-only bulk write.
type CreateResult struct {
	Created  int
	Rejected []Rejection
}

// JSONStore provides create-only JSON document writes.
type JSONStore interface {
	// JSONCreateMulti pipelines JSON.SET NX for every item.
	// Server-side rejections land in CreateResult.Rejected; a connection
	// failure is returned as an error.
	JSONCreateMulti(ctx context.Context, items []JSONSetItem) (CreateResult, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index; withDocs also deletes the indexed documents.
	DropIndex(ctx context.Context, name string, withDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Counter counts documents matching a query.
type Counter interface {
	SearchCount(ctx context.Context, index, query string) (int, error)
}
