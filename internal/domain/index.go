package domain

import "context"

// IndexClient is the search index capability used by the pipeline.
type IndexClient interface {
	Exists(ctx context.Context) (bool, error)
	// Create declares the index schema.
	Create(ctx context.Context) error
	// Delete drops the index together with its documents.
	Delete(ctx context.Context) error
	// BulkCreate sends one package with create-only semantics. Per-document
	// rejections are reported in BulkResult; an error means the package did
	// not make it to the index.
	BulkCreate(ctx context.Context, records []EnrichedRecord) (BulkResult, error)
	// Count returns the number of documents the index currently holds.
	Count(ctx context.Context) (int, error)
}

// BulkResult reports one bulk-create request.
type BulkResult struct {
	Acknowledged int
	Rejected     []Rejection
}

// Rejection is a record refused by the index.
type Rejection struct {
	GUID   string
	Reason string
}
