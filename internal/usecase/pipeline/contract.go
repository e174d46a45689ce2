package pipeline

import (
	"context"

	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/domain/usage"
	"github.com/kailas-cloud/catalogindex/internal/usecase/loader"
)

// Index declares, drops and counts the search index.
type Index interface {
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Delete(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// BatchEmbedder vectorizes a list of texts under a usage label.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, label string, texts []string) ([]domain.Embedding, error)
}

// Loader bulk-loads enriched records.
type Loader interface {
	Load(ctx context.Context, records []domain.EnrichedRecord) (loader.Report, error)
}

// ErrorLog persists the failure of a run.
type ErrorLog interface {
	Write(failure domain.Failure) error
}

// LedgerStore persists the token usage ledger.
type LedgerStore interface {
	Flush(l *usage.Ledger) error
}

// RecoveryFile is the recovery file of the loader. A successful run leaves
// nothing to replay, so it is cleared.
type RecoveryFile interface {
	Clear() error
	Path() string
}
