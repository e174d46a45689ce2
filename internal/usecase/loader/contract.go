package loader

import (
	"context"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// BulkCreator sends one package of records to the index.
type BulkCreator interface {
	BulkCreate(ctx context.Context, records []domain.EnrichedRecord) (domain.BulkResult, error)
}

// RecoveryWriter persists records that never reached the index.
type RecoveryWriter interface {
	Write(records []domain.EnrichedRecord) error
	Path() string
}
