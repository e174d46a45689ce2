// Package product is the search index client for enriched catalog records.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogindex/internal/db"
	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// store is the consumer interface for the product index (ISP).
type store interface {
	JSONCreateMulti(ctx context.Context, items []db.JSONSetItem) (db.CreateResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, withDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config describes the index and its schema.
type Config struct {
	Index      string
	Prefix     string
	Language   string
	Dimensions int
	HNSW       HNSWConfig
	// Weights are the lexical weights of each text field; 0 keeps the default.
	Weights map[domain.TextField]float64
}

// Repo implements domain.IndexClient over a Redis FT index.
type Repo struct {
	store  store
	cfg    Config
	schema *db.IndexDefinition
	newID  func() string
	logger *zap.Logger
}

var _ domain.IndexClient = (*Repo)(nil)

// New creates a product index client. The schema is validated up front.
func New(s store, cfg Config, logger *zap.Logger) (*Repo, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = cfg.Index + ":doc:"
	}
	schema, err := buildIndex(&cfg)
	if err != nil {
		return nil, fmt.Errorf("build index schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{
		store:  s,
		cfg:    cfg,
		schema: schema,
		newID:  uuid.NewString,
		logger: logger,
	}, nil
}

// Schema returns the FT index definition.
func (r *Repo) Schema() *db.IndexDefinition { return r.schema }

// Exists reports whether the index is declared.
func (r *Repo) Exists(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.cfg.Index)
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	return ok, nil
}

// Create declares the index.
func (r *Repo) Create(ctx context.Context) error {
	if err := r.store.CreateIndex(ctx, r.schema); err != nil {
		return fmt.Errorf("create index %s: %w", r.cfg.Index, err)
	}
	r.logger.Info("Index created", zap.String("index", r.cfg.Index), zap.String("schema", r.schema.String()))
	return nil
}

// Delete drops the index and its documents. A missing index is not an error.
func (r *Repo) Delete(ctx context.Context) error {
	err := r.store.DropIndex(ctx, r.cfg.Index, true)
	if errors.Is(err, db.ErrIndexNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("drop index %s: %w", r.cfg.Index, err)
	}
	r.logger.Info("Index dropped", zap.String("index", r.cfg.Index))
	return nil
}

// BulkCreate writes records under fresh auto-generated keys, create-only.
func (r *Repo) BulkCreate(ctx context.Context, records []domain.EnrichedRecord) (domain.BulkResult, error) {
	if len(records) == 0 {
		return domain.BulkResult{}, nil
	}

	items := make([]db.JSONSetItem, len(records))
	guids := make(map[string]string, len(records))
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return domain.BulkResult{}, fmt.Errorf("marshal record %s: %w", records[i].GUID, err)
		}
		key := r.cfg.Prefix + r.newID()
		items[i] = db.JSONSetItem{Key: key, Data: data}
		guids[key] = records[i].GUID
	}

	res, err := r.store.JSONCreateMulti(ctx, items)
	if err != nil {
		return domain.BulkResult{}, fmt.Errorf("bulk create: %w", err)
	}

	out := domain.BulkResult{Acknowledged: res.Created}
	for _, rej := range res.Rejected {
		out.Rejected = append(out.Rejected, domain.Rejection{GUID: guids[rej.Key], Reason: rej.Reason})
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.cfg.Index, "*")
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
