// Package pipeline orchestrates a catalog reload: index recreation,
// normalization, embedding, fusion and bulk load.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/domain/usage"
	"github.com/kailas-cloud/catalogindex/internal/metrics"
	"github.com/kailas-cloud/catalogindex/internal/usecase/fusion"
	"github.com/kailas-cloud/catalogindex/internal/usecase/loader"
	"github.com/kailas-cloud/catalogindex/internal/usecase/normalize"
)

// Stage names used in failure reports besides the states themselves.
const (
	StagePreflight = "preflight"
)

// DefaultChannel labels token usage when records carry no channel.
const DefaultChannel = "catalog"

// Config tunes a run.
type Config struct {
	// Locale is the working locale embedded for every record.
	Locale domain.Locale
	// Weights per field for fusion. Nil means fusion.DefaultWeights.
	Weights map[domain.TextField]float64
	// Channel is the usage label prefix when the first record has none.
	Channel string
	// Preflight checks the embedding provider before the index is dropped.
	Preflight bool
	// VerifyCount counts indexed documents once loaded.
	VerifyCount bool
}

func (c Config) withDefaults() Config {
	if c.Locale == "" {
		c.Locale = domain.LocaleFR
	}
	if c.Weights == nil {
		c.Weights = fusion.DefaultWeights()
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	return c
}

// Deps are the collaborators of a pipeline. Health, ErrorLog, Ledger,
// LedgerStore and Recovery are optional.
type Deps struct {
	Index       Index
	Embedder    BatchEmbedder
	Loader      Loader
	Health      domain.HealthChecker
	ErrorLog    ErrorLog
	Ledger      *usage.Ledger
	LedgerStore LedgerStore
	Recovery    RecoveryFile
}

// Result summarizes a finished run.
type Result struct {
	Records  int
	Embedded int
	Load     loader.Report
	// Indexed is the verified document count, -1 when not verified.
	Indexed  int
	Duration time.Duration
}

// Pipeline runs once: a second Run or Replay is rejected.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	state   State
	started bool
}

// New creates an idle pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	publishState(StateIdle)
	return &Pipeline{
		deps:   deps,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		state:  StateIdle,
	}
}

// State returns the current state. Safe for concurrent use.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Run performs a full reload: the index is dropped with its documents,
// recreated and filled with records.
func (p *Pipeline) Run(ctx context.Context, records []domain.Record) (Result, error) {
	if err := p.begin(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	defer p.flushLedger()

	res := Result{Records: len(records), Indexed: -1}
	p.logger.Info("Pipeline started", zap.Int("records", len(records)))

	if err := p.preflight(ctx, records); err != nil {
		return res, p.fail(StagePreflight, err)
	}

	if err := p.recreateIndex(ctx); err != nil {
		return res, p.fail(string(StateIndexRecreated), err)
	}
	p.transition(StateIndexRecreated)

	normalized := make([]domain.NormalizedRecord, len(records))
	for i := range records {
		normalized[i] = normalize.Record(&records[i])
	}
	p.transition(StateNormalized)

	enriched, err := p.embed(ctx, normalized)
	if err != nil {
		return res, p.fail(string(StateEmbedded), err)
	}
	for i := range enriched {
		if !enriched[i].Embedding.IsNone() {
			res.Embedded++
		}
	}
	p.transition(StateEmbedded)

	return p.load(ctx, enriched, res, start, true)
}

// Replay loads previously enriched records into the existing index.
// The index is neither dropped nor recreated: Idle -> Loaded -> Done.
func (p *Pipeline) Replay(ctx context.Context, records []domain.EnrichedRecord) (Result, error) {
	if err := p.begin(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	defer p.flushLedger()

	p.logger.Info("Replay started", zap.Int("records", len(records)))
	res := Result{Records: len(records), Indexed: -1}
	for i := range records {
		if !records[i].Embedding.IsNone() {
			res.Embedded++
		}
	}
	return p.load(ctx, records, res, start, false)
}

func (p *Pipeline) load(
	ctx context.Context, records []domain.EnrichedRecord, res Result, start time.Time, exact bool,
) (Result, error) {
	rep, err := p.deps.Loader.Load(ctx, records)
	res.Load = rep
	if err != nil {
		res.Duration = time.Since(start)
		return res, p.fail(string(StateLoaded), err)
	}
	p.transition(StateLoaded)

	res.Indexed = p.verify(ctx, rep.Acknowledged, exact)
	p.clearRecovery()
	res.Duration = time.Since(start)
	p.transition(StateDone)
	metrics.PipelineRunsTotal.WithLabelValues(string(StateDone)).Inc()

	p.logger.Info("Pipeline done",
		zap.Int("records", res.Records),
		zap.Int("embedded", res.Embedded),
		zap.Int("packages", rep.Packages),
		zap.Int("acknowledged", rep.Acknowledged),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pipeline already started (state %s)", p.state)
	}
	p.started = true
	return nil
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()

	publishState(to)
	p.logger.Info("Pipeline state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

// fail moves to Failed and persists the error. The returned error wraps err.
func (p *Pipeline) fail(stage string, err error) error {
	p.transition(StateFailed)
	metrics.PipelineRunsTotal.WithLabelValues(string(StateFailed)).Inc()

	f := domain.NewFailure(stage, err, p.now())
	p.logger.Error("Pipeline failed",
		zap.String("stage", stage),
		zap.String("kind", f.Kind),
		zap.String("type", f.Type),
		zap.Error(err),
	)
	if p.deps.ErrorLog != nil {
		if werr := p.deps.ErrorLog.Write(f); werr != nil {
			p.logger.Error("Failed to write error log", zap.Error(werr))
		}
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// preflight rejects bad input and an unreachable provider before anything
// destructive happens.
func (p *Pipeline) preflight(ctx context.Context, records []domain.Record) error {
	if err := validate(records); err != nil {
		return err
	}
	if !p.cfg.Preflight || p.deps.Health == nil {
		return nil
	}
	if err := p.deps.Health.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider check: %w", err)
	}
	return nil
}

func validate(records []domain.Record) error {
	seen := make(map[string]int, len(records))
	for i := range records {
		guid := records[i].GUID
		if strings.TrimSpace(guid) == "" {
			return fmt.Errorf("record %d has an empty guid: %w", i, domain.ErrInput)
		}
		if j, dup := seen[guid]; dup {
			return fmt.Errorf("records %d and %d share guid %q: %w", j, i, guid, domain.ErrInput)
		}
		seen[guid] = i
	}
	return nil
}

func (p *Pipeline) recreateIndex(ctx context.Context) error {
	exists, err := p.deps.Index.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		if err := p.deps.Index.Delete(ctx); err != nil {
			return fmt.Errorf("drop index: %w", err)
		}
	}
	if err := p.deps.Index.Create(ctx); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// embed vectorizes every field over the working locale, one batch per field,
// then fuses the field vectors of each record.
func (p *Pipeline) embed(ctx context.Context, recs []domain.NormalizedRecord) ([]domain.EnrichedRecord, error) {
	channel := p.cfg.Channel
	if len(recs) > 0 && recs[0].Channel != "" {
		channel = recs[0].Channel
	}

	perField := make([][]domain.Embedding, len(domain.Fields))
	weights := make([]float64, len(domain.Fields))
	for i, field := range domain.Fields {
		texts := make([]string, len(recs))
		for j := range recs {
			texts[j] = recs[j].Text(field, p.cfg.Locale)
		}
		vecs, err := p.deps.Embedder.EmbedBatch(ctx, UsageLabel(channel, field), texts)
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", field, err)
		}
		perField[i] = vecs
		weights[i] = p.cfg.Weights[field]
	}

	out := make([]domain.EnrichedRecord, len(recs))
	vectors := make([]domain.Embedding, len(domain.Fields))
	for j := range recs {
		for i := range domain.Fields {
			vectors[i] = perField[i][j]
		}
		fused, err := fusion.Fuse(vectors, weights)
		if err != nil {
			return nil, fmt.Errorf("fuse record %s: %w", recs[j].GUID, err)
		}
		out[j] = domain.EnrichedRecord{NormalizedRecord: recs[j], Embedding: fused}
	}
	return out, nil
}

// UsageLabel is the ledger label of a field batch ("babyroom : names").
func UsageLabel(channel string, field domain.TextField) string {
	return fmt.Sprintf("%s : %ss", channel, field)
}

// verify counts indexed documents. Indexing may lag behind the bulk
// acknowledgement, so a mismatch is only logged.
func (p *Pipeline) verify(ctx context.Context, expected int, exact bool) int {
	if !p.cfg.VerifyCount {
		return -1
	}
	n, err := p.deps.Index.Count(ctx)
	if err != nil {
		p.logger.Warn("Failed to count indexed documents", zap.Error(err))
		return -1
	}
	if (exact && n != expected) || n < expected {
		p.logger.Warn("Indexed document count differs from acknowledged",
			zap.Int("indexed", n),
			zap.Int("acknowledged", expected),
		)
	}
	return n
}

// clearRecovery drops records left by an earlier failed load. Every one of
// them is in the index now, or was superseded by a full reload.
func (p *Pipeline) clearRecovery() {
	if p.deps.Recovery == nil {
		return
	}
	if err := p.deps.Recovery.Clear(); err != nil {
		p.logger.Error("Failed to clear recovery file, do not replay it",
			zap.String("path", p.deps.Recovery.Path()),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) flushLedger() {
	if p.deps.Ledger == nil || p.deps.LedgerStore == nil {
		return
	}
	if err := p.deps.LedgerStore.Flush(p.deps.Ledger); err != nil {
		p.logger.Error("Failed to persist token ledger", zap.Error(err))
	}
}
