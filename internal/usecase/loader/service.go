// Package loader sends enriched records to the index in fixed-size packages.
package loader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/metrics"
)

// DefaultBulkLimit is the package size when none is configured.
const DefaultBulkLimit = 1000

// Config tunes the loader.
type Config struct {
	BulkLimit int
	// Verbose logs one line per loaded package.
	Verbose bool
}

// Report summarizes a load.
type Report struct {
	Packages     int
	Acknowledged int
	Duration     time.Duration
}

// Loader writes records through an index client.
type Loader struct {
	index    BulkCreator
	recovery RecoveryWriter
	cfg      Config
	logger   *zap.Logger
}

// New creates a Loader.
func New(index BulkCreator, recovery RecoveryWriter, cfg Config, logger *zap.Logger) *Loader {
	if cfg.BulkLimit <= 0 {
		cfg.BulkLimit = DefaultBulkLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{index: index, recovery: recovery, cfg: cfg, logger: logger}
}

// BulkLimit returns the configured package size.
func (l *Loader) BulkLimit() int { return l.cfg.BulkLimit }

// Load sends records in packages of BulkLimit.
//
// A package that fails in transport stops the load: that package and every
// later one are written to the recovery file and *domain.LoadTransportError
// is returned. Per-document rejections are tallied and reported once at the
// end as *domain.CountMismatchError.
func (l *Loader) Load(ctx context.Context, records []domain.EnrichedRecord) (Report, error) {
	start := time.Now()
	var rep Report
	size := l.cfg.BulkLimit

	for from := 0; from < len(records); from += size {
		to := min(from+size, len(records))
		pkg := records[from:to]
		num := rep.Packages + 1

		pkgStart := time.Now()
		res, err := l.index.BulkCreate(ctx, pkg)
		metrics.LoaderPackageDuration.Observe(time.Since(pkgStart).Seconds())
		if err != nil {
			metrics.LoaderPackagesTotal.WithLabelValues("transport_error").Inc()
			rep.Duration = time.Since(start)
			return rep, l.saveRemaining(num, records[from:], err)
		}

		rep.Packages = num
		rep.Acknowledged += res.Acknowledged
		metrics.LoaderDocumentsTotal.Add(float64(res.Acknowledged))

		status := "ok"
		if len(res.Rejected) > 0 || res.Acknowledged != len(pkg) {
			status = "application_error"
			for _, rj := range res.Rejected {
				l.logger.Warn("Document rejected",
					zap.Int("package", num),
					zap.String("guid", rj.GUID),
					zap.String("reason", rj.Reason),
				)
			}
		}
		metrics.LoaderPackagesTotal.WithLabelValues(status).Inc()

		if l.cfg.Verbose {
			l.logger.Info("Package loaded",
				zap.Int("package", num),
				zap.Int("from", from),
				zap.Int("to", to),
				zap.Int("acknowledged", res.Acknowledged),
				zap.Duration("duration", time.Since(pkgStart)),
			)
		}
	}

	rep.Duration = time.Since(start)
	if rep.Acknowledged != len(records) {
		return rep, &domain.CountMismatchError{Acknowledged: rep.Acknowledged, Attempted: len(records)}
	}

	l.logger.Info("Load complete",
		zap.Int("packages", rep.Packages),
		zap.Int("documents", rep.Acknowledged),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (l *Loader) saveRemaining(pkg int, remaining []domain.EnrichedRecord, cause error) error {
	path := ""
	if l.recovery != nil {
		path = l.recovery.Path()
		if err := l.recovery.Write(remaining); err != nil {
			l.logger.Error("Failed to write recovery file",
				zap.String("path", path),
				zap.Error(err),
			)
			return fmt.Errorf("package %d: %w: %w (recovery file not written: %v)",
				pkg, domain.ErrLoadTransport, cause, err)
		}
	}

	l.logger.Error("Package failed, remaining records saved",
		zap.Int("package", pkg),
		zap.Int("remaining", len(remaining)),
		zap.String("recovery_file", path),
		zap.Error(cause),
	)
	return &domain.LoadTransportError{
		Package:      pkg,
		Remaining:    len(remaining),
		RecoveryFile: path,
		Err:          cause,
	}
}
