package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogindex/internal/config"
	dbRedis "github.com/kailas-cloud/catalogindex/internal/db/redis"
	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/domain/usage"
	logpkg "github.com/kailas-cloud/catalogindex/internal/logger"
	"github.com/kailas-cloud/catalogindex/internal/metrics"
	"github.com/kailas-cloud/catalogindex/internal/repository/catalog"
	"github.com/kailas-cloud/catalogindex/internal/repository/errlog"
	ledgerrepo "github.com/kailas-cloud/catalogindex/internal/repository/ledger"
	productrepo "github.com/kailas-cloud/catalogindex/internal/repository/product"
	"github.com/kailas-cloud/catalogindex/internal/repository/recovery"
	openaiEmb "github.com/kailas-cloud/catalogindex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/catalogindex/internal/usecase/embedding"
	loaderuc "github.com/kailas-cloud/catalogindex/internal/usecase/loader"
	pipelineuc "github.com/kailas-cloud/catalogindex/internal/usecase/pipeline"
	"github.com/kailas-cloud/catalogindex/internal/version"
)

const metricsShutdownTimeout = 5 * time.Second

// session is everything a command needs once configuration is loaded.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	store  *dbRedis.Store
	index  *productrepo.Repo
	errLog *errlog.File
	stop   []func()
}

func (rt *session) close() {
	for i := len(rt.stop) - 1; i >= 0; i-- {
		rt.stop[i]()
	}
}

// Stages of failures that happen before the pipeline runs.
const (
	stageReadCatalog  = "read_catalog"
	stageReadRecovery = "read_recovery"
	stageConnect      = "connect"
	stagePrepare      = "prepare"
)

func loadCommand(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	records, err := catalog.ReadFile(c.String("catalog"), catalog.Options{
		Limit:          c.Int("limit"),
		DefaultChannel: rt.cfg.Pipeline.Channel,
	})
	if err != nil {
		return rt.fail(stageReadCatalog, err)
	}
	logger.Info("Catalog read",
		zap.String("path", c.String("catalog")),
		zap.Int("records", len(records)),
	)

	if err := rt.connect(ctx); err != nil {
		return err
	}
	p, err := rt.pipeline(ctx, rt.cfg.Loader.RecoveryFile, rt.cfg.Loader.BulkLimit, c.Bool("verbose"))
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, records)
	if err != nil {
		return err
	}
	report(logger, res)
	return nil
}

func replayCommand(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	path := c.String("file")
	if path == "" {
		path = rt.cfg.Loader.RecoveryFile
	}
	records, err := recovery.NewFile(path).Read()
	if err != nil {
		return rt.fail(stageReadRecovery, err)
	}

	bulkLimit := rt.cfg.Loader.BulkLimit
	if n := c.Int("bulk-limit"); n > 0 {
		bulkLimit = n
	}

	if err := rt.connect(ctx); err != nil {
		return err
	}
	// A failed replay overwrites the file with what is still unsent,
	// a successful one removes it.
	p, err := rt.pipeline(ctx, path, bulkLimit, c.Bool("verbose"))
	if err != nil {
		return err
	}
	res, err := p.Replay(ctx, records)
	if err != nil {
		return err
	}
	report(rt.logger, res)
	return nil
}

// setup loads configuration, builds the logger and registers metrics.
// Errors before the logger exists can only be returned.
func setup(c *cli.Context) (*session, error) {
	env := c.String("env")

	var cfg config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: level, Command: c.Command.Name})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	rt := &session{cfg: cfg, logger: logger, errLog: errlog.NewFile(cfg.Pipeline.ErrorLog)}
	rt.stop = append(rt.stop, func() { _ = logger.Sync() })

	logger.Info("Starting catalogindex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("index", cfg.Index.Name),
		zap.Strings("index_addrs", cfg.Index.Addrs),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	if err := metrics.Register(); err != nil {
		rt.close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return rt, nil
}

// connect opens the index store and builds the product index client.
func (rt *session) connect(ctx context.Context) error {
	cfg := rt.cfg

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Index.Addrs,
		Username: cfg.Index.Username,
		Password: cfg.Index.Password,
		DB:       cfg.Index.DB,
	})
	if err != nil {
		return rt.fail(stageConnect, fmt.Errorf("create index store: %w", err))
	}
	rt.store = store
	rt.stop = append(rt.stop, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
		return rt.fail(stageConnect, err)
	}
	rt.logger.Info("Connected to index store")

	rt.index, err = productrepo.New(store, productrepo.Config{
		Index:      cfg.Index.Name,
		Prefix:     cfg.Index.Prefix,
		Language:   cfg.Index.Language,
		Dimensions: cfg.Embedding.Dimensions,
		HNSW: productrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
		Weights: cfg.TextWeights(),
	}, rt.logger)
	if err != nil {
		return rt.fail(stageConnect, fmt.Errorf("%w: %w", domain.ErrConfiguration, err))
	}
	return nil
}

// fail persists a failure that happened outside the pipeline, which
// records its own.
func (rt *session) fail(stage string, err error) error {
	rt.logger.Error("Catalog indexing failed",
		zap.String("stage", stage),
		zap.String("kind", domain.ErrorKind(err)),
		zap.Error(err),
	)
	if werr := rt.errLog.Write(domain.NewFailure(stage, err, time.Now())); werr != nil {
		rt.logger.Error("Failed to write error log",
			zap.String("path", rt.errLog.Path()),
			zap.Error(werr),
		)
	}
	return err
}

// pipeline assembles the embedding chain, the loader and the orchestrator.
// The metrics endpoint, when configured, reports the pipeline state.
func (rt *session) pipeline(
	ctx context.Context, recoveryPath string, bulkLimit int, verbose bool,
) (*pipelineuc.Pipeline, error) {
	cfg := rt.cfg
	logger := rt.logger

	ledgerFile := ledgerrepo.NewFile(cfg.Pipeline.LedgerFile)
	history, err := ledgerFile.Load()
	if err != nil {
		return nil, rt.fail(stagePrepare, err)
	}
	ledger := usage.NewLedger(history)

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		User:              cfg.Embedding.User,
		Provider:          "openai",
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:            logger,
	})
	adaptive := embeddinguc.NewAdaptiveEmbedder(base, ledger, embeddinguc.Config{
		MaxTokensPerSection:   cfg.Embedding.MaxTokensPerSection,
		CharsPerToken:         cfg.Embedding.CharsPerToken,
		SectionRatioReduction: cfg.Embedding.SectionRatioReduction,
		MaxTextsPerSection:    cfg.Embedding.MaxTextsPerSection,
		Dimensions:            cfg.Embedding.Dimensions,
	}, logger)

	rest := recovery.NewFile(recoveryPath)
	loader := loaderuc.New(rt.index, rest, loaderuc.Config{
		BulkLimit: bulkLimit,
		Verbose:   verbose || cfg.Loader.Verbose,
	}, logger)

	p := pipelineuc.New(pipelineuc.Deps{
		Index:       rt.index,
		Embedder:    adaptive,
		Loader:      loader,
		Health:      base,
		ErrorLog:    rt.errLog,
		Ledger:      ledger,
		LedgerStore: ledgerFile,
		Recovery:    rest,
	}, pipelineuc.Config{
		Locale:      domain.Locale(cfg.Pipeline.Locale),
		Weights:     cfg.FusionWeights(),
		Channel:     cfg.Pipeline.Channel,
		Preflight:   !cfg.Pipeline.SkipPreflight,
		VerifyCount: !cfg.Pipeline.SkipCountCheck,
	}, logger)

	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, func() string { return string(p.State()) }, logger)
		if err := srv.Start(); err != nil {
			return nil, rt.fail(stagePrepare, fmt.Errorf("start metrics server: %w", err))
		}
		rt.stop = append(rt.stop, func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Metrics server shutdown", zap.Error(err))
			}
		})
	}
	return p, nil
}

func report(logger *zap.Logger, res pipelineuc.Result) {
	logger.Info("Catalog indexed",
		zap.Int("records", res.Records),
		zap.Int("embedded", res.Embedded),
		zap.Int("packages", res.Load.Packages),
		zap.Int("acknowledged", res.Load.Acknowledged),
		zap.Int("indexed", res.Indexed),
		zap.Duration("duration", res.Duration),
	)
}
