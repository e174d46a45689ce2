package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/metrics"
)

// Defaults for the section sizing heuristic.
const (
	DefaultMaxTokensPerSection   = 8000
	DefaultCharsPerToken         = 4
	DefaultSectionRatioReduction = 6
	// DefaultMaxTextsPerSection - лимит входов на один запрос у OpenAI.
	DefaultMaxTextsPerSection = 2048
)

// Config controls how texts are grouped into sections.
type Config struct {
	MaxTokensPerSection   int
	CharsPerToken         int
	SectionRatioReduction int
	// MaxTextsPerSection caps the section length; 0 means no cap.
	MaxTextsPerSection int
	// Dimensions is the expected vector length; 0 skips the check.
	Dimensions int
}

// MaxCharsPerSection is the rune budget of a section.
func (c Config) MaxCharsPerSection() int {
	return c.MaxTokensPerSection * c.CharsPerToken
}

func (c Config) withDefaults() Config {
	if c.MaxTokensPerSection <= 0 {
		c.MaxTokensPerSection = DefaultMaxTokensPerSection
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = DefaultCharsPerToken
	}
	if c.SectionRatioReduction <= 0 {
		c.SectionRatioReduction = DefaultSectionRatioReduction
	}
	return c
}

// AdaptiveEmbedder embeds arbitrarily long text lists by sending them in
// sections and shrinking a section whenever the provider rejects it as too large.
type AdaptiveEmbedder struct {
	inner    domain.SectionEmbedder
	recorder domain.TokenRecorder
	cfg      Config
	logger   *zap.Logger
}

// NewAdaptiveEmbedder wraps a section embedder. recorder may be nil.
func NewAdaptiveEmbedder(
	inner domain.SectionEmbedder, recorder domain.TokenRecorder,
	cfg Config, logger *zap.Logger,
) *AdaptiveEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptiveEmbedder{
		inner:    inner,
		recorder: recorder,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// EmbedBatch returns one embedding per input text, in input order.
// Empty texts are never sent and yield a nil embedding.
// Token usage of every successful section is recorded under label.
func (e *AdaptiveEmbedder) EmbedBatch(
	ctx context.Context, label string, texts []string,
) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))

	positions := make([]int, 0, len(texts))
	inputs := make([]string, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			continue
		}
		positions = append(positions, i)
		inputs = append(inputs, t)
	}
	metrics.EmbeddingTextsTotal.WithLabelValues("empty").Add(float64(len(texts) - len(inputs)))
	metrics.EmbeddingTextsTotal.WithLabelValues("embedded").Add(float64(len(inputs)))

	if len(inputs) == 0 {
		return out, nil
	}

	start := time.Now()
	vectors, err := e.embedAll(ctx, label, inputs)
	if err != nil {
		return nil, err
	}

	for k, pos := range positions {
		out[pos] = vectors[k]
	}

	e.logger.Info("Embeddings generated",
		zap.String("label", label),
		zap.Int("texts", len(texts)),
		zap.Int("empty", len(texts)-len(inputs)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (e *AdaptiveEmbedder) embedAll(ctx context.Context, label string, inputs []string) ([]domain.Embedding, error) {
	vectors := make([]domain.Embedding, 0, len(inputs))

	for offset := 0; offset < len(inputs); {
		size := e.initialSize(inputs[offset:])
		step := 0

		var res domain.SectionResult
		for {
			var err error
			res, err = e.inner.EmbedSection(ctx, inputs[offset:offset+size])
			if err == nil {
				break
			}

			var remote *domain.RemoteServiceError
			if !errors.As(err, &remote) || !remote.Shrinkable() {
				metrics.EmbeddingSectionsTotal.WithLabelValues("fatal").Inc()
				return nil, fmt.Errorf("embed section at %d (%d texts): %w", offset, size, err)
			}

			if size == 1 {
				metrics.EmbeddingSectionsTotal.WithLabelValues("fatal").Inc()
				return nil, fmt.Errorf("text at %d rejected on its own: %w", offset, err)
			}
			if step == 0 {
				step = max(1, size/e.cfg.SectionRatioReduction)
			}
			// The step never takes a section below one text.
			next := max(1, size-step)

			metrics.EmbeddingSectionsTotal.WithLabelValues("shrink").Inc()
			metrics.EmbeddingShrinksTotal.Inc()
			e.logger.Warn("Section rejected, shrinking",
				zap.String("label", label),
				zap.Int("offset", offset),
				zap.Int("size", size),
				zap.Int("new_size", next),
				zap.String("reason", remote.Message),
			)
			size = next
		}

		if err := e.check(res, size); err != nil {
			metrics.EmbeddingSectionsTotal.WithLabelValues("fatal").Inc()
			return nil, err
		}
		for _, v := range res.Embeddings {
			vectors = append(vectors, domain.Embedding(v))
		}

		if e.recorder != nil {
			tokens := res.TotalTokens
			if tokens == 0 {
				tokens = res.PromptTokens
			}
			e.recorder.Record(label, tokens)
		}
		metrics.EmbeddingSectionsTotal.WithLabelValues("ok").Inc()
		e.logger.Debug("Section embedded",
			zap.String("label", label),
			zap.Int("offset", offset),
			zap.Int("size", size),
			zap.Int("total_tokens", res.TotalTokens),
		)

		offset += size
	}

	return vectors, nil
}

// initialSize grows a section until the remainder is exhausted, the text cap
// is reached, or the rune count goes over budget. The text that crosses the
// budget is part of the section, so a section is never empty.
func (e *AdaptiveEmbedder) initialSize(remaining []string) int {
	budget := e.cfg.MaxCharsPerSection()
	chars := 0
	size := 0
	for _, t := range remaining {
		if e.cfg.MaxTextsPerSection > 0 && size == e.cfg.MaxTextsPerSection {
			break
		}
		size++
		chars += utf8.RuneCountInString(t)
		if chars > budget {
			break
		}
	}
	return size
}

func (e *AdaptiveEmbedder) check(res domain.SectionResult, size int) error {
	if len(res.Embeddings) != size {
		return fmt.Errorf("%d vectors for a section of %d: %w",
			len(res.Embeddings), size, domain.ErrEmbeddingProvider)
	}
	if e.cfg.Dimensions <= 0 {
		return nil
	}
	for i, v := range res.Embeddings {
		if len(v) != e.cfg.Dimensions {
			return fmt.Errorf("vector %d has %d dimensions, want %d: %w",
				i, len(v), e.cfg.Dimensions, domain.ErrDimensionMismatch)
		}
	}
	return nil
}
