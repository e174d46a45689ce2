package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/metrics"
)

// Embedder is a section embedding provider over the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var (
	_ domain.SectionEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker   = (*Embedder)(nil)
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	// RequestsPerMinute paces outgoing calls; 0 disables pacing.
	RequestsPerMinute int
	Timeout           time.Duration
	Logger            *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible section embedder.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		limiter:    limiter,
		logger:     logger,
	}
}

// EmbedSection vectorizes texts in one request. Vectors come back in input order.
func (e *Embedder) EmbedSection(ctx context.Context, texts []string) (domain.SectionResult, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return domain.SectionResult{}, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.SectionResult{}, fmt.Errorf("embedding request: %w", ctxErr)
		}
		remote := classify(err)
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, remote.Type).Inc()
		e.logger.Debug("embedding request failed",
			zap.Int("texts", len(texts)),
			zap.String("type", remote.Type),
			zap.Int("status", remote.Status),
			zap.Duration("duration", duration),
		)
		return domain.SectionResult{}, remote
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "arity_mismatch").Inc()
		return domain.SectionResult{}, fmt.Errorf("%d vectors for %d texts: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	// Providers may return items out of order; Index is authoritative.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if d.Index != i {
			return domain.SectionResult{}, fmt.Errorf("unexpected embedding index %d at %d: %w",
				d.Index, i, domain.ErrEmbeddingProvider)
		}
		out[i] = d.Embedding
	}

	return domain.SectionResult{
		Embeddings:   out,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("list models: %w", ctxErr)
		}
		return fmt.Errorf("list models: %w", classify(err))
	}
	return nil
}

// classify maps a client error to a typed remote error.
func classify(err error) *domain.RemoteServiceError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.RemoteServiceError{
			Type:    remoteType(apiErr.Type, apiErr.HTTPStatusCode),
			Message: apiErr.Message,
			Status:  apiErr.HTTPStatusCode,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &domain.RemoteServiceError{
			Type:    remoteType("", reqErr.HTTPStatusCode),
			Message: msg,
			Status:  reqErr.HTTPStatusCode,
		}
	}

	// Connection refused, DNS, TLS: the service is unreachable.
	return &domain.RemoteServiceError{
		Type:    domain.RemoteErrUnavailable,
		Message: err.Error(),
	}
}

// remoteType prefers the provider-reported type and falls back to the HTTP status.
func remoteType(reported string, status int) string {
	switch reported {
	case domain.RemoteErrInvalidRequest, domain.RemoteErrRateLimit,
		domain.RemoteErrInternal, domain.RemoteErrUnavailable:
		return reported
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.RemoteErrRateLimit
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnprocessableEntity:
		return domain.RemoteErrInvalidRequest
	case status == http.StatusInternalServerError:
		return domain.RemoteErrInternal
	case status >= 500:
		return domain.RemoteErrUnavailable
	case reported != "":
		return reported
	default:
		return "unknown_error"
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
