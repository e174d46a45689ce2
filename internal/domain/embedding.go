package domain

import "context"

// SectionEmbedder vectorizes one section of texts in a single remote call.
// Failures the caller can act on are returned as *RemoteServiceError.
type SectionEmbedder interface {
	EmbedSection(ctx context.Context, texts []string) (SectionResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SectionResult carries the section vectors, in input order, and token usage.
type SectionResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// TokenRecorder receives consumed-token counts per successful section.
type TokenRecorder interface {
	Record(label string, tokens int)
}
