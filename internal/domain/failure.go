package domain

import (
	"context"
	"errors"
	"time"
)

// Failure is the persisted description of a fatal pipeline error.
type Failure struct {
	Message string    `json:"message"`
	Type    string    `json:"type"`
	Stage   string    `json:"stage"`
	Kind    string    `json:"kind"`
	Chain   []string  `json:"chain,omitempty"`
	Time    time.Time `json:"time"`
}

// Error kinds, one per sentinel.
const (
	KindConfiguration     = "configuration"
	KindInput             = "input"
	KindRemoteService     = "remote_service"
	KindEmbeddingProvider = "embedding_provider"
	KindDegenerateVector  = "degenerate_vector"
	KindDimensionMismatch = "dimension_mismatch"
	KindLoadTransport     = "load_transport"
	KindLoadApplication   = "load_application"
	KindCanceled          = "canceled"
	KindUnknown           = "unknown"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrConfiguration, KindConfiguration},
	{ErrInput, KindInput},
	{ErrRemoteService, KindRemoteService},
	{ErrEmbeddingProvider, KindEmbeddingProvider},
	{ErrDegenerateVector, KindDegenerateVector},
	{ErrDimensionMismatch, KindDimensionMismatch},
	{ErrLoadTransport, KindLoadTransport},
	{ErrLoadApplication, KindLoadApplication},
}

// ErrorKind maps err to its sentinel kind.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// NewFailure describes err raised during stage.
// Type is the provider error type for remote failures, the kind otherwise.
func NewFailure(stage string, err error, at time.Time) Failure {
	f := Failure{
		Message: err.Error(),
		Stage:   stage,
		Kind:    ErrorKind(err),
		Chain:   errorChain(err),
		Time:    at.UTC(),
	}
	f.Type = f.Kind

	var rse *RemoteServiceError
	if errors.As(err, &rse) {
		f.Type = rse.Type
		if rse.Message != "" {
			f.Message = rse.Message
		}
	}
	return f
}

const maxChainDepth = 16

// errorChain lists the messages of err and everything it wraps, depth first.
func errorChain(err error) []string {
	var out []string
	var walk func(e error, depth int)
	walk = func(e error, depth int) {
		if e == nil || depth >= maxChainDepth {
			return
		}
		out = append(out, e.Error())
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap(), depth+1)
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner, depth+1)
			}
		}
	}
	walk(err, 0)
	return out
}
