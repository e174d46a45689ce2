package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals missing or invalid configuration. The pipeline never starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrInput signals malformed or missing source data.
	ErrInput = errors.New("input error")
	// ErrRemoteService signals an unrecoverable embedding provider failure.
	ErrRemoteService = errors.New("remote service error")
	// ErrEmbeddingProvider signals a malformed provider response.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrDegenerateVector signals a vector whose norm is zero.
	ErrDegenerateVector = errors.New("degenerate vector")
	// ErrDimensionMismatch signals vectors of different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLoadTransport signals a package that never reached the index.
	ErrLoadTransport = errors.New("load transport error")
	// ErrLoadApplication signals per-document errors reported by the index.
	ErrLoadApplication = errors.New("load application error")
)

// Remote error types reported by the embedding provider.
const (
	RemoteErrInvalidRequest = "invalid_request_error"
	RemoteErrRateLimit      = "rate_limit_error"
	RemoteErrInternal       = "internal_server_error"
	RemoteErrUnavailable    = "service_unavailable"
)

// RemoteServiceError is a classified embedding provider error.
type RemoteServiceError struct {
	Type    string
	Message string
	Status  int
}

func (e *RemoteServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", ErrRemoteService.Error(), e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrRemoteService.Error(), e.Type, e.Message)
}

func (e *RemoteServiceError) Unwrap() error { return ErrRemoteService }

// Shrinkable reports whether the request can be retried with fewer inputs.
func (e *RemoteServiceError) Shrinkable() bool {
	return e.Type == RemoteErrInvalidRequest
}

// DegenerateVectorError is returned when a fused vector cannot be normalized.
type DegenerateVectorError struct {
	Dimensions int
}

func (e *DegenerateVectorError) Error() string {
	return fmt.Sprintf("%s: zero norm over %d dimensions", ErrDegenerateVector.Error(), e.Dimensions)
}

func (e *DegenerateVectorError) Unwrap() error { return ErrDegenerateVector }

// LoadTransportError reports a failed package; unsent records were persisted to RecoveryFile.
type LoadTransportError struct {
	Package      int
	Remaining    int
	RecoveryFile string
	Err          error
}

func (e *LoadTransportError) Error() string {
	return fmt.Sprintf(
		"%s: package %d failed (%v); %d unsent records saved to %s, "+
			"reduce loader.bulk_limit and replay that file",
		ErrLoadTransport.Error(), e.Package, e.Err, e.Remaining, e.RecoveryFile,
	)
}

func (e *LoadTransportError) Unwrap() []error { return []error{ErrLoadTransport, e.Err} }

// CountMismatchError reports documents acknowledged by the index vs. attempted.
type CountMismatchError struct {
	Acknowledged int
	Attempted    int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: %d documents indexed out of %d",
		ErrLoadApplication.Error(), e.Acknowledged, e.Attempted)
}

func (e *CountMismatchError) Unwrap() error { return ErrLoadApplication }
