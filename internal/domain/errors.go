package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithCause returns a copy of e carrying err as the underlying cause, so a
// sentinel error can be enriched with failure detail at the call site.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

// Common domain error codes
const (
	// ErrCodeValidation marks malformed input; never retried, reported verbatim.
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound marks a missing specification or chunk set.
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeTransient marks embedding/vector-store/LLM infrastructure failures
	// that were retried with backoff and still failed.
	ErrCodeTransient = "TRANSIENT_INFRA"
	// ErrCodeProtocol marks a violation of the chat session protocol, such as
	// a second message while a turn is still streaming.
	ErrCodeProtocol = "PROTOCOL_VIOLATION"
	// ErrCodePartialContent marks an ingestion that completed with some
	// chunks skipped after per-batch retries were exhausted.
	ErrCodePartialContent = "PARTIAL_CONTENT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptySpec         = NewDomainError(ErrCodeValidation, "specification document is empty")
	ErrInvalidSpecFormat = NewDomainError(ErrCodeValidation, "specification format must be json or yaml")
	ErrNotOpenAPI        = NewDomainError(ErrCodeValidation, "document is not a recognizable OpenAPI specification")
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query text cannot be empty")
)

// Not found errors
var (
	ErrSpecNotFound = NewDomainError(ErrCodeNotFound, "specification not found")
)

// Infrastructure errors
var (
	ErrEmbeddingUnavailable   = NewDomainError(ErrCodeTransient, "embedding service unavailable")
	ErrVectorIndexUnavailable = NewDomainError(ErrCodeTransient, "vector index unavailable")
	ErrGenerationUnavailable  = NewDomainError(ErrCodeTransient, "generation service unavailable")
)

// Protocol errors
var (
	ErrTurnInFlight  = NewDomainError(ErrCodeProtocol, "a turn is already streaming on this session")
	ErrSessionClosed = NewDomainError(ErrCodeProtocol, "session is closed")
	ErrBadMessage    = NewDomainError(ErrCodeProtocol, "malformed inbound message")
)
