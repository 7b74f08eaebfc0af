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
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeLLM           = "LLM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyMessage = NewDomainError(ErrCodeValidation, "message must not be empty")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Configuration errors. These are fatal at startup: a collection built
// with one embedding model must never be searched with vectors from
// another.
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeConfiguration, "stored collection dimensionality does not match configured embedding model")
	ErrCollectionClosed  = NewDomainError(ErrCodeConfiguration, "vector collection is closed")
)

// EmbeddingFailed wraps an embedding backend failure. During ingestion
// it is retried; on the request path it fails the request.
func EmbeddingFailed(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, "embedding backend failed", err)
}

// LLMFailed wraps a chat-completion backend failure. The session is
// left untouched when this is returned.
func LLMFailed(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeLLM, "language model call failed", err)
}
