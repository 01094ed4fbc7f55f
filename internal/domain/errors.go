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

// Is reports whether target is a DomainError with the same code and message.
// Wrapped variants created with NewDomainErrorWithCause still match their
// sentinel through errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
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

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnknownTool   = "UNKNOWN_TOOL"
	ErrCodeDuplicateTool = "DUPLICATE_TOOL"
	ErrCodeSchema        = "SCHEMA_ERROR"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInvalidQuery  = "INVALID_QUERY"
	ErrCodeOutOfOrder    = "OUT_OF_ORDER"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidItemKind      = NewDomainError(ErrCodeValidation, "invalid knowledge item kind")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrMissingKindMetadata  = NewDomainError(ErrCodeValidation, "missing required kind-specific metadata")
	ErrInvalidTurnRole      = NewDomainError(ErrCodeValidation, "invalid conversation turn role")
)

// Concurrency errors
var (
	// ErrVersionConflict is returned when a mutation carries a stale version.
	// The caller must re-read and retry; the core never retries on its own.
	ErrVersionConflict = NewDomainError(ErrCodeConflict, "knowledge item version conflict")
)

// Not found errors
var (
	ErrItemNotFound       = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrInvocationNotFound = NewDomainError(ErrCodeNotFound, "tool invocation not found")
	ErrEmbeddingNotFound  = NewDomainError(ErrCodeNotFound, "embedding record not found")
)

// Tool registry errors. Registry misuse is a programming error surfaced at
// registration or dispatch time, never swallowed.
var (
	ErrUnknownTool   = NewDomainError(ErrCodeUnknownTool, "tool is not registered")
	ErrDuplicateTool = NewDomainError(ErrCodeDuplicateTool, "tool name already registered")
	ErrToolTimeout   = NewDomainError(ErrCodeTimeout, "tool execution exceeded timeout")
)

// Search errors
var (
	ErrInvalidQuery = NewDomainError(ErrCodeInvalidQuery, "search query must not be empty")
)

// Conversation memory errors
var (
	ErrTurnOutOfOrder = NewDomainError(ErrCodeOutOfOrder, "turn timestamp precedes last stored turn")
)
