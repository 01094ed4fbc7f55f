package domain

import (
	"encoding/json"
	"time"
)

// TurnRole represents the author of a conversation turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleTool      TurnRole = "tool"
	// TurnRoleSummary marks a synthetic turn produced by compaction. It
	// replaces a contiguous run of older turns and is treated as assistant
	// context by the decision loop.
	TurnRoleSummary TurnRole = "summary"
)

// ConversationTurn is one entry in the append-only turn log. Turns are never
// mutated after append, only superseded by later turns (or replaced as a
// group by a summary turn during compaction).
type ConversationTurn struct {
	TurnID         int64
	ConversationID string
	Role           TurnRole
	Content        string
	// ToolInvocations holds the ordered invocation IDs belonging to this
	// turn. The memory window never splits this group.
	ToolInvocations []string
	Timestamp       time.Time
}

// IsValidTurnRole checks if a TurnRole is valid
func IsValidTurnRole(r TurnRole) bool {
	switch r {
	case TurnRoleUser, TurnRoleAssistant, TurnRoleTool, TurnRoleSummary:
		return true
	}
	return false
}

// ValidateTurn validates a ConversationTurn before append
func ValidateTurn(t *ConversationTurn) error {
	if t == nil {
		return NewDomainError(ErrCodeValidation, "conversation turn cannot be nil")
	}
	if t.TurnID <= 0 {
		return NewDomainErrorWithCause(ErrCodeValidation, "turn ID must be positive", ErrMissingRequiredField)
	}
	if t.ConversationID == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "conversation ID is required", ErrMissingRequiredField)
	}
	if !IsValidTurnRole(t.Role) {
		return ErrInvalidTurnRole
	}
	if t.Timestamp.IsZero() {
		return NewDomainErrorWithCause(ErrCodeValidation, "turn timestamp is required", ErrMissingRequiredField)
	}
	return nil
}

// InvocationStatus represents the lifecycle state of a tool invocation
type InvocationStatus string

const (
	InvocationStatusPending   InvocationStatus = "pending"
	InvocationStatusSucceeded InvocationStatus = "succeeded"
	InvocationStatusFailed    InvocationStatus = "failed"
)

// ToolInvocation records one dispatched tool call. The terminal state
// (succeeded or failed) is written exactly once; the dispatcher never
// retries an invocation ID.
type ToolInvocation struct {
	ID         string
	ToolName   string
	Arguments  json.RawMessage
	Status     InvocationStatus
	Result     json.RawMessage
	ErrorKind  string
	ErrorMsg   string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// IsTerminal reports whether the invocation reached a terminal state
func (ti *ToolInvocation) IsTerminal() bool {
	return ti.Status == InvocationStatusSucceeded || ti.Status == InvocationStatusFailed
}
