package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
)

// Error kinds recorded on failed invocations.
const (
	ErrorKindUnknownTool = "unknown_tool"
	ErrorKindSchema      = "schema"
	ErrorKindTimeout     = "timeout"
	ErrorKindExecution   = "execution"
)

// InvocationStore persists tool invocation records. Satisfied by the
// conversation repository.
type InvocationStore interface {
	CreateInvocation(ctx context.Context, inv *domain.ToolInvocation) error
	FinishInvocation(ctx context.Context, inv *domain.ToolInvocation) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// Dispatcher resolves, validates and executes tool calls, recording each
// attempt as a ToolInvocation. An invocation is written once as pending and
// finished exactly once; the dispatcher never retries.
type Dispatcher struct {
	registry *Registry
	store    InvocationStore
	uuidGen  UUIDGenerator
	timeout  time.Duration
	now      func() time.Time
}

func NewDispatcher(registry *Registry, store InvocationStore, uuidGen UUIDGenerator, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    store,
		uuidGen:  uuidGen,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Dispatch runs one tool call. The returned invocation is always terminal;
// the error mirrors its failure kind so callers can branch on the domain
// sentinels without inspecting the record.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, args json.RawMessage) (*domain.ToolInvocation, error) {
	ctx, span := telemetry.StartSpan(ctx, "Dispatcher.Dispatch", telemetry.SpanAttributes{
		ToolName:  toolName,
		Operation: "dispatch",
	})
	defer span.End()

	// Absent arguments mean an empty object. Normalized here so the stored
	// invocation record always carries valid JSON.
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	inv := &domain.ToolInvocation{
		ID:        d.uuidGen.NewString(),
		ToolName:  toolName,
		Arguments: args,
		Status:    domain.InvocationStatusPending,
		StartedAt: d.now().UTC(),
	}
	if err := d.store.CreateInvocation(ctx, inv); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to create invocation: %w", err)
	}

	rt, err := d.registry.get(toolName)
	if err != nil {
		return inv, d.finishFailed(ctx, inv, ErrorKindUnknownTool, err)
	}

	if err := d.validateArgs(rt, args); err != nil {
		return inv, d.finishFailed(ctx, inv, ErrorKindSchema, err)
	}

	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, execErr := rt.tool.Handler(execCtx, args)
	if execErr != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return inv, d.finishFailed(ctx, inv, ErrorKindTimeout,
				domain.NewDomainErrorWithCause(domain.ErrCodeTimeout,
					domain.ErrToolTimeout.Message, execErr))
		}
		return inv, d.finishFailed(ctx, inv, ErrorKindExecution, execErr)
	}

	inv.Status = domain.InvocationStatusSucceeded
	inv.Result = result
	finishedAt := d.now().UTC()
	inv.FinishedAt = &finishedAt
	if err := d.store.FinishInvocation(ctx, inv); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to finish invocation: %w", err)
	}
	return inv, nil
}

func (d *Dispatcher) finishFailed(ctx context.Context, inv *domain.ToolInvocation, kind string, cause error) error {
	inv.Status = domain.InvocationStatusFailed
	inv.ErrorKind = kind
	inv.ErrorMsg = cause.Error()
	finishedAt := d.now().UTC()
	inv.FinishedAt = &finishedAt
	if err := d.store.FinishInvocation(ctx, inv); err != nil {
		return fmt.Errorf("failed to finish invocation: %w", err)
	}
	return cause
}

// validateArgs is the single schema gate. It runs before the handler; a
// rejected call never reaches the executor.
func (d *Dispatcher) validateArgs(rt *registeredTool, args json.RawMessage) error {
	if rt.resolved == nil {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeSchema,
			"tool arguments are not a JSON object", err)
	}

	if missing := missingRequired(rt.tool.InputSchema, decoded); len(missing) > 0 {
		return domain.NewDomainError(domain.ErrCodeSchema,
			"missing required fields: "+strings.Join(missing, ", "))
	}

	if err := rt.resolved.Validate(decoded); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeSchema,
			"tool arguments do not match schema", err)
	}
	return nil
}

func missingRequired(schema *jsonschema.Schema, decoded map[string]any) []string {
	var missing []string
	for _, field := range schema.Required {
		if _, ok := decoded[field]; !ok {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}
