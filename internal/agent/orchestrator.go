// Package agent drives one conversational turn: it loads the memory window,
// lets the decision model pick tool calls, executes them through the
// dispatcher, and lands the final assistant answer back in memory.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/openai"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
	"github.com/mnemo-ai/mnemo/internal/tools"
)

// DefaultMaxToolHops bounds sequential tool calls within one turn.
const DefaultMaxToolHops = 5

const systemPrompt = `You are Mnemo, a personal knowledge assistant. You manage the user's documents, notes, tasks and calendar through the available tools. Use tools when the request needs stored knowledge or changes to it; answer directly otherwise. Be concise.`

// degradedFallback is the answer of last resort when the hop budget is
// exhausted and the model cannot produce a closing answer either.
const degradedFallback = "I could not finish working on that request within the allowed number of tool steps. Here is what I found so far; please narrow the request and try again."

// ErrTurnCancelled is returned when the caller cancelled the turn. Any
// in-flight tool invocation has been allowed to finish; no assistant turn
// was recorded.
var ErrTurnCancelled = errors.New("turn cancelled")

// DecisionClient picks the next step given the conversation so far.
// Satisfied by openai.ChatClient.
type DecisionClient interface {
	Decide(ctx context.Context, messages []openai.Message, tools []openai.ToolSpec) (*openai.Decision, error)
}

// MemoryAPI is the conversation memory surface the orchestrator uses.
// Satisfied by service.MemoryService.
type MemoryAPI interface {
	AppendTurn(ctx context.Context, conversationID string, role domain.TurnRole, content string, toolInvocations []string) (*domain.ConversationTurn, error)
	Window(ctx context.Context, conversationID string) ([]*domain.ConversationTurn, error)
	Compact(ctx context.Context, conversationID string) (*domain.ConversationTurn, error)
}

// ToolDispatcher executes one tool call and records its invocation.
// Satisfied by tools.Dispatcher.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, toolName string, args json.RawMessage) (*domain.ToolInvocation, error)
}

// ToolSource lists the tools offered to the model.
// Satisfied by tools.Registry.
type ToolSource interface {
	Descriptors() []tools.Descriptor
}

// TurnResult is the outcome of one orchestrated turn.
type TurnResult struct {
	Answer      string
	Invocations []string
	Hops        int
	Degraded    bool
}

type Orchestrator struct {
	decider    DecisionClient
	memory     MemoryAPI
	dispatcher ToolDispatcher
	toolSource ToolSource
	maxHops    int
}

func NewOrchestrator(decider DecisionClient, memory MemoryAPI, dispatcher ToolDispatcher, toolSource ToolSource, maxHops int) *Orchestrator {
	if maxHops <= 0 {
		maxHops = DefaultMaxToolHops
	}
	return &Orchestrator{
		decider:    decider,
		memory:     memory,
		dispatcher: dispatcher,
		toolSource: toolSource,
		maxHops:    maxHops,
	}
}

// Respond runs one turn: append the user message, loop tool decisions up to
// the hop budget, and append the assistant answer. Tool failures are fed
// back to the model as information, never surfaced as turn errors. When the
// budget runs out the model is asked to close with what it has; the answer
// is marked degraded.
func (o *Orchestrator) Respond(ctx context.Context, conversationID, userMessage string) (*TurnResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Respond", telemetry.SpanAttributes{
		ConversationID: conversationID,
		Operation:      "respond",
	})
	defer span.End()

	if _, err := o.memory.AppendTurn(ctx, conversationID, domain.TurnRoleUser, userMessage, nil); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to record user turn: %w", err)
	}

	window, err := o.memory.Window(ctx, conversationID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load memory window: %w", err)
	}

	messages := o.buildMessages(window)
	specs := o.toolSpecs()

	result := &TurnResult{}
	for result.Hops < o.maxHops {
		if err := ctx.Err(); err != nil {
			return nil, ErrTurnCancelled
		}

		decision, err := o.decider.Decide(ctx, messages, specs)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("decision failed: %w", err)
		}

		if decision.ToolCall == nil {
			result.Answer = decision.Answer
			return result, o.finishTurn(ctx, conversationID, result)
		}

		result.Hops++
		call := decision.ToolCall
		// The invocation runs on a detached context so a turn-level cancel
		// lets it reach its terminal state. Its own timeout still applies.
		inv, dispatchErr := o.dispatcher.Dispatch(context.WithoutCancel(ctx), call.Name, call.Arguments)
		if inv == nil {
			span.SetError(dispatchErr)
			return nil, fmt.Errorf("tool dispatch failed: %w", dispatchErr)
		}
		result.Invocations = append(result.Invocations, inv.ID)

		feedback := toolFeedback(inv)
		if _, err := o.memory.AppendTurn(context.WithoutCancel(ctx), conversationID, domain.TurnRoleTool, feedback, []string{inv.ID}); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to record tool turn: %w", err)
		}

		messages = append(messages,
			openai.Message{Role: "assistant", ToolCalls: []openai.ToolCallRequest{*call}},
			openai.Message{Role: "tool", ToolCallID: call.ID, Content: feedback},
		)
	}

	// Budget exhausted: one last decision without tools, falling back to a
	// static close if that fails too.
	result.Degraded = true
	result.Answer = degradedFallback
	if decision, err := o.decider.Decide(ctx, append(messages, openai.Message{
		Role:    "system",
		Content: "Tool budget exhausted. Answer now with the information gathered so far.",
	}), nil); err == nil && decision.ToolCall == nil && decision.Answer != "" {
		result.Answer = decision.Answer
	}
	return result, o.finishTurn(ctx, conversationID, result)
}

func (o *Orchestrator) finishTurn(ctx context.Context, conversationID string, result *TurnResult) error {
	if err := ctx.Err(); err != nil {
		return ErrTurnCancelled
	}
	if _, err := o.memory.AppendTurn(ctx, conversationID, domain.TurnRoleAssistant, result.Answer, nil); err != nil {
		return fmt.Errorf("failed to record assistant turn: %w", err)
	}
	if _, err := o.memory.Compact(ctx, conversationID); err != nil {
		log.Printf("compaction for conversation %s failed: %v", conversationID, err)
	}
	return nil
}

// buildMessages renders the memory window for the model. Stored tool and
// summary turns become assistant-side context; the tool role is only used
// for fresh results inside the current turn, where the call ID is known.
func (o *Orchestrator) buildMessages(window []*domain.ConversationTurn) []openai.Message {
	messages := make([]openai.Message, 0, len(window)+1)
	messages = append(messages, openai.Message{Role: "system", Content: systemPrompt})
	for _, turn := range window {
		switch turn.Role {
		case domain.TurnRoleUser:
			messages = append(messages, openai.Message{Role: "user", Content: turn.Content})
		case domain.TurnRoleAssistant:
			messages = append(messages, openai.Message{Role: "assistant", Content: turn.Content})
		case domain.TurnRoleSummary:
			messages = append(messages, openai.Message{Role: "assistant", Content: "Summary of the earlier conversation: " + turn.Content})
		case domain.TurnRoleTool:
			messages = append(messages, openai.Message{Role: "assistant", Content: "Earlier tool result: " + turn.Content})
		}
	}
	return messages
}

func (o *Orchestrator) toolSpecs() []openai.ToolSpec {
	descriptors := o.toolSource.Descriptors()
	specs := make([]openai.ToolSpec, 0, len(descriptors))
	for _, d := range descriptors {
		params := json.RawMessage(`{"type":"object"}`)
		if d.InputSchema != nil {
			if data, err := json.Marshal(d.InputSchema); err == nil {
				params = data
			}
		}
		specs = append(specs, openai.ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return specs
}

func toolFeedback(inv *domain.ToolInvocation) string {
	if inv.Status == domain.InvocationStatusSucceeded {
		return string(inv.Result)
	}
	return fmt.Sprintf("tool %s failed (%s): %s", inv.ToolName, inv.ErrorKind, inv.ErrorMsg)
}
