package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

// DefaultChatModel is the model used for tool-selection decisions.
const DefaultChatModel = "gpt-4o-mini"

// ErrNoChoices is returned when the chat API returns an empty response.
var ErrNoChoices = errors.New("no completion choices returned")

// ToolSpec describes a callable tool to the model. Parameters holds the
// tool's JSON Schema for its arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCallRequest is a tool invocation the model asked for.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is a single entry of the conversation sent to the model.
// ToolCallID is set on role "tool" messages, ToolCalls on assistant
// messages that requested invocations.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCallRequest
}

// Decision is the model's next step: either a tool call or a final answer.
// Exactly one field is set.
type Decision struct {
	ToolCall *ToolCallRequest
	Answer   string
}

// ChatAPI is the slice of the OpenAI client the chat client depends on.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient drives tool-selection decisions through chat completions
// with function calling.
type ChatClient struct {
	api   ChatAPI
	model string
}

func NewChatClient(apiKey, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

// NewChatClientWithAPI wires an explicit API implementation, used in tests.
func NewChatClientWithAPI(api ChatAPI, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{api: api, model: model}
}

// Decide sends the conversation window and available tools to the model and
// returns its next step.
func (c *ChatClient) Decide(ctx context.Context, messages []Message, tools []ToolSpec) (*Decision, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: convertMessages(messages),
		Tools:    convertTools(tools),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		return &Decision{
			ToolCall: &ToolCallRequest{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		}, nil
	}

	return &Decision{Answer: msg.Content}, nil
}

const summaryPrompt = "Summarize the following conversation turns into a short paragraph. " +
	"Preserve concrete facts, decisions, and open tasks. Do not invent details."

// Summarize condenses older conversation turns into a compact summary used
// as the new window anchor during compaction.
func (c *ChatClient) Summarize(ctx context.Context, turns []*domain.ConversationTurn) (string, error) {
	var transcript strings.Builder
	for _, t := range turns {
		transcript.WriteString(string(t.Role))
		transcript.WriteString(": ")
		transcript.WriteString(t.Content)
		transcript.WriteString("\n")
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript.String()},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func convertTools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
