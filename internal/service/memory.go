package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
)

// Summarizer condenses a run of turns into one summary body.
type Summarizer interface {
	Summarize(ctx context.Context, turns []*domain.ConversationTurn) (string, error)
}

// MemoryService owns conversation history: append-only writes, windowed
// reads, and compaction of old turns into summary turns.
type MemoryService struct {
	convRepo    ConversationRepositoryInterface
	summarizer  Summarizer
	windowTurns int
	now         func() time.Time
}

func NewMemoryService(convRepo ConversationRepositoryInterface, summarizer Summarizer, windowTurns int) *MemoryService {
	if windowTurns <= 0 {
		windowTurns = 20
	}
	return &MemoryService{
		convRepo:    convRepo,
		summarizer:  summarizer,
		windowTurns: windowTurns,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AppendTurn writes the next turn of a conversation. Turn ids are assigned
// here and enforced again at the storage layer, so two concurrent appends
// cannot both land on the same id.
func (s *MemoryService) AppendTurn(ctx context.Context, conversationID string, role domain.TurnRole, content string, toolInvocations []string) (*domain.ConversationTurn, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.AppendTurn", telemetry.SpanAttributes{
		ConversationID: conversationID,
		Operation:      "append",
	})
	defer span.End()

	next, err := s.convRepo.NextTurnID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	turn := &domain.ConversationTurn{
		TurnID:          next,
		ConversationID:  conversationID,
		Role:            role,
		Content:         content,
		ToolInvocations: toolInvocations,
		Timestamp:       s.now(),
	}
	if err := domain.ValidateTurn(turn); err != nil {
		return nil, err
	}

	if err := s.convRepo.AppendTurn(ctx, turn); err != nil {
		return nil, err
	}
	return turn, nil
}

// Window returns the context handed to the agent: the latest summary turn
// when one exists, followed by everything after it, capped at the configured
// window size. A truncation never starts mid-way through a tool exchange;
// leading tool turns are trimmed so the window opens on the turn that
// initiated them or later.
func (s *MemoryService) Window(ctx context.Context, conversationID string) ([]*domain.ConversationTurn, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.Window", telemetry.SpanAttributes{
		ConversationID: conversationID,
		Operation:      "window",
	})
	defer span.End()

	summary, err := s.convRepo.LatestSummaryTurn(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var turns []*domain.ConversationTurn
	if summary != nil {
		turns, err = s.convRepo.TurnsSince(ctx, conversationID, summary.TurnID)
	} else {
		turns, err = s.convRepo.RecentTurns(ctx, conversationID, s.windowTurns)
	}
	if err != nil {
		return nil, err
	}

	if len(turns) > s.windowTurns {
		turns = turns[len(turns)-s.windowTurns:]
	}
	turns = trimLeadingToolTurns(turns)

	if summary != nil {
		return append([]*domain.ConversationTurn{summary}, turns...), nil
	}
	return turns, nil
}

// Compact condenses everything outside the current window into a summary
// turn. The old turns stay on disk untouched; the summary simply becomes the
// new window anchor.
func (s *MemoryService) Compact(ctx context.Context, conversationID string) (*domain.ConversationTurn, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.Compact", telemetry.SpanAttributes{
		ConversationID: conversationID,
		Operation:      "compact",
	})
	defer span.End()

	count, err := s.convRepo.CountTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if count <= s.windowTurns {
		return nil, nil
	}

	var after int64
	if summary, err := s.convRepo.LatestSummaryTurn(ctx, conversationID); err != nil {
		return nil, err
	} else if summary != nil {
		after = summary.TurnID
	}

	turns, err := s.convRepo.TurnsSince(ctx, conversationID, after)
	if err != nil {
		return nil, err
	}
	if len(turns) <= s.windowTurns {
		return nil, nil
	}

	// Keep the most recent window out of the summary.
	old := turns[:len(turns)-s.windowTurns]

	content, err := s.summarize(ctx, old)
	if err != nil {
		return nil, err
	}

	return s.AppendTurn(ctx, conversationID, domain.TurnRoleSummary, content, nil)
}

func (s *MemoryService) summarize(ctx context.Context, turns []*domain.ConversationTurn) (string, error) {
	if s.summarizer != nil {
		return s.summarizer.Summarize(ctx, turns)
	}
	return fallbackSummary(turns), nil
}

// fallbackSummary is used when no model-backed summarizer is configured: a
// terse transcript digest that at least preserves who said what.
func fallbackSummary(turns []*domain.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Earlier conversation:\n")
	for _, t := range turns {
		content := t.Content
		if runes := []rune(content); len(runes) > 120 {
			content = string(runes[:120]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", t.Role, content)
	}
	return b.String()
}

func trimLeadingToolTurns(turns []*domain.ConversationTurn) []*domain.ConversationTurn {
	for len(turns) > 0 && turns[0].Role == domain.TurnRoleTool {
		turns = turns[1:]
	}
	return turns
}
