package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/pagination"
)

// ItemRepositoryInterface defines the repository interface for knowledge item persistence
type ItemRepositoryInterface interface {
	Create(ctx context.Context, item *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.KnowledgeItem, error)
	Update(ctx context.Context, item *domain.KnowledgeItem, expectedVersion int64) error
	Delete(ctx context.Context, id string, expectedVersion int64) error
	List(ctx context.Context, kind domain.ItemKind, tag string, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.KnowledgeItem], error)
	TagCounts(ctx context.Context) (map[string]int, error)
	CountByKind(ctx context.Context) (map[domain.ItemKind]int, error)
}

// EmbeddingRepositoryInterface defines the repository interface for the embedding index
type EmbeddingRepositoryInterface interface {
	Upsert(ctx context.Context, rec *domain.EmbeddingRecord) error
	Get(ctx context.Context, itemID string) (*domain.EmbeddingRecord, error)
	Remove(ctx context.Context, itemID string) error
	SearchCandidates(ctx context.Context, vector []float32, kinds []domain.ItemKind, limit int) ([]*SearchCandidate, error)
	UnembeddedCandidates(ctx context.Context, kinds []domain.ItemKind, limit int) ([]*SearchCandidate, error)
	CountStale(ctx context.Context) (int, error)
}

// EmbeddingJobRepositoryInterface defines the repository interface for change event persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// ConversationRepositoryInterface defines the repository interface for conversation memory
type ConversationRepositoryInterface interface {
	AppendTurn(ctx context.Context, turn *domain.ConversationTurn) error
	NextTurnID(ctx context.Context, conversationID string) (int64, error)
	RecentTurns(ctx context.Context, conversationID string, n int) ([]*domain.ConversationTurn, error)
	TurnsSince(ctx context.Context, conversationID string, after int64) ([]*domain.ConversationTurn, error)
	LatestSummaryTurn(ctx context.Context, conversationID string) (*domain.ConversationTurn, error)
	CountTurns(ctx context.Context, conversationID string) (int, error)
	CreateInvocation(ctx context.Context, inv *domain.ToolInvocation) error
	FinishInvocation(ctx context.Context, inv *domain.ToolInvocation) error
	GetInvocation(ctx context.Context, id string) (*domain.ToolInvocation, error)
	GetInvocationsByIDs(ctx context.Context, ids []string) ([]*domain.ToolInvocation, error)
}

// TxRepositories exposes the repositories bound to one transaction.
type TxRepositories interface {
	Items() ItemRepositoryInterface
	EmbeddingJobs() EmbeddingJobRepositoryInterface
	Embeddings() EmbeddingRepositoryInterface
	Conversations() ConversationRepositoryInterface
}

// TxRunnerInterface runs a function against transactional repositories.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// SearchCandidate is an item pulled into scoring, with its cosine similarity
// when a current embedding exists.
type SearchCandidate struct {
	Item       *domain.KnowledgeItem
	Similarity float64
	Embedded   bool
}

// SearchLogEntry records one executed search.
type SearchLogEntry struct {
	Query      string
	Kinds      []string
	Results    []SearchLogResult
	DurationMs int64
}

type SearchLogResult struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
