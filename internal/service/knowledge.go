package service

import (
	"context"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/pagination"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
)

// KnowledgeService handles business logic for knowledge items. Every
// successful mutation queues a change event in the same transaction, so the
// embedding index never silently misses a write.
type KnowledgeService struct {
	itemRepo ItemRepositoryInterface
	txRunner TxRunnerInterface
	uuidGen  UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(itemRepo ItemRepositoryInterface, txRunner TxRunnerInterface) *KnowledgeService {
	return &KnowledgeService{
		itemRepo: itemRepo,
		txRunner: txRunner,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeServiceWithUUIDGen creates a new KnowledgeService with custom UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(itemRepo ItemRepositoryInterface, txRunner TxRunnerInterface, uuidGen UUIDGenerator) *KnowledgeService {
	return &KnowledgeService{
		itemRepo: itemRepo,
		txRunner: txRunner,
		uuidGen:  uuidGen,
	}
}

// CreateItemInput represents the input for creating a knowledge item
type CreateItemInput struct {
	Kind     domain.ItemKind
	Title    string
	Body     string
	Tags     []string
	Metadata map[string]string
}

// UpdateItemInput represents the input for updating a knowledge item
type UpdateItemInput struct {
	ItemID          string
	ExpectedVersion int64
	Patch           domain.ItemPatch
}

type ListItemsInput struct {
	Kind   domain.ItemKind
	Tag    string
	Cursor string
	Limit  int
}

type ListItemsOutput struct {
	Items   []*domain.KnowledgeItem
	Cursor  string
	HasMore bool
}

// CreateItem creates a version-1 knowledge item and queues a create event.
func (s *KnowledgeService) CreateItem(ctx context.Context, input CreateItemInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.CreateItem", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	item := domain.NewKnowledgeItem(s.uuidGen.NewString(), input.Kind, input.Title, input.Body, input.Tags, input.Metadata, now)

	if err := domain.ValidateItem(item); err != nil {
		return nil, err
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Items().Create(ctx, item); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, s.changeEvent(item.ID, item.Version, domain.ChangeKindCreate, now))
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// GetItem retrieves a knowledge item by ID
func (s *KnowledgeService) GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.GetItem", telemetry.SpanAttributes{
		ItemID:    id,
		Operation: "get",
	})
	defer span.End()

	return s.itemRepo.GetByID(ctx, id)
}

// UpdateItem applies a patch against the expected version. A concurrent
// writer having bumped the version first surfaces as ErrVersionConflict;
// the caller re-reads and retries with fresh state.
func (s *KnowledgeService) UpdateItem(ctx context.Context, input UpdateItemInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.UpdateItem", telemetry.SpanAttributes{
		ItemID:    input.ItemID,
		Operation: "update",
	})
	defer span.End()

	current, err := s.itemRepo.GetByID(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if current.Version != input.ExpectedVersion {
		return nil, domain.ErrVersionConflict
	}

	now := time.Now().UTC()
	next := input.Patch.Apply(current, now)

	if err := domain.ValidateItem(next); err != nil {
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Items().Update(ctx, next, input.ExpectedVersion); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, s.changeEvent(next.ID, next.Version, domain.ChangeKindUpdate, now))
	})
	if err != nil {
		return nil, err
	}

	return next, nil
}

// DeleteItem removes the item at the expected version and queues a delete
// event so the index entry is dropped too.
func (s *KnowledgeService) DeleteItem(ctx context.Context, id string, expectedVersion int64) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.DeleteItem", telemetry.SpanAttributes{
		ItemID:    id,
		Operation: "delete",
	})
	defer span.End()

	now := time.Now().UTC()
	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Items().Delete(ctx, id, expectedVersion); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, s.changeEvent(id, expectedVersion, domain.ChangeKindDelete, now))
	})
}

func (s *KnowledgeService) ListItems(ctx context.Context, input ListItemsInput) (*ListItemsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.ListItems", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.Decode(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	page, err := s.itemRepo.List(ctx, input.Kind, input.Tag, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListItemsOutput{
		Items:   page.Items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	}, nil
}

// TagCounts returns the tag inventory across all items.
func (s *KnowledgeService) TagCounts(ctx context.Context) (map[string]int, error) {
	return s.itemRepo.TagCounts(ctx)
}

func (s *KnowledgeService) changeEvent(itemID string, version int64, change domain.ChangeKind, now time.Time) *domain.EmbeddingJob {
	return &domain.EmbeddingJob{
		ID:          s.uuidGen.NewString(),
		ItemID:      itemID,
		ItemVersion: version,
		Change:      change,
		Status:      domain.EmbeddingJobStatusPending,
		CreatedAt:   now,
	}
}
