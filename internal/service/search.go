package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
)

// SearchWeights are the scoring coefficients. Scores combine semantic
// similarity, recency decay, and tag overlap; each component lies in [0, 1].
type SearchWeights struct {
	Semantic float64
	Recency  float64
	Tag      float64
}

func DefaultSearchWeights() SearchWeights {
	return SearchWeights{Semantic: 0.7, Recency: 0.2, Tag: 0.1}
}

// SearchLogRepositoryInterface defines the repository interface for search logging
type SearchLogRepositoryInterface interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}

// SearchService ranks knowledge items against a query.
type SearchService struct {
	client   EmbeddingClient
	embRepo  EmbeddingRepositoryInterface
	logRepo  SearchLogRepositoryInterface
	weights  SearchWeights
	halfLife time.Duration
	now      func() time.Time
}

func NewSearchService(client EmbeddingClient, embRepo EmbeddingRepositoryInterface, logRepo SearchLogRepositoryInterface, weights SearchWeights, halfLife time.Duration) *SearchService {
	if halfLife <= 0 {
		halfLife = 168 * time.Hour
	}
	return &SearchService{
		client:   client,
		embRepo:  embRepo,
		logRepo:  logRepo,
		weights:  weights,
		halfLife: halfLife,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SearchInput struct {
	Query string
	Kinds []domain.ItemKind
	Tags  []string
	Limit int
}

type SearchResult struct {
	Item       *domain.KnowledgeItem
	Score      float64
	Similarity float64
	Recency    float64
	TagOverlap float64
	Embedded   bool
}

// candidateFactor sizes the scoring pool relative to the requested limit, so
// recency and tag boosts can promote items beyond the raw similarity cutoff.
const candidateFactor = 4

// Search embeds the query, pulls a candidate pool, and ranks it with the
// weighted score. Items without a current embedding drop the semantic
// component and have the remaining weights renormalized, so a stale index
// degrades ranking quality but never hides an item.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	poolSize := limit * candidateFactor

	started := s.now()

	vector, err := s.client.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	embedded, err := s.embRepo.SearchCandidates(ctx, vector, input.Kinds, poolSize)
	if err != nil {
		return nil, err
	}
	unembedded, err := s.embRepo.UnembeddedCandidates(ctx, input.Kinds, poolSize)
	if err != nil {
		return nil, err
	}

	queryTags := domain.NormalizeTags(input.Tags)
	results := make([]*SearchResult, 0, len(embedded)+len(unembedded))
	for _, c := range append(embedded, unembedded...) {
		results = append(results, s.score(c, queryTags, started))
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}

	s.logSearch(ctx, query, input.Kinds, results, time.Since(started))
	return results, nil
}

func (s *SearchService) score(c *SearchCandidate, queryTags []string, now time.Time) *SearchResult {
	recency := recencyDecay(now.Sub(c.Item.UpdatedAt), s.halfLife)
	overlap := tagOverlap(queryTags, c.Item)

	var score float64
	if c.Embedded {
		score = s.weights.Semantic*clamp01(c.Similarity) +
			s.weights.Recency*recency +
			s.weights.Tag*overlap
	} else {
		// No usable vector: redistribute the semantic weight across the
		// remaining components.
		rest := s.weights.Recency + s.weights.Tag
		if rest > 0 {
			score = (s.weights.Recency*recency + s.weights.Tag*overlap) / rest
		}
	}

	return &SearchResult{
		Item:       c.Item,
		Score:      score,
		Similarity: c.Similarity,
		Recency:    recency,
		TagOverlap: overlap,
		Embedded:   c.Embedded,
	}
}

// recencyDecay halves with every half-life of age. Future timestamps clamp
// to 1.
func recencyDecay(age, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp2(-age.Hours() / halfLife.Hours())
}

// tagOverlap is the fraction of query tags the item carries. Queries without
// tags contribute zero, leaving ranking to the other components.
func tagOverlap(queryTags []string, item *domain.KnowledgeItem) float64 {
	if len(queryTags) == 0 {
		return 0
	}
	matched := 0
	for _, tag := range queryTags {
		if item.HasTag(tag) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTags))
}

// sortResults orders by score descending with deterministic tie-breaking on
// recency and then ID, so repeated queries return stable orderings.
func sortResults(results []*SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Item.UpdatedAt.Equal(results[j].Item.UpdatedAt) {
			return results[i].Item.UpdatedAt.After(results[j].Item.UpdatedAt)
		}
		return results[i].Item.ID < results[j].Item.ID
	})
}

func (s *SearchService) logSearch(ctx context.Context, query string, kinds []domain.ItemKind, results []*SearchResult, elapsed time.Duration) {
	if s.logRepo == nil {
		return
	}

	entry := SearchLogEntry{
		Query:      query,
		DurationMs: elapsed.Milliseconds(),
	}
	for _, k := range kinds {
		entry.Kinds = append(entry.Kinds, string(k))
	}
	for _, r := range results {
		entry.Results = append(entry.Results, SearchLogResult{ItemID: r.Item.ID, Score: r.Score})
	}

	if _, err := s.logRepo.CreateSearchLog(ctx, entry); err != nil {
		telemetry.CaptureError(ctx, err)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
