package service

import (
	"context"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
)

// StatsCountersInterface aggregates the count queries stats needs beyond the
// item repository.
type StatsCountersInterface interface {
	CountStale(ctx context.Context) (int, error)
}

// JobCountersInterface reports embedding queue depth.
type JobCountersInterface interface {
	CountPending(ctx context.Context) (int, error)
}

// SearchCountersInterface reports search volume.
type SearchCountersInterface interface {
	CountSearches(ctx context.Context) (int, error)
}

// Stats is the operational snapshot served at /stats.
type Stats struct {
	ItemsByKind     map[domain.ItemKind]int `json:"items_by_kind"`
	TotalItems      int                     `json:"total_items"`
	DistinctTags    int                     `json:"distinct_tags"`
	PendingJobs     int                     `json:"pending_jobs"`
	StaleEmbeddings int                     `json:"stale_embeddings"`
	TotalSearches   int                     `json:"total_searches"`
}

type StatsService struct {
	itemRepo   ItemRepositoryInterface
	embedStats StatsCountersInterface
	jobStats   JobCountersInterface
	searches   SearchCountersInterface
}

func NewStatsService(itemRepo ItemRepositoryInterface, embedStats StatsCountersInterface, jobStats JobCountersInterface, searches SearchCountersInterface) *StatsService {
	return &StatsService{
		itemRepo:   itemRepo,
		embedStats: embedStats,
		jobStats:   jobStats,
		searches:   searches,
	}
}

func (s *StatsService) Snapshot(ctx context.Context) (*Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "StatsService.Snapshot", telemetry.SpanAttributes{
		Operation: "stats",
	})
	defer span.End()

	byKind, err := s.itemRepo.CountByKind(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.itemRepo.TagCounts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ItemsByKind:  byKind,
		DistinctTags: len(tags),
	}
	for _, n := range byKind {
		stats.TotalItems += n
	}

	if s.embedStats != nil {
		if stats.StaleEmbeddings, err = s.embedStats.CountStale(ctx); err != nil {
			return nil, err
		}
	}
	if s.jobStats != nil {
		if stats.PendingJobs, err = s.jobStats.CountPending(ctx); err != nil {
			return nil, err
		}
	}
	if s.searches != nil {
		if stats.TotalSearches, err = s.searches.CountSearches(ctx); err != nil {
			return nil, err
		}
	}

	return stats, nil
}
