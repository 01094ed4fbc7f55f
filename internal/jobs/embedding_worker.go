package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
	// claimBatchSize bounds how many change events one poll picks up
	claimBatchSize = 100
)

// ChangeEventRepository defines the interface for change event persistence
type ChangeEventRepository interface {
	// ClaimPending retrieves and claims pending change events
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)

	// UpdateStatus updates the status of a change event
	UpdateStatus(ctx context.Context, id string, status domain.EmbeddingJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a change event
	IncrementRetries(ctx context.Context, id string) error
}

// IndexMaintainer applies change events to the embedding index
type IndexMaintainer interface {
	EmbedItem(ctx context.Context, itemID string, itemVersion int64) error
	RemoveItem(ctx context.Context, itemID string) error
}

// EmbeddingWorker consumes the change event queue and keeps the embedding
// index converging on the knowledge store.
type EmbeddingWorker struct {
	repo  ChangeEventRepository
	index IndexMaintainer
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo ChangeEventRepository, index IndexMaintainer) *EmbeddingWorker {
	return &EmbeddingWorker{
		repo:  repo,
		index: index,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending embedding jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	var err error
	switch job.Change {
	case domain.ChangeKindCreate, domain.ChangeKindUpdate:
		err = w.index.EmbedItem(ctx, job.ItemID, job.ItemVersion)
		// The item may be gone by the time the event is consumed; the
		// delete event behind it owns the index cleanup.
		if errors.Is(err, domain.ErrItemNotFound) {
			err = nil
		}
	case domain.ChangeKindDelete:
		err = w.index.RemoveItem(ctx, job.ItemID)
	default:
		return w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed,
			fmt.Sprintf("unknown change kind %q", job.Change))
	}

	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *EmbeddingWorker) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
