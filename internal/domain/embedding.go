package domain

import "time"

// EmbeddingRecord holds the vector computed for a knowledge item at a
// specific version. ItemID is a weak back-reference: the index looks items
// up but never owns their lifecycle. A record is valid only while
// ItemVersion equals the item's current version; stale records are excluded
// from search and replaced by the next upsert.
type EmbeddingRecord struct {
	ItemID      string
	Vector      []float32
	ItemVersion int64
	// Unembedded marks items whose text could not be vectorized (e.g. empty
	// body). They keep a zero vector, stay filterable by tags/metadata, and
	// are excluded from similarity ranking.
	Unembedded bool
	CreatedAt  time.Time
}

// ChangeKind classifies a knowledge change event
type ChangeKind string

const (
	ChangeKindCreate ChangeKind = "create"
	ChangeKindUpdate ChangeKind = "update"
	ChangeKindDelete ChangeKind = "delete"
)

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob is the change event published by every successful Knowledge
// Store mutation and consumed asynchronously by the embedding worker.
// Create/update events trigger re-embedding at ItemVersion; delete events
// instruct index removal. The queue bounds the staleness window between a
// write and its visibility in search.
type EmbeddingJob struct {
	ID          string
	ItemID      string
	ItemVersion int64
	Change      ChangeKind
	Status      EmbeddingJobStatus
	Retries     int
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// IsValidEmbeddingJobStatus checks if a status value is valid
func IsValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing, EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
