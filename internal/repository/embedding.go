package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

func NewEmbeddingRepositoryWithTx(tx pgx.Tx) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx}
}

// Upsert stores the vector for an item version. Re-processing an old change
// event is a no-op: the stored record only moves forward in item_version, so
// replays cannot clobber a newer embedding.
func (r *EmbeddingRepository) Upsert(ctx context.Context, rec *domain.EmbeddingRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO embeddings (item_id, vector, item_version, unembedded, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (item_id) DO UPDATE
		 SET vector = EXCLUDED.vector,
		     item_version = EXCLUDED.item_version,
		     unembedded = EXCLUDED.unembedded,
		     created_at = EXCLUDED.created_at
		 WHERE embeddings.item_version <= EXCLUDED.item_version`,
		rec.ItemID, pgvector.NewVector(rec.Vector), rec.ItemVersion, rec.Unembedded, rec.CreatedAt,
	)
	return err
}

func (r *EmbeddingRepository) Get(ctx context.Context, itemID string) (*domain.EmbeddingRecord, error) {
	var rec domain.EmbeddingRecord
	var vec pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT item_id, vector, item_version, unembedded, created_at
		 FROM embeddings WHERE item_id = $1`,
		itemID,
	).Scan(&rec.ItemID, &vec, &rec.ItemVersion, &rec.Unembedded, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmbeddingNotFound
		}
		return nil, err
	}
	rec.Vector = vec.Slice()
	return &rec, nil
}

// Remove drops the index entry for a deleted item. Missing entries are fine:
// delete events may arrive before the item was ever embedded.
func (r *EmbeddingRepository) Remove(ctx context.Context, itemID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM embeddings WHERE item_id = $1`, itemID)
	return err
}

// SearchCandidates returns up to limit items ranked by cosine similarity to
// the query vector. Only current embeddings participate: a record whose
// item_version trails the item's version is treated as absent.
func (r *EmbeddingRepository) SearchCandidates(ctx context.Context, vector []float32, kinds []domain.ItemKind, limit int) ([]*service.SearchCandidate, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + prefixColumns("i", itemColumns) + `, 1 - (e.vector <=> $1) AS similarity
		FROM embeddings e
		JOIN knowledge_items i ON i.id = e.item_id AND i.version = e.item_version
		WHERE e.unembedded = FALSE`
	args := []any{pgvector.NewVector(vector)}

	if len(kinds) > 0 {
		query += ` AND i.kind = ANY($2)`
		args = append(args, kinds)
	}
	// updated_at breaks similarity ties so the candidate cut is stable.
	query += ` ORDER BY e.vector <=> $1, i.updated_at DESC LIMIT $` + argN(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*service.SearchCandidate
	for rows.Next() {
		var item domain.KnowledgeItem
		var similarity float64
		if err := rows.Scan(&item.ID, &item.Kind, &item.Title, &item.Body, &item.Tags,
			&item.Metadata, &item.CreatedAt, &item.UpdatedAt, &item.Version, &similarity); err != nil {
			return nil, err
		}
		results = append(results, &service.SearchCandidate{
			Item:       &item,
			Similarity: similarity,
			Embedded:   true,
		})
	}
	return results, rows.Err()
}

// UnembeddedCandidates returns recent items with no current embedding: never
// embedded, embedded at a stale version, or flagged unembedded. They rank on
// recency and tags alone.
func (r *EmbeddingRepository) UnembeddedCandidates(ctx context.Context, kinds []domain.ItemKind, limit int) ([]*service.SearchCandidate, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + prefixColumns("i", itemColumns) + `
		FROM knowledge_items i
		LEFT JOIN embeddings e
		  ON e.item_id = i.id AND e.item_version = i.version AND e.unembedded = FALSE
		WHERE e.item_id IS NULL`
	args := []any{}

	if len(kinds) > 0 {
		query += ` AND i.kind = ANY($1)`
		args = append(args, kinds)
	}
	query += ` ORDER BY i.updated_at DESC LIMIT $` + argN(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, err
	}

	results := make([]*service.SearchCandidate, 0, len(items))
	for _, item := range items {
		results = append(results, &service.SearchCandidate{Item: item})
	}
	return results, nil
}

// CountStale reports index lag: items whose current version has no valid
// embedding yet.
func (r *EmbeddingRepository) CountStale(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM knowledge_items i
		 LEFT JOIN embeddings e ON e.item_id = i.id AND e.item_version = i.version
		 WHERE e.item_id IS NULL`,
	).Scan(&count)
	return count, err
}
