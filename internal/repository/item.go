package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/pagination"
)

const itemColumns = `id, kind, title, body, tags, metadata, created_at, updated_at, version`

type ItemRepository struct {
	db dbtx
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: pool}
}

func NewItemRepositoryWithTx(tx pgx.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Kind, item.Title, item.Body, item.Tags, item.Metadata,
		item.CreatedAt, item.UpdatedAt, item.Version,
	)
	return err
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *ItemRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.KnowledgeItem, error) {
	if len(ids) == 0 {
		return []*domain.KnowledgeItem{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// Update applies the new row state only when the stored version still equals
// expectedVersion. A zero-row result distinguishes a missing item from a
// concurrent writer having bumped the version first.
func (r *ItemRepository) Update(ctx context.Context, item *domain.KnowledgeItem, expectedVersion int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET title = $1, body = $2, tags = $3, metadata = $4, updated_at = $5, version = $6
		 WHERE id = $7 AND version = $8`,
		item.Title, item.Body, item.Tags, item.Metadata, item.UpdatedAt, item.Version,
		item.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, item.ID)
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_items WHERE id = $1 AND version = $2`,
		id, expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

func (r *ItemRepository) staleOrMissing(ctx context.Context, id string) error {
	var version int64
	err := r.db.QueryRow(ctx,
		`SELECT version FROM knowledge_items WHERE id = $1`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrItemNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

// List pages through items ordered by recency, optionally filtered by kind
// and/or a tag.
func (r *ItemRepository) List(ctx context.Context, kind domain.ItemKind, tag string, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.KnowledgeItem], error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + itemColumns + ` FROM knowledge_items WHERE 1=1`
	args := []any{}
	n := 0

	if kind != "" {
		n++
		query += ` AND kind = $` + strconv.Itoa(n)
		args = append(args, kind)
	}
	if tag != "" {
		n++
		query += ` AND $` + strconv.Itoa(n) + ` = ANY(tags)`
		args = append(args, tag)
	}
	if cursor != nil {
		query += ` AND (updated_at, id) < ($` + strconv.Itoa(n+1) + `, $` + strconv.Itoa(n+2) + `)`
		args = append(args, cursor.UpdatedAt, cursor.LastID)
		n += 2
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT $` + strconv.Itoa(n+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var next string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		next = pagination.Encode(last.ID, last.UpdatedAt)
	}

	return &pagination.Page[*domain.KnowledgeItem]{
		Items:   items,
		Cursor:  next,
		HasMore: hasMore,
	}, nil
}

// TagCounts returns every distinct tag with the number of items carrying it.
func (r *ItemRepository) TagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tag, COUNT(*) FROM knowledge_items, unnest(tags) AS tag GROUP BY tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, err
		}
		counts[tag] = count
	}
	return counts, rows.Err()
}

// CountByKind returns item counts grouped by kind.
func (r *ItemRepository) CountByKind(ctx context.Context) (map[domain.ItemKind]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT kind, COUNT(*) FROM knowledge_items GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ItemKind]int)
	for rows.Next() {
		var kind domain.ItemKind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

func scanItem(row pgx.Row) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	if err := row.Scan(&item.ID, &item.Kind, &item.Title, &item.Body, &item.Tags,
		&item.Metadata, &item.CreatedAt, &item.UpdatedAt, &item.Version); err != nil {
		return nil, err
	}
	if item.Metadata == nil {
		item.Metadata = map[string]string{}
	}
	return &item, nil
}

func scanItemRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}
