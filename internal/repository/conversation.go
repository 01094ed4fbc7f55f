package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

const turnColumns = `conversation_id, turn_id, role, content, tool_invocations, created_at`
const invocationColumns = `id, tool_name, arguments, status, result, error_kind, error_msg, started_at, finished_at`

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// AppendTurn inserts a turn only when its turn_id is exactly one past the
// highest stored turn for the conversation. Anything else means a writer
// raced us or the caller replayed an old id.
func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *domain.ConversationTurn) error {
	cmdTag, err := r.db.Exec(ctx,
		`INSERT INTO conversation_turns (`+turnColumns+`)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE $2 = (SELECT COALESCE(MAX(turn_id), 0) + 1
		             FROM conversation_turns WHERE conversation_id = $1)`,
		turn.ConversationID, turn.TurnID, turn.Role, turn.Content,
		turn.ToolInvocations, turn.Timestamp,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTurnOutOfOrder
	}
	return nil
}

// NextTurnID returns the turn id a new append must carry.
func (r *ConversationRepository) NextTurnID(ctx context.Context, conversationID string) (int64, error) {
	var next int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(turn_id), 0) + 1 FROM conversation_turns WHERE conversation_id = $1`,
		conversationID,
	).Scan(&next)
	return next, err
}

// RecentTurns returns the last n turns in chronological order.
func (r *ConversationRepository) RecentTurns(ctx context.Context, conversationID string, n int) ([]*domain.ConversationTurn, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+turnColumns+` FROM (
			 SELECT `+turnColumns+` FROM conversation_turns
			 WHERE conversation_id = $1
			 ORDER BY turn_id DESC
			 LIMIT $2
		 ) recent ORDER BY turn_id ASC`,
		conversationID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurnRows(rows)
}

// TurnsSince returns all turns with turn_id strictly greater than after.
func (r *ConversationRepository) TurnsSince(ctx context.Context, conversationID string, after int64) ([]*domain.ConversationTurn, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+turnColumns+` FROM conversation_turns
		 WHERE conversation_id = $1 AND turn_id > $2
		 ORDER BY turn_id ASC`,
		conversationID, after,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurnRows(rows)
}

// LatestSummaryTurn returns the most recent summary turn, or nil when the
// conversation has never been compacted.
func (r *ConversationRepository) LatestSummaryTurn(ctx context.Context, conversationID string) (*domain.ConversationTurn, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+turnColumns+` FROM conversation_turns
		 WHERE conversation_id = $1 AND role = $2
		 ORDER BY turn_id DESC LIMIT 1`,
		conversationID, domain.TurnRoleSummary,
	)
	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return turn, nil
}

func (r *ConversationRepository) CountTurns(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_turns WHERE conversation_id = $1`,
		conversationID,
	).Scan(&count)
	return count, err
}

func (r *ConversationRepository) CreateInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tool_invocations (`+invocationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.ToolName, inv.Arguments, inv.Status, inv.Result,
		nullableString(inv.ErrorKind), nullableString(inv.ErrorMsg),
		inv.StartedAt, inv.FinishedAt,
	)
	return err
}

// FinishInvocation moves a pending invocation to a terminal status. A second
// finish is a no-op: the first writer wins and the record never changes again.
func (r *ConversationRepository) FinishInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE tool_invocations
		 SET status = $1, result = $2, error_kind = $3, error_msg = $4, finished_at = $5
		 WHERE id = $6 AND status = $7`,
		inv.Status, inv.Result, nullableString(inv.ErrorKind), nullableString(inv.ErrorMsg),
		inv.FinishedAt, inv.ID, domain.InvocationStatusPending,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tool_invocations WHERE id = $1)`, inv.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrInvocationNotFound
		}
	}
	return nil
}

func (r *ConversationRepository) GetInvocation(ctx context.Context, id string) (*domain.ToolInvocation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+invocationColumns+` FROM tool_invocations WHERE id = $1`, id)
	inv, err := scanInvocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvocationNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *ConversationRepository) GetInvocationsByIDs(ctx context.Context, ids []string) ([]*domain.ToolInvocation, error) {
	if len(ids) == 0 {
		return []*domain.ToolInvocation{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+invocationColumns+` FROM tool_invocations WHERE id = ANY($1) ORDER BY started_at ASC`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ToolInvocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, inv)
	}
	return results, rows.Err()
}

func scanTurn(row pgx.Row) (*domain.ConversationTurn, error) {
	var turn domain.ConversationTurn
	if err := row.Scan(&turn.ConversationID, &turn.TurnID, &turn.Role, &turn.Content,
		&turn.ToolInvocations, &turn.Timestamp); err != nil {
		return nil, err
	}
	return &turn, nil
}

func scanTurnRows(rows pgx.Rows) ([]*domain.ConversationTurn, error) {
	var results []*domain.ConversationTurn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, turn)
	}
	return results, rows.Err()
}

func scanInvocation(row pgx.Row) (*domain.ToolInvocation, error) {
	var inv domain.ToolInvocation
	var errorKind, errorMsg pgtype.Text
	if err := row.Scan(&inv.ID, &inv.ToolName, &inv.Arguments, &inv.Status, &inv.Result,
		&errorKind, &errorMsg, &inv.StartedAt, &inv.FinishedAt); err != nil {
		return nil, err
	}
	if errorKind.Valid {
		inv.ErrorKind = errorKind.String
	}
	if errorMsg.Valid {
		inv.ErrorMsg = errorMsg.String
	}
	return &inv, nil
}
