package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Cursor marks the position after the last item of the previous page.
// Listings order by (updated_at DESC, id DESC), so both fields are needed
// to resume deterministically.
type Cursor struct {
	LastID    string    `json:"id"`
	UpdatedAt time.Time `json:"at"`
}

// Page is a paginated result set.
type Page[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var ErrInvalidCursor = errors.New("invalid cursor format")

func Encode(lastID string, updatedAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw, _ := json.Marshal(Cursor{LastID: lastID, UpdatedAt: updatedAt.UTC()})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func Decode(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if c.LastID == "" || c.UpdatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Next builds the cursor for the following page, or "" when the current
// page was short (no further items).
func Next[T any](items []T, limit int, id func(T) string, updatedAt func(T) time.Time) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	last := items[len(items)-1]
	return Encode(id(last), updatedAt(last))
}
