package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

// schemaFor infers the JSON Schema for a tool input struct. The built-in
// tools call this at startup; an inference failure is a programming error.
func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("failed to build tool schema: %v", err))
	}
	return schema
}

func marshalResult(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return data, nil
}

// toolItem is the compact item view returned by the knowledge tools. Tool
// results flow back into the model context, so only the fields the model
// acts on are included.
type toolItem struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Title    string            `json:"title"`
	Body     string            `json:"body,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Updated  string            `json:"updated_at"`
	Version  int64             `json:"version"`
}

func newToolItem(item *domain.KnowledgeItem) toolItem {
	return toolItem{
		ID:       item.ID,
		Kind:     string(item.Kind),
		Title:    item.Title,
		Body:     item.Body,
		Tags:     item.Tags,
		Metadata: item.Metadata,
		Updated:  item.UpdatedAt.Format(time.RFC3339),
		Version:  item.Version,
	}
}

func newToolItems(items []*domain.KnowledgeItem) []toolItem {
	out := make([]toolItem, len(items))
	for i, item := range items {
		out[i] = newToolItem(item)
	}
	return out
}
