package tools

import (
	"context"
	"encoding/json"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

// SearchAPI is the search surface the knowledge_search tool calls.
// Satisfied by service.SearchService.
type SearchAPI interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type searchKnowledgeInput struct {
	Query string   `json:"query" jsonschema:"Natural-language search query."`
	Kinds []string `json:"kinds,omitempty" jsonschema:"Restrict to item kinds: document, note, task, calendar_event."`
	Tags  []string `json:"tags,omitempty" jsonschema:"Boost items carrying these tags."`
	Limit int      `json:"limit,omitempty" jsonschema:"Maximum results, default 10."`
}

type searchKnowledgeResult struct {
	Item  toolItem `json:"item"`
	Score float64  `json:"score"`
}

// SearchTool returns the semantic search tool.
func SearchTool(search SearchAPI) Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        "search_knowledge",
			Description: "Search stored documents, notes, tasks and events by meaning.",
			InputSchema: schemaFor[searchKnowledgeInput](),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var in searchKnowledgeInput
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			kinds := make([]domain.ItemKind, 0, len(in.Kinds))
			for _, k := range in.Kinds {
				kind := domain.ItemKind(k)
				if !domain.IsValidItemKind(kind) {
					return nil, domain.ErrInvalidItemKind
				}
				kinds = append(kinds, kind)
			}
			results, err := search.Search(ctx, service.SearchInput{
				Query: in.Query,
				Kinds: kinds,
				Tags:  in.Tags,
				Limit: in.Limit,
			})
			if err != nil {
				return nil, err
			}
			out := make([]searchKnowledgeResult, len(results))
			for i, r := range results {
				out[i] = searchKnowledgeResult{Item: newToolItem(r.Item), Score: r.Score}
			}
			return marshalResult(out)
		},
	}
}
