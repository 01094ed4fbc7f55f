package tools

import (
	"context"
	"encoding/json"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

// KnowledgeAPI is the knowledge store surface the built-in tools call.
// Satisfied by service.KnowledgeService.
type KnowledgeAPI interface {
	CreateItem(ctx context.Context, input service.CreateItemInput) (*domain.KnowledgeItem, error)
	GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	UpdateItem(ctx context.Context, input service.UpdateItemInput) (*domain.KnowledgeItem, error)
	DeleteItem(ctx context.Context, id string, expectedVersion int64) error
	ListItems(ctx context.Context, input service.ListItemsInput) (*service.ListItemsOutput, error)
}

type createNoteInput struct {
	Title string   `json:"title" jsonschema:"Short title for the note."`
	Body  string   `json:"body,omitempty" jsonschema:"Note content."`
	Tags  []string `json:"tags,omitempty" jsonschema:"Tags used for later retrieval."`
}

type updateNoteInput struct {
	ID    string   `json:"id" jsonschema:"ID of the note to update."`
	Title string   `json:"title,omitempty" jsonschema:"New title. Omit to keep the current one."`
	Body  string   `json:"body,omitempty" jsonschema:"New content. Omit to keep the current one."`
	Tags  []string `json:"tags,omitempty" jsonschema:"Replacement tag set. Omit to keep current tags."`
}

type deleteNoteInput struct {
	ID string `json:"id" jsonschema:"ID of the note to delete."`
}

type listNotesInput struct {
	Tag   string `json:"tag,omitempty" jsonschema:"Only notes carrying this tag."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum notes to return, default 20."`
}

// NoteTools returns the note-taking tools backed by the knowledge store.
func NoteTools(knowledge KnowledgeAPI) []Tool {
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "create_note",
				Description: "Save a new note with optional tags.",
				InputSchema: schemaFor[createNoteInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in createNoteInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				item, err := knowledge.CreateItem(ctx, service.CreateItemInput{
					Kind:  domain.ItemKindNote,
					Title: in.Title,
					Body:  in.Body,
					Tags:  in.Tags,
				})
				if err != nil {
					return nil, err
				}
				return marshalResult(newToolItem(item))
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "update_note",
				Description: "Update the title, content or tags of an existing note.",
				InputSchema: schemaFor[updateNoteInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in updateNoteInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				current, err := knowledge.GetItem(ctx, in.ID)
				if err != nil {
					return nil, err
				}
				patch := domain.ItemPatch{}
				if in.Title != "" {
					patch.Title = &in.Title
				}
				if in.Body != "" {
					patch.Body = &in.Body
				}
				if in.Tags != nil {
					patch.Tags = in.Tags
				}
				item, err := knowledge.UpdateItem(ctx, service.UpdateItemInput{
					ItemID:          in.ID,
					ExpectedVersion: current.Version,
					Patch:           patch,
				})
				if err != nil {
					return nil, err
				}
				return marshalResult(newToolItem(item))
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "delete_note",
				Description: "Delete a note by its ID.",
				InputSchema: schemaFor[deleteNoteInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in deleteNoteInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				current, err := knowledge.GetItem(ctx, in.ID)
				if err != nil {
					return nil, err
				}
				if err := knowledge.DeleteItem(ctx, in.ID, current.Version); err != nil {
					return nil, err
				}
				return marshalResult(map[string]string{"deleted": in.ID})
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "list_notes",
				Description: "List stored notes, optionally filtered by tag.",
				InputSchema: schemaFor[listNotesInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in listNotesInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				if in.Limit <= 0 {
					in.Limit = 20
				}
				out, err := knowledge.ListItems(ctx, service.ListItemsInput{
					Kind:  domain.ItemKindNote,
					Tag:   in.Tag,
					Limit: in.Limit,
				})
				if err != nil {
					return nil, err
				}
				return marshalResult(newToolItems(out.Items))
			},
		},
	}
}
