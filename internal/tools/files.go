package tools

import (
	"context"
	"encoding/json"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

// DocumentArchive is the object-store surface the file tools use.
// Satisfied by storage.S3Client.
type DocumentArchive interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

type listDocumentsInput struct {
	Tag   string `json:"tag,omitempty" jsonschema:"Only documents carrying this tag."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum documents to return, default 20."`
}

type getDocumentLinkInput struct {
	ID string `json:"id" jsonschema:"ID of the ingested document."`
}

type deleteDocumentInput struct {
	ID string `json:"id" jsonschema:"ID of the document to delete."`
}

// FileTools returns the document-management tools. The archive is optional;
// without it get_document_link reports the document as link-less and delete
// removes only the knowledge item.
func FileTools(knowledge KnowledgeAPI, archive DocumentArchive) []Tool {
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "list_documents",
				Description: "List ingested documents with their source filenames.",
				InputSchema: schemaFor[listDocumentsInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in listDocumentsInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				if in.Limit <= 0 {
					in.Limit = 20
				}
				out, err := knowledge.ListItems(ctx, service.ListItemsInput{
					Kind:  domain.ItemKindDocument,
					Tag:   in.Tag,
					Limit: in.Limit,
				})
				if err != nil {
					return nil, err
				}
				return marshalResult(newToolItems(out.Items))
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_document_link",
				Description: "Get a temporary download link for an ingested document.",
				InputSchema: schemaFor[getDocumentLinkInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in getDocumentLinkInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				item, err := knowledge.GetItem(ctx, in.ID)
				if err != nil {
					return nil, err
				}
				if item.Kind != domain.ItemKindDocument {
					return nil, domain.NewDomainError(domain.ErrCodeValidation,
						"item is not an ingested document")
				}
				key := item.Metadata[domain.MetaStorageKey]
				if key == "" || archive == nil {
					return marshalResult(map[string]any{
						"id":        item.ID,
						"filename":  item.Metadata[domain.MetaSourceFilename],
						"available": false,
					})
				}
				url, err := archive.GenerateDownloadURL(ctx, key)
				if err != nil {
					return nil, err
				}
				return marshalResult(map[string]any{
					"id":        item.ID,
					"filename":  item.Metadata[domain.MetaSourceFilename],
					"available": true,
					"url":       url,
				})
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "delete_document",
				Description: "Delete an ingested document and its archived file.",
				InputSchema: schemaFor[deleteDocumentInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in deleteDocumentInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				item, err := knowledge.GetItem(ctx, in.ID)
				if err != nil {
					return nil, err
				}
				if item.Kind != domain.ItemKindDocument {
					return nil, domain.NewDomainError(domain.ErrCodeValidation,
						"item is not an ingested document")
				}
				if err := knowledge.DeleteItem(ctx, in.ID, item.Version); err != nil {
					return nil, err
				}
				if key := item.Metadata[domain.MetaStorageKey]; key != "" && archive != nil {
					// Archive cleanup is best effort; the item is already gone.
					if err := archive.DeleteObject(ctx, key); err != nil {
						return marshalResult(map[string]any{
							"deleted":          in.ID,
							"archive_retained": true,
						})
					}
				}
				return marshalResult(map[string]string{"deleted": in.ID})
			},
		},
	}
}
