package service

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
)

// DocumentParser extracts indexable text from an uploaded file.
type DocumentParser interface {
	Parse(filename, contentType string, data []byte) (string, error)
}

// ArchiveStore keeps the original uploaded bytes.
type ArchiveStore interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
}

// IngestService turns uploaded files into document knowledge items: the
// parsed text becomes the item body, the raw bytes are archived, and the
// storage key rides along in the item metadata.
type IngestService struct {
	knowledge *KnowledgeService
	parser    DocumentParser
	archive   ArchiveStore
	uuidGen   UUIDGenerator
}

func NewIngestService(knowledge *KnowledgeService, parser DocumentParser, archive ArchiveStore) *IngestService {
	return &IngestService{
		knowledge: knowledge,
		parser:    parser,
		archive:   archive,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

type IngestDocumentInput struct {
	Filename    string
	ContentType string
	Data        []byte
	Tags        []string
}

func (s *IngestService) IngestDocument(ctx context.Context, input IngestDocumentInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestDocument", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(input.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "file is empty")
	}

	text, err := s.parser.Parse(input.Filename, input.ContentType, input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	metadata := map[string]string{
		domain.MetaSourceFilename: input.Filename,
		domain.MetaFileType:       input.ContentType,
		domain.MetaFileSize:       strconv.Itoa(len(input.Data)),
	}

	if s.archive != nil {
		key := "documents/" + s.uuidGen.NewString() + "/" + path.Base(input.Filename)
		if err := s.archive.PutObject(ctx, key, input.ContentType, input.Data); err != nil {
			return nil, fmt.Errorf("failed to archive document: %w", err)
		}
		metadata[domain.MetaStorageKey] = key
	}

	return s.knowledge.CreateItem(ctx, CreateItemInput{
		Kind:     domain.ItemKindDocument,
		Title:    input.Filename,
		Body:     text,
		Tags:     input.Tags,
		Metadata: metadata,
	})
}

// PlainTextParser handles text-native formats. Anything it cannot decode as
// text is rejected rather than indexed as mojibake.
type PlainTextParser struct{}

func (PlainTextParser) Parse(filename, contentType string, data []byte) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".txt", ".md", ".markdown", ".csv", ".json", ".log", "":
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation, "unsupported file type "+ext)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
