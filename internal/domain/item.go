package domain

import (
	"sort"
	"time"
)

// ItemKind represents the kind of a knowledge item
type ItemKind string

const (
	ItemKindDocument      ItemKind = "document"
	ItemKindNote          ItemKind = "note"
	ItemKindTask          ItemKind = "task"
	ItemKindCalendarEvent ItemKind = "calendar_event"
)

// Kind-specific metadata keys. Each kind requires a subset of these; see
// requiredMetadata.
const (
	MetaDueDate        = "due_date"
	MetaStartTime      = "start_time"
	MetaEndTime        = "end_time"
	MetaSourceFilename = "source_filename"
	MetaFileType       = "file_type"
	MetaFileSize       = "file_size"
	MetaStorageKey     = "storage_key"
	MetaPriority       = "priority"
	MetaTaskStatus     = "task_status"
	MetaLocation       = "location"
)

// Task status metadata values.
const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// KnowledgeItem is the single record shape every knowledge source (documents,
// notes, tasks, calendar events) is normalized to. ID is immutable and
// globally unique across kinds. Version increments by exactly one on every
// successful mutation and drives both optimistic-concurrency checks and
// stale-embedding invalidation.
type KnowledgeItem struct {
	ID        string
	Kind      ItemKind
	Title     string
	Body      string
	Tags      []string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// requiredMetadata lists the metadata keys each kind must carry at creation.
var requiredMetadata = map[ItemKind][]string{
	ItemKindDocument:      {MetaSourceFilename},
	ItemKindNote:          {},
	ItemKindTask:          {MetaDueDate},
	ItemKindCalendarEvent: {MetaStartTime, MetaEndTime},
}

// NewKnowledgeItem creates a version-1 KnowledgeItem
func NewKnowledgeItem(id string, kind ItemKind, title, body string, tags []string, metadata map[string]string, now time.Time) *KnowledgeItem {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &KnowledgeItem{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Tags:      NormalizeTags(tags),
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// ValidateItem validates a KnowledgeItem, including kind-specific metadata
func ValidateItem(item *KnowledgeItem) error {
	if item == nil {
		return NewDomainError(ErrCodeValidation, "knowledge item cannot be nil")
	}
	if item.ID == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "knowledge item ID is required", ErrMissingRequiredField)
	}
	if item.Title == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "knowledge item Title is required", ErrMissingRequiredField)
	}
	if !IsValidItemKind(item.Kind) {
		return ErrInvalidItemKind
	}
	if item.Version <= 0 {
		return NewDomainError(ErrCodeValidation, "knowledge item Version must be greater than 0")
	}
	for _, key := range requiredMetadata[item.Kind] {
		if item.Metadata[key] == "" {
			return NewDomainErrorWithCause(ErrCodeValidation,
				"metadata key "+key+" is required for kind "+string(item.Kind), ErrMissingKindMetadata)
		}
	}
	return nil
}

// IsValidItemKind checks if an ItemKind is valid
func IsValidItemKind(k ItemKind) bool {
	switch k {
	case ItemKindDocument, ItemKindNote, ItemKindTask, ItemKindCalendarEvent:
		return true
	}
	return false
}

// NormalizeTags deduplicates and sorts tags, dropping empty entries.
// Tags behave as a set; the stored order is canonical.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the item carries the given tag
func (k *KnowledgeItem) HasTag(tag string) bool {
	for _, t := range k.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ItemPatch describes a partial update to a KnowledgeItem. Nil fields are
// left untouched; Metadata entries are merged key-by-key (an empty value
// removes the key).
type ItemPatch struct {
	Title    *string
	Body     *string
	Tags     []string
	Metadata map[string]string
}

// Apply merges the patch into a copy of the item and bumps the version.
// The caller is responsible for persisting with the optimistic check.
func (p ItemPatch) Apply(item *KnowledgeItem, now time.Time) *KnowledgeItem {
	next := *item
	next.Tags = append([]string(nil), item.Tags...)
	next.Metadata = make(map[string]string, len(item.Metadata))
	for k, v := range item.Metadata {
		next.Metadata[k] = v
	}

	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Body != nil {
		next.Body = *p.Body
	}
	if p.Tags != nil {
		next.Tags = NormalizeTags(p.Tags)
	}
	for k, v := range p.Metadata {
		if v == "" {
			delete(next.Metadata, k)
		} else {
			next.Metadata[k] = v
		}
	}

	next.UpdatedAt = now
	next.Version = item.Version + 1
	return &next
}

// EmbeddingText builds the canonical text the Embedding Index vectorizes:
// title, body, and tags joined so tag terms contribute to similarity.
func (k *KnowledgeItem) EmbeddingText() string {
	text := k.Title
	if k.Body != "" {
		text += "\n" + k.Body
	}
	for _, tag := range k.Tags {
		text += "\n" + tag
	}
	return text
}
