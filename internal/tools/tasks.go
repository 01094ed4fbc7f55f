package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

const dueDateLayout = "2006-01-02"

type createTaskInput struct {
	Title    string   `json:"title" jsonschema:"What needs to be done."`
	Body     string   `json:"body,omitempty" jsonschema:"Additional task details."`
	DueDate  string   `json:"due_date" jsonschema:"Due date in YYYY-MM-DD format."`
	Priority string   `json:"priority,omitempty" jsonschema:"Task priority: low, medium or high."`
	Tags     []string `json:"tags,omitempty" jsonschema:"Tags used for later retrieval."`
}

type completeTaskInput struct {
	ID string `json:"id" jsonschema:"ID of the task to mark as done."`
}

type listTasksInput struct {
	OverdueOnly bool `json:"overdue_only,omitempty" jsonschema:"Only tasks past their due date that are still open."`
	IncludeDone bool `json:"include_done,omitempty" jsonschema:"Include completed tasks."`
	Limit       int  `json:"limit,omitempty" jsonschema:"Maximum tasks to return, default 20."`
}

// TaskTools returns the task-management tools backed by the knowledge store.
func TaskTools(knowledge KnowledgeAPI, now func() time.Time) []Tool {
	if now == nil {
		now = time.Now
	}
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "create_task",
				Description: "Create a task with a due date.",
				InputSchema: schemaFor[createTaskInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in createTaskInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				if _, err := time.Parse(dueDateLayout, in.DueDate); err != nil {
					return nil, domain.NewDomainError(domain.ErrCodeValidation,
						"due_date must be in YYYY-MM-DD format")
				}
				metadata := map[string]string{
					domain.MetaDueDate:    in.DueDate,
					domain.MetaTaskStatus: domain.TaskStatusOpen,
				}
				if in.Priority != "" {
					metadata[domain.MetaPriority] = in.Priority
				}
				item, err := knowledge.CreateItem(ctx, service.CreateItemInput{
					Kind:     domain.ItemKindTask,
					Title:    in.Title,
					Body:     in.Body,
					Tags:     in.Tags,
					Metadata: metadata,
				})
				if err != nil {
					return nil, err
				}
				return marshalResult(newToolItem(item))
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "complete_task",
				Description: "Mark a task as done.",
				InputSchema: schemaFor[completeTaskInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in completeTaskInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				current, err := knowledge.GetItem(ctx, in.ID)
				if err != nil {
					return nil, err
				}
				item, err := knowledge.UpdateItem(ctx, service.UpdateItemInput{
					ItemID:          in.ID,
					ExpectedVersion: current.Version,
					Patch: domain.ItemPatch{
						Metadata: map[string]string{
							domain.MetaTaskStatus: domain.TaskStatusDone,
						},
					},
				})
				if err != nil {
					return nil, err
				}
				return marshalResult(newToolItem(item))
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "list_tasks",
				Description: "List tasks, optionally restricted to overdue ones.",
				InputSchema: schemaFor[listTasksInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in listTasksInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				if in.Limit <= 0 {
					in.Limit = 20
				}
				out, err := knowledge.ListItems(ctx, service.ListItemsInput{
					Kind:  domain.ItemKindTask,
					Limit: in.Limit,
				})
				if err != nil {
					return nil, err
				}
				today := now().UTC().Truncate(24 * time.Hour)
				filtered := make([]*domain.KnowledgeItem, 0, len(out.Items))
				for _, item := range out.Items {
					if !in.IncludeDone && item.Metadata[domain.MetaTaskStatus] == domain.TaskStatusDone {
						continue
					}
					if in.OverdueOnly && !overdue(item, today) {
						continue
					}
					filtered = append(filtered, item)
				}
				return marshalResult(newToolItems(filtered))
			},
		},
	}
}

func overdue(item *domain.KnowledgeItem, today time.Time) bool {
	if item.Metadata[domain.MetaTaskStatus] == domain.TaskStatusDone {
		return false
	}
	due, err := time.Parse(dueDateLayout, item.Metadata[domain.MetaDueDate])
	if err != nil {
		return false
	}
	return due.Before(today)
}
