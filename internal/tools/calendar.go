package tools

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type createEventInput struct {
	Title     string   `json:"title" jsonschema:"Event title."`
	Body      string   `json:"body,omitempty" jsonschema:"Event details."`
	StartTime string   `json:"start_time" jsonschema:"Event start in RFC 3339 format, e.g. 2026-09-01T14:00:00Z."`
	EndTime   string   `json:"end_time" jsonschema:"Event end in RFC 3339 format."`
	Location  string   `json:"location,omitempty" jsonschema:"Where the event takes place."`
	Tags      []string `json:"tags,omitempty" jsonschema:"Tags used for later retrieval."`
}

type listEventsInput struct {
	View  string `json:"view,omitempty" jsonschema:"Time window: today, week or upcoming. Default upcoming."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum events to return, default 20."`
}

// CalendarTools returns the calendar tools backed by the knowledge store.
func CalendarTools(knowledge KnowledgeAPI, now func() time.Time) []Tool {
	if now == nil {
		now = time.Now
	}
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "create_event",
				Description: "Create a calendar event with a start and end time.",
				InputSchema: schemaFor[createEventInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in createEventInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				start, err := time.Parse(time.RFC3339, in.StartTime)
				if err != nil {
					return nil, domain.NewDomainError(domain.ErrCodeValidation,
						"start_time must be in RFC 3339 format")
				}
				end, err := time.Parse(time.RFC3339, in.EndTime)
				if err != nil {
					return nil, domain.NewDomainError(domain.ErrCodeValidation,
						"end_time must be in RFC 3339 format")
				}
				if !end.After(start) {
					return nil, domain.NewDomainError(domain.ErrCodeValidation,
						"end_time must be after start_time")
				}
				metadata := map[string]string{
					domain.MetaStartTime: start.UTC().Format(time.RFC3339),
					domain.MetaEndTime:   end.UTC().Format(time.RFC3339),
				}
				if in.Location != "" {
					metadata[domain.MetaLocation] = in.Location
				}
				item, err := knowledge.CreateItem(ctx, service.CreateItemInput{
					Kind:     domain.ItemKindCalendarEvent,
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
				Name:        "list_events",
				Description: "List calendar events for today, this week, or all upcoming.",
				InputSchema: schemaFor[listEventsInput](),
			},
			Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var in listEventsInput
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
				if in.Limit <= 0 {
					in.Limit = 20
				}
				from, until, err := eventWindow(in.View, now().UTC())
				if err != nil {
					return nil, err
				}
				out, err := knowledge.ListItems(ctx, service.ListItemsInput{
					Kind:  domain.ItemKindCalendarEvent,
					Limit: in.Limit * 4,
				})
				if err != nil {
					return nil, err
				}
				events := make([]*domain.KnowledgeItem, 0, len(out.Items))
				for _, item := range out.Items {
					start, err := time.Parse(time.RFC3339, item.Metadata[domain.MetaStartTime])
					if err != nil {
						continue
					}
					if start.Before(from) || (!until.IsZero() && !start.Before(until)) {
						continue
					}
					events = append(events, item)
				}
				sort.SliceStable(events, func(i, j int) bool {
					return events[i].Metadata[domain.MetaStartTime] < events[j].Metadata[domain.MetaStartTime]
				})
				if len(events) > in.Limit {
					events = events[:in.Limit]
				}
				return marshalResult(newToolItems(events))
			},
		},
	}
}

// eventWindow maps a view name to a [from, until) interval. An upcoming view
// has no upper bound; until stays zero.
func eventWindow(view string, now time.Time) (time.Time, time.Time, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch view {
	case "today":
		return dayStart, dayStart.AddDate(0, 0, 1), nil
	case "week":
		return dayStart, dayStart.AddDate(0, 0, 7), nil
	case "upcoming", "":
		return now, time.Time{}, nil
	}
	return time.Time{}, time.Time{}, domain.NewDomainError(domain.ErrCodeValidation,
		"view must be one of: today, week, upcoming")
}
