package tools

import "time"

// BuiltinDeps collects the services the built-in tool set is wired to.
// Archive and Searcher are optional; their tools degrade or are skipped.
type BuiltinDeps struct {
	Knowledge KnowledgeAPI
	Search    SearchAPI
	Archive   DocumentArchive
	Searcher  WebSearcher
	Now       func() time.Time
}

// RegisterBuiltins registers the standard tool set on the registry.
func RegisterBuiltins(registry *Registry, deps BuiltinDeps) error {
	var all []Tool
	all = append(all, NoteTools(deps.Knowledge)...)
	all = append(all, TaskTools(deps.Knowledge, deps.Now)...)
	all = append(all, CalendarTools(deps.Knowledge, deps.Now)...)
	all = append(all, SearchTool(deps.Search))
	all = append(all, FileTools(deps.Knowledge, deps.Archive)...)
	if deps.Searcher != nil {
		all = append(all, WebSearchTool(deps.Searcher))
	}
	for _, tool := range all {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
