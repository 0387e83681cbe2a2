package search

import "github.com/poiesic/lectern/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// Every Start is followed by exactly one Finish, with a nil result when the
// search failed.
type SearchMonitor interface {
	Start(projectID, sourceID, query string)
	SourceResolved(source *core.Source)
	QueryEmbedded(cached bool)
	AfterVectorSearch(matches []core.VectorMatch)
	Finish(result *core.SearchResult, err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _, _ string)                   {}
func (n *noopMonitor) SourceResolved(_ *core.Source)          {}
func (n *noopMonitor) QueryEmbedded(_ bool)                   {}
func (n *noopMonitor) AfterVectorSearch(_ []core.VectorMatch) {}
func (n *noopMonitor) Finish(_ *core.SearchResult, _ error)   {}
