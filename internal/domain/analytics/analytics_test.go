package analytics

import (
	"context"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// fakeGraph is an in-memory adjacency map implementing graph.GraphStore.
type fakeGraph struct {
	adj map[graph.UserID][]graph.UserID
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{adj: make(map[graph.UserID][]graph.UserID)}
}

// addEdge registers an undirected edge, creating both users.
func (g *fakeGraph) addEdge(a, b graph.UserID) {
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

// addUser registers a user with no friends.
func (g *fakeGraph) addUser(id graph.UserID) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
	}
}

func (g *fakeGraph) Neighbors(_ context.Context, userID graph.UserID) ([]graph.UserID, error) {
	neighbors, ok := g.adj[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return neighbors, nil
}

func (g *fakeGraph) Exists(_ context.Context, userID graph.UserID) (bool, error) {
	_, ok := g.adj[userID]
	return ok, nil
}

// fakeSignal returns fixed pair-keyed interaction counts.
type fakeSignal struct {
	counts map[string]int
	err    error
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{counts: make(map[string]int)}
}

func (s *fakeSignal) set(a, b graph.UserID, n int) {
	s.counts[graph.PairKey(a, b)] = n
}

func (s *fakeSignal) Count(_ context.Context, a, b graph.UserID) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[graph.PairKey(a, b)], nil
}

func (s *fakeSignal) Record(_ context.Context, a, b graph.UserID, _ graph.InteractionKind) error {
	s.counts[graph.PairKey(a, b)]++
	return nil
}

// fakePrivacy blocks an explicit set of targets, allows the rest.
type fakePrivacy struct {
	blocked map[graph.UserID]bool
}

func (p *fakePrivacy) IsDiscoverable(_ context.Context, _, targetID graph.UserID) (bool, error) {
	if p.blocked == nil {
		return true, nil
	}
	return !p.blocked[targetID], nil
}

// fakeRequests reports pending state for an explicit set of targets.
type fakeRequests struct {
	pending map[graph.UserID]bool
}

func (r *fakeRequests) Status(_ context.Context, _, targetID graph.UserID) (graph.RequestStatus, error) {
	if r.pending != nil && r.pending[targetID] {
		return graph.RequestStatusPending, nil
	}
	return graph.RequestStatusNone, nil
}

// fakeActivity returns a fixed ranked candidate list.
type fakeActivity struct {
	ranked []graph.UserID
	err    error
}

func (a *fakeActivity) TopCandidates(_ context.Context, _ graph.UserID, limit int) ([]graph.UserID, error) {
	if a.err != nil {
		return nil, a.err
	}
	if limit < len(a.ranked) {
		return a.ranked[:limit], nil
	}
	return a.ranked, nil
}

func toStrings(ids []graph.UserID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func mustScorer(store graph.GraphStore, signal graph.InteractionSignal) *RelationshipScorer {
	s, err := NewRelationshipScorer(store, signal, DefaultScorerConfig())
	if err != nil {
		panic(err)
	}
	return s
}
