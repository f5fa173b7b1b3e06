package memory

import (
	"context"
	"sync"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY GRAPH STORE
// Local-mode and test implementation of the friendship graph. Production
// deployments use the postgres implementation.
// ══════════════════════════════════════════════════════════════════════════════

// GraphStore is an in-memory friendship graph.
// Adjacency keeps insertion order so BFS discovery order is stable
// across identical calls, matching the postgres implementation's
// deterministic ordering.
type GraphStore struct {
	mu    sync.RWMutex
	adj   map[graph.UserID][]graph.UserID
	edges map[string]struct{} // PairKey set for O(1) membership
}

// compile-time interface checks
var (
	_ graph.FriendshipRepository = (*GraphStore)(nil)
	_ graph.HealthChecker        = (*GraphStore)(nil)
)

// NewGraphStore creates an empty graph.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		adj:   make(map[graph.UserID][]graph.UserID),
		edges: make(map[string]struct{}),
	}
}

// AddUser registers a user with no friends. Idempotent.
func (s *GraphStore) AddUser(id graph.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(id)
}

// Neighbors implements graph.GraphStore.
func (s *GraphStore) Neighbors(_ context.Context, userID graph.UserID) ([]graph.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors, ok := s.adj[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}

	out := make([]graph.UserID, len(neighbors))
	copy(out, neighbors)
	return out, nil
}

// Exists implements graph.GraphStore.
func (s *GraphStore) Exists(_ context.Context, userID graph.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.adj[userID]
	return ok, nil
}

// AddFriendship implements graph.FriendshipRepository.
// Both users are created if missing.
func (s *GraphStore) AddFriendship(_ context.Context, a, b graph.UserID) (*graph.Friendship, error) {
	friendship, err := graph.NewFriendship(a, b)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLocked(a)
	s.ensureLocked(b)

	pair := graph.PairKey(a, b)
	if _, ok := s.edges[pair]; ok {
		return nil, shared.ErrFriendshipExists
	}

	s.edges[pair] = struct{}{}
	s.adj[a] = append(s.adj[a], b)
	s.adj[b] = append(s.adj[b], a)
	return friendship, nil
}

// RemoveFriendship implements graph.FriendshipRepository.
func (s *GraphStore) RemoveFriendship(_ context.Context, a, b graph.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := graph.PairKey(a, b)
	if _, ok := s.edges[pair]; !ok {
		return shared.ErrFriendshipNotFound
	}

	delete(s.edges, pair)
	s.adj[a] = removeID(s.adj[a], b)
	s.adj[b] = removeID(s.adj[b], a)
	return nil
}

// AreFriends implements graph.FriendshipRepository.
func (s *GraphStore) AreFriends(_ context.Context, a, b graph.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.edges[graph.PairKey(a, b)]
	return ok, nil
}

// CommonFriends implements graph.FriendshipRepository.
func (s *GraphStore) CommonFriends(_ context.Context, a, b graph.UserID) ([]graph.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	na, ok := s.adj[a]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	nb, ok := s.adj[b]
	if !ok {
		return nil, shared.ErrUserNotFound
	}

	set := make(map[graph.UserID]struct{}, len(nb))
	for _, id := range nb {
		set[id] = struct{}{}
	}

	var out []graph.UserID
	for _, id := range na {
		if _, mutual := set[id]; mutual {
			out = append(out, id)
		}
	}
	return out, nil
}

// Ping implements graph.HealthChecker.
func (s *GraphStore) Ping(_ context.Context) error {
	return nil
}

func (s *GraphStore) ensureLocked(id graph.UserID) {
	if _, ok := s.adj[id]; !ok {
		s.adj[id] = nil
	}
}

func removeID(ids []graph.UserID, target graph.UserID) []graph.UserID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY INTERACTION SIGNAL
// ══════════════════════════════════════════════════════════════════════════════

// InteractionStore is an in-memory pair-keyed interaction counter.
type InteractionStore struct {
	mu     sync.RWMutex
	counts map[string]int
}

var _ graph.InteractionSignal = (*InteractionStore)(nil)

// NewInteractionStore creates an empty store.
func NewInteractionStore() *InteractionStore {
	return &InteractionStore{counts: make(map[string]int)}
}

// Count implements graph.InteractionSignal.
func (s *InteractionStore) Count(_ context.Context, a, b graph.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[graph.PairKey(a, b)], nil
}

// Record implements graph.InteractionSignal.
func (s *InteractionStore) Record(_ context.Context, a, b graph.UserID, _ graph.InteractionKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[graph.PairKey(a, b)]++
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERMISSIVE COLLABORATOR STUBS
// Local mode runs without the external privacy / friend-request /
// activity services; these defaults admit everything.
// ══════════════════════════════════════════════════════════════════════════════

// OpenPrivacy admits every candidate.
type OpenPrivacy struct{}

var _ graph.PrivacyCheck = OpenPrivacy{}

// IsDiscoverable implements graph.PrivacyCheck.
func (OpenPrivacy) IsDiscoverable(_ context.Context, _, _ graph.UserID) (bool, error) {
	return true, nil
}

// NoRequests reports no pending friend requests.
type NoRequests struct{}

var _ graph.FriendRequestState = NoRequests{}

// Status implements graph.FriendRequestState.
func (NoRequests) Status(_ context.Context, _, _ graph.UserID) (graph.RequestStatus, error) {
	return graph.RequestStatusNone, nil
}

// NoActivity returns no activity-ranked candidates.
type NoActivity struct{}

var _ analytics.ActivityRanker = NoActivity{}

// TopCandidates implements analytics.ActivityRanker.
func (NoActivity) TopCandidates(_ context.Context, _ graph.UserID, _ int) ([]graph.UserID, error) {
	return nil, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY USER DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// UserDirectory is an in-memory profile directory for local mode.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[graph.UserID]*graph.User
}

var _ graph.UserDirectory = (*UserDirectory)(nil)

// NewUserDirectory creates an empty directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[graph.UserID]*graph.User)}
}

// PutUser registers or replaces a profile.
func (d *UserDirectory) PutUser(user *graph.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// GetUser implements graph.UserDirectory.
func (d *UserDirectory) GetUser(_ context.Context, userID graph.UserID) (*graph.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return user, nil
}

// GetUsers implements graph.UserDirectory. Unknown IDs are skipped.
func (d *UserDirectory) GetUsers(_ context.Context, userIDs []graph.UserID) ([]*graph.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*graph.User, 0, len(userIDs))
	for _, id := range userIDs {
		if user, ok := d.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}
