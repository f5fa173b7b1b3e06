package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// FriendshipRepository implements graph.FriendshipRepository over the
// friendships table. Edges are stored once in canonical pair order;
// neighbor queries read both directions.
type FriendshipRepository struct {
	conn *Connection
}

// compile-time interface checks
var (
	_ graph.FriendshipRepository = (*FriendshipRepository)(nil)
	_ graph.HealthChecker        = (*FriendshipRepository)(nil)
)

// NewFriendshipRepository creates a new FriendshipRepository.
func NewFriendshipRepository(conn *Connection) *FriendshipRepository {
	return &FriendshipRepository{
		conn: conn,
	}
}

// Neighbors implements graph.GraphStore.
// Ordered by edge creation time so BFS discovery order is deterministic.
func (r *FriendshipRepository) Neighbors(ctx context.Context, userID graph.UserID) ([]graph.UserID, error) {
	exists, err := r.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrUserNotFound
	}

	query := `
		SELECT friend_id FROM (
			SELECT user_b AS friend_id, created_at FROM friendships WHERE user_a = $1
			UNION ALL
			SELECT user_a AS friend_id, created_at FROM friendships WHERE user_b = $1
		) AS edges
		ORDER BY created_at, friend_id
	`

	rows, err := r.conn.Query(ctx, query, string(userID))
	if err != nil {
		return nil, shared.WrapError("graph", "Neighbors", shared.ErrServiceUnavailable, "neighbors query failed", err)
	}
	defer rows.Close()

	var neighbors []graph.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("graph", "Neighbors", shared.ErrServiceUnavailable, "neighbors scan failed", err)
		}
		neighbors = append(neighbors, graph.UserID(id))
	}
	return neighbors, rows.Err()
}

// Exists implements graph.GraphStore.
func (r *FriendshipRepository) Exists(ctx context.Context, userID graph.UserID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, string(userID)).Scan(&exists); err != nil {
		return false, shared.WrapError("graph", "Exists", shared.ErrServiceUnavailable, "existence query failed", err)
	}
	return exists, nil
}

// AddFriendship implements graph.FriendshipRepository.
// The edge and the denormalized friends_count of both endpoints change
// in one transaction: a partial write would desync the counters the
// users read model reports.
func (r *FriendshipRepository) AddFriendship(ctx context.Context, a, b graph.UserID) (*graph.Friendship, error) {
	friendship, err := graph.NewFriendship(a, b)
	if err != nil {
		return nil, err
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO friendships (user_a, user_b, created_at)
			VALUES ($1, $2, $3)
		`

		_, err := tx.Exec(ctx, query, string(friendship.UserA), string(friendship.UserB), friendship.CreatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrFriendshipExists
			}
			if IsForeignKeyViolation(err) {
				return shared.ErrUserNotFound
			}
			return shared.WrapError("graph", "AddFriendship", shared.ErrServiceUnavailable, "insert failed", err)
		}
		return bumpFriendsCount(ctx, tx, 1, friendship.UserA, friendship.UserB)
	})
	if err != nil {
		return nil, err
	}
	return friendship, nil
}

// RemoveFriendship implements graph.FriendshipRepository.
func (r *FriendshipRepository) RemoveFriendship(ctx context.Context, a, b graph.UserID) error {
	friendship, err := graph.NewFriendship(a, b)
	if err != nil {
		return err
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `DELETE FROM friendships WHERE user_a = $1 AND user_b = $2`

		tag, err := tx.Exec(ctx, query, string(friendship.UserA), string(friendship.UserB))
		if err != nil {
			return shared.WrapError("graph", "RemoveFriendship", shared.ErrServiceUnavailable, "delete failed", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrFriendshipNotFound
		}
		return bumpFriendsCount(ctx, tx, -1, friendship.UserA, friendship.UserB)
	})
}

// bumpFriendsCount adjusts the denormalized friends_count of the edge
// endpoints. Runs on the same Querier as the edge mutation so both land
// in one transaction; GREATEST keeps valid_counters satisfied even if a
// counter drifted low.
func bumpFriendsCount(ctx context.Context, q Querier, delta int, ids ...graph.UserID) error {
	query := `
		UPDATE users
		SET friends_count = GREATEST(friends_count + $1, 0), updated_at = NOW()
		WHERE id = ANY($2)
	`

	userIDs := make([]string, len(ids))
	for i, id := range ids {
		userIDs[i] = string(id)
	}

	if _, err := q.Exec(ctx, query, delta, userIDs); err != nil {
		return shared.WrapError("graph", "BumpFriendsCount", shared.ErrServiceUnavailable, "friends_count update failed", err)
	}
	return nil
}

// AreFriends implements graph.FriendshipRepository.
func (r *FriendshipRepository) AreFriends(ctx context.Context, a, b graph.UserID) (bool, error) {
	friendship, err := graph.NewFriendship(a, b)
	if err != nil {
		return false, err
	}

	query := `SELECT EXISTS(SELECT 1 FROM friendships WHERE user_a = $1 AND user_b = $2)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, string(friendship.UserA), string(friendship.UserB)).Scan(&exists); err != nil {
		return false, shared.WrapError("graph", "AreFriends", shared.ErrServiceUnavailable, "edge query failed", err)
	}
	return exists, nil
}

// CommonFriends implements graph.FriendshipRepository.
// The intersection is computed in SQL rather than client-side; both
// sides of each stored edge are expanded before intersecting.
func (r *FriendshipRepository) CommonFriends(ctx context.Context, a, b graph.UserID) ([]graph.UserID, error) {
	query := `
		WITH edges AS (
			SELECT user_a AS owner, user_b AS friend FROM friendships
			UNION ALL
			SELECT user_b AS owner, user_a AS friend FROM friendships
		)
		SELECT ea.friend
		FROM edges ea
		JOIN edges eb ON ea.friend = eb.friend
		WHERE ea.owner = $1 AND eb.owner = $2
		ORDER BY ea.friend
	`

	rows, err := r.conn.Query(ctx, query, string(a), string(b))
	if err != nil {
		return nil, shared.WrapError("graph", "CommonFriends", shared.ErrServiceUnavailable, "common friends query failed", err)
	}
	defer rows.Close()

	var common []graph.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("graph", "CommonFriends", shared.ErrServiceUnavailable, "common friends scan failed", err)
		}
		common = append(common, graph.UserID(id))
	}
	return common, rows.Err()
}

// Ping implements graph.HealthChecker.
func (r *FriendshipRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// InteractionCounts aggregates the event log into per-pair counts for
// events at or after since. Keys are canonical "a:b" pair keys. Used to
// rebuild the hot Redis counters after a flush.
func (r *FriendshipRepository) InteractionCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `
		SELECT user_a, user_b, COUNT(*)
		FROM interaction_events
		WHERE occurred_at >= $1
		GROUP BY user_a, user_b
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, shared.WrapError("interaction", "Counts", shared.ErrServiceUnavailable, "counts query failed", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var a, b string
		var n int
		if err := rows.Scan(&a, &b, &n); err != nil {
			return nil, shared.WrapError("interaction", "Counts", shared.ErrServiceUnavailable, "counts scan failed", err)
		}
		counts[graph.PairKey(graph.UserID(a), graph.UserID(b))] = n
	}
	return counts, rows.Err()
}

// RecordInteractionEvent appends a durable interaction record.
// The hot per-pair counter lives in Redis; this log is the source for
// rebuilding counters and offline analysis.
func (r *FriendshipRepository) RecordInteractionEvent(ctx context.Context, eventID string, a, b graph.UserID, kind graph.InteractionKind, occurredAt time.Time) error {
	if b < a {
		a, b = b, a
	}

	query := `
		INSERT INTO interaction_events (id, user_a, user_b, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.Exec(ctx, query, eventID, string(a), string(b), string(kind), occurredAt)
	if err != nil {
		return shared.WrapError("interaction", "RecordEvent", shared.ErrServiceUnavailable, "event insert failed", err)
	}
	return nil
}
