package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// UserDirectory implements graph.UserDirectory over the users read
// model table. Profiles are owned by the external user-management
// service and synchronized into this table; the directory never
// writes back.
type UserDirectory struct {
	conn *Connection
}

var _ graph.UserDirectory = (*UserDirectory)(nil)

// NewUserDirectory creates a new UserDirectory.
func NewUserDirectory(conn *Connection) *UserDirectory {
	return &UserDirectory{
		conn: conn,
	}
}

const userColumns = `id, username, avatar_ref, bio, friends_count, posts_count, likes_count, profile_visibility`

// GetUser implements graph.UserDirectory.
func (d *UserDirectory) GetUser(ctx context.Context, userID graph.UserID) (*graph.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(d.conn.QueryRow(ctx, query, string(userID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, shared.WrapError("graph", "GetUser", shared.ErrServiceUnavailable, "user query failed", err)
	}
	return user, nil
}

// GetUsers implements graph.UserDirectory.
// Unknown IDs are silently skipped; the result preserves the order of
// the input list.
func (d *UserDirectory) GetUsers(ctx context.Context, userIDs []graph.UserID) ([]*graph.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = string(id)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := d.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, shared.WrapError("graph", "GetUsers", shared.ErrServiceUnavailable, "users query failed", err)
	}
	defer rows.Close()

	byID := make(map[graph.UserID]*graph.User, len(userIDs))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, shared.WrapError("graph", "GetUsers", shared.ErrServiceUnavailable, "user scan failed", err)
		}
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("graph", "GetUsers", shared.ErrServiceUnavailable, "users iteration failed", err)
	}

	users := make([]*graph.User, 0, len(byID))
	for _, id := range userIDs {
		if user, ok := byID[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func scanUser(row pgx.Row) (*graph.User, error) {
	var (
		user       graph.User
		id         string
		visibility string
	)

	err := row.Scan(
		&id,
		&user.Username,
		&user.AvatarRef,
		&user.Bio,
		&user.Statistics.FriendsCount,
		&user.Statistics.PostsCount,
		&user.Statistics.LikesCount,
		&visibility,
	)
	if err != nil {
		return nil, err
	}

	user.ID = graph.UserID(id)
	user.Privacy.ProfileVisibility = graph.ProfileVisibility(visibility)
	return &user, nil
}
