package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolOptions_WithDefaults(t *testing.T) {
	opts := PoolOptions{}.withDefaults()

	assert.Equal(t, int32(10), opts.MaxConns)
	assert.Equal(t, int32(2), opts.MinConns)
	assert.Equal(t, time.Hour, opts.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, opts.MaxConnIdleTime)
	assert.Zero(t, opts.QueryTimeout, "no implicit statement_timeout")
}

func TestPoolOptions_ExplicitValuesKept(t *testing.T) {
	opts := PoolOptions{
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: time.Minute,
		QueryTimeout:    30 * time.Second,
	}.withDefaults()

	assert.Equal(t, int32(25), opts.MaxConns)
	assert.Equal(t, int32(5), opts.MinConns)
	assert.Equal(t, 5*time.Minute, opts.MaxConnLifetime)
	assert.Equal(t, time.Minute, opts.MaxConnIdleTime)
	assert.Equal(t, 30*time.Second, opts.QueryTimeout)
}

func TestDefaultTxOptions(t *testing.T) {
	opts := DefaultTxOptions()

	assert.Equal(t, pgx.ReadCommitted, opts.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, opts.AccessMode)
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	foreignKey := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(foreignKey))

	assert.True(t, IsForeignKeyViolation(foreignKey))
	assert.False(t, IsForeignKeyViolation(unique))

	assert.True(t, IsNoRows(fmt.Errorf("lookup: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(unique))
}

func TestGetMigrations_Complete(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions must be sequential")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL, "rollback needs down SQL")
	}
}
