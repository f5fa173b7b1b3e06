// Package postgres implements the PostgreSQL persistence layer.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users read model
-- Version: 001
-- User profiles are owned by the external user-management service;
-- this table is a synchronized read model for graph lookups and
-- recommendation hydration.

CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    username VARCHAR(100) NOT NULL,
    avatar_ref TEXT NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    friends_count INTEGER NOT NULL DEFAULT 0,
    posts_count INTEGER NOT NULL DEFAULT 0,
    likes_count INTEGER NOT NULL DEFAULT 0,
    profile_visibility VARCHAR(20) NOT NULL DEFAULT 'public',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_visibility CHECK (profile_visibility IN ('public', 'friends', 'private')),
    CONSTRAINT valid_counters CHECK (friends_count >= 0 AND posts_count >= 0 AND likes_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_users_visibility ON users(profile_visibility) WHERE profile_visibility != 'private';
`

const migration001Down = `
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE FRIENDSHIPS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create friendship edges
-- Version: 002
-- Undirected, unweighted graph. The pair is stored in canonical order
-- (user_a < user_b) so each edge exists exactly once; edge weight is
-- derived at query time from interaction signals, never persisted here.

CREATE TABLE IF NOT EXISTS friendships (
    user_a VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    user_b VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_a, user_b),
    CONSTRAINT canonical_pair CHECK (user_a < user_b)
);

-- Neighbor lookups run in both directions.
CREATE INDEX IF NOT EXISTS idx_friendships_user_a ON friendships(user_a);
CREATE INDEX IF NOT EXISTS idx_friendships_user_b ON friendships(user_b);
`

const migration002Down = `
DROP TABLE IF EXISTS friendships;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE INTERACTION EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create interaction event log
-- Version: 003
-- Durable record of qualifying interactions (comments, likes, messages).
-- The hot per-pair counters live in Redis; this log rebuilds them after
-- a Redis flush and feeds offline analysis.

CREATE TABLE IF NOT EXISTS interaction_events (
    id UUID PRIMARY KEY,
    user_a VARCHAR(64) NOT NULL,
    user_b VARCHAR(64) NOT NULL,
    kind VARCHAR(20) NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT canonical_interaction_pair CHECK (user_a < user_b),
    CONSTRAINT valid_kind CHECK (kind IN ('comment', 'like', 'message'))
);

CREATE INDEX IF NOT EXISTS idx_interaction_events_pair ON interaction_events(user_a, user_b, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_interaction_events_occurred_at ON interaction_events(occurred_at);
`

const migration003Down = `
DROP TABLE IF EXISTS interaction_events;
`
