// Package postgres implements the PostgreSQL persistence layer for the
// progression hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create learners table
-- Version: 001

CREATE TABLE IF NOT EXISTS learners (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    platform_id VARCHAR(64) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL,
    total_xp BIGINT NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    last_synced_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_status CHECK (status IN ('active', 'inactive', 'suspended')),
    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_learners_platform_id ON learners(platform_id);
CREATE INDEX IF NOT EXISTS idx_learners_total_xp ON learners(total_xp DESC);
CREATE INDEX IF NOT EXISTS idx_learners_last_synced_at ON learners(last_synced_at);
CREATE INDEX IF NOT EXISTS idx_learners_last_active_date ON learners(last_active_date);
CREATE INDEX IF NOT EXISTS idx_learners_active_xp ON learners(total_xp DESC) WHERE status = 'active';
`

const migration001Down = `
DROP TABLE IF EXISTS learners;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE XP EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create xp_events ledger
-- Version: 002

-- Append-only ledger. The event ID is assigned by the producer, so a
-- redelivered event collides on the primary key instead of minting twice.
CREATE TABLE IF NOT EXISTS xp_events (
    id UUID PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    amount INTEGER NOT NULL,
    source VARCHAR(30) NOT NULL,
    reference VARCHAR(200) NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount > 0),
    CONSTRAINT valid_source CHECK (source IN (
        'module_complete', 'quiz_pass', 'challenge_claim',
        'practical_approved', 'streak_bonus', 'achievement_unlock'
    ))
);

CREATE INDEX IF NOT EXISTS idx_xp_events_learner_occurred ON xp_events(learner_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_xp_events_learner_source ON xp_events(learner_id, source);

-- Reward dedup lookup: has this (learner, source, reference) been paid already?
CREATE INDEX IF NOT EXISTS idx_xp_events_source_ref ON xp_events(learner_id, source, reference);
`

const migration002Down = `
DROP TABLE IF EXISTS xp_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create achievement catalog and unlocks
-- Version: 003

CREATE TABLE IF NOT EXISTS achievements (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    requirement_type VARCHAR(30) NOT NULL,
    requirement_value INTEGER NOT NULL,
    xp_reward INTEGER NOT NULL,
    badge_color VARCHAR(20) NOT NULL DEFAULT 'bronze',

    CONSTRAINT valid_requirement_value CHECK (requirement_value > 0),
    CONSTRAINT valid_xp_reward CHECK (xp_reward > 0)
);

CREATE INDEX IF NOT EXISTS idx_achievements_requirement_type ON achievements(requirement_type);

-- An unlock row doubles as the "reward already granted" marker, hence the
-- unique pair constraint.
CREATE TABLE IF NOT EXISTS achievement_unlocks (
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    achievement_id VARCHAR(64) NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    reward_event_id UUID NOT NULL,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_achievement_unlocks_learner ON achievement_unlocks(learner_id);
`

const migration003Down = `
DROP TABLE IF EXISTS achievement_unlocks;
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create challenges table
-- Version: 004

CREATE TABLE IF NOT EXISTS challenges (
    id VARCHAR(64) PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    type VARCHAR(10) NOT NULL,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    difficulty VARCHAR(10) NOT NULL,
    xp_reward INTEGER NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    max_progress INTEGER NOT NULL,
    issued_at TIMESTAMP WITH TIME ZONE NOT NULL,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
    claimed_at TIMESTAMP WITH TIME ZONE,
    expiry_notified BOOLEAN NOT NULL DEFAULT FALSE,

    CONSTRAINT valid_type CHECK (type IN ('daily', 'weekly')),
    CONSTRAINT valid_difficulty CHECK (difficulty IN ('easy', 'medium', 'hard')),
    CONSTRAINT valid_challenge_reward CHECK (xp_reward > 0),
    CONSTRAINT valid_progress CHECK (progress >= 0 AND progress <= max_progress),
    CONSTRAINT valid_window CHECK (expires_at > issued_at)
);

CREATE INDEX IF NOT EXISTS idx_challenges_learner ON challenges(learner_id);
CREATE INDEX IF NOT EXISTS idx_challenges_learner_expires ON challenges(learner_id, expires_at);

-- Expiry sweep scans only unclaimed, not yet notified rows.
CREATE INDEX IF NOT EXISTS idx_challenges_expiry_sweep
    ON challenges(expires_at)
    WHERE claimed_at IS NULL AND expiry_notified = FALSE;
`

const migration004Down = `
DROP TABLE IF EXISTS challenges;
`
