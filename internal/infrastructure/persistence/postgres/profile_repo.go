package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements progression.Repository on the profiles table.
type ProfileRepository struct {
	conn    *Connection
	timeout time.Duration
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn, timeout: conn.config.QueryTimeout}
}

var _ progression.Repository = (*ProfileRepository)(nil)

const (
	selectProfile = `
		SELECT id, display_name, xp, current_level, streak_days, last_active_at, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	selectProfileNoActivity = `
		SELECT id, display_name, xp, current_level, streak_days, created_at, updated_at
		FROM profiles
		WHERE id = $1`
)

func (r *ProfileRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the record for userID. On a schema without last_active_at the
// record is returned with LastActiveAt == nil.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*progression.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rec progression.Record
	var lastActive *time.Time
	err := r.conn.Pool().QueryRow(ctx, selectProfile, userID).Scan(
		&rec.UserID, &rec.DisplayName, &rec.XP, &rec.Level, &rec.StreakDays,
		&lastActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if IsUndefinedColumn(err) {
		err = r.conn.Pool().QueryRow(ctx, selectProfileNoActivity, userID).Scan(
			&rec.UserID, &rec.DisplayName, &rec.XP, &rec.Level, &rec.StreakDays,
			&rec.CreatedAt, &rec.UpdatedAt,
		)
		lastActive = nil
	}
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if lastActive != nil {
		t := lastActive.UTC()
		rec.LastActiveAt = &t
	}
	return &rec, nil
}

// TopByXP returns the highest-XP profiles. Ties are broken by id so that
// pages are stable.
func (r *ProfileRepository) TopByXP(ctx context.Context, limit int) ([]progression.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Pool().Query(ctx, `
		SELECT id, display_name, xp, current_level, streak_days
		FROM profiles
		ORDER BY xp DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]progression.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e progression.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.XP, &e.Level, &e.StreakDays); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new record.
func (r *ProfileRepository) Create(ctx context.Context, rec *progression.Record) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO profiles (id, display_name, xp, current_level, streak_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.UserID, rec.DisplayName, rec.XP, rec.Level, rec.StreakDays, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrProfileAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// IncrementXP adds gain in a single UPDATE so concurrent awards never lose
// an increment, then stores the level recomputed from the new total in the
// same transaction.
func (r *ProfileRepository) IncrementXP(ctx context.Context, userID string, gain int, curve *progression.Curve) (progression.XPGainResult, error) {
	if gain < 0 {
		return progression.XPGainResult{}, shared.ErrNegativeXPGain
	}
	if curve == nil {
		curve = progression.DefaultCurve
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var res progression.XPGainResult
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var rec progression.Record
		var oldLevel int
		err := tx.QueryRow(ctx, `
			UPDATE profiles SET xp = xp + $2
			WHERE id = $1 AND xp <= $3
			RETURNING id, display_name, xp, current_level, streak_days, created_at, updated_at`,
			userID, gain, math.MaxInt64-gain,
		).Scan(&rec.UserID, &rec.DisplayName, &rec.XP, &oldLevel, &rec.StreakDays, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			if IsNoRows(err) {
				return noRowsCause(ctx, tx, userID)
			}
			return err
		}

		rec.Level = curve.LevelFromXP(rec.XP)
		if rec.Level != oldLevel {
			if _, err := tx.Exec(ctx, "UPDATE profiles SET current_level = $2 WHERE id = $1", userID, rec.Level); err != nil {
				return err
			}
		}

		oldLevel = max(oldLevel, 1)
		res = progression.XPGainResult{
			Record:    rec,
			XPGain:    gain,
			OldLevel:  oldLevel,
			LeveledUp: rec.Level > oldLevel,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrProfileNotFound) || errors.Is(err, shared.ErrXPOverflow) {
			return progression.XPGainResult{}, err
		}
		return progression.XPGainResult{}, fmt.Errorf("failed to increment xp: %w", err)
	}
	return res, nil
}

// noRowsCause tells a missing profile from an increment refused by the
// overflow guard.
func noRowsCause(ctx context.Context, tx pgx.Tx, userID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)", userID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return shared.ErrXPOverflow
	}
	return shared.ErrProfileNotFound
}

// UpdateStreak stores the streak length and the activity timestamp.
// A schema without last_active_at yields shared.ErrMissingColumn.
func (r *ProfileRepository) UpdateStreak(ctx context.Context, userID string, streakDays int, lastActiveAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.conn.Pool().Exec(ctx,
		"UPDATE profiles SET streak_days = $2, last_active_at = $3 WHERE id = $1",
		userID, streakDays, lastActiveAt.UTC(),
	)
	if err != nil {
		if IsUndefinedColumn(err) {
			return shared.WrapError("postgres", "UpdateStreak", shared.ErrMissingColumn, "last_active_at column missing", err)
		}
		return fmt.Errorf("failed to update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

// UpdateStreakDays stores only the streak length.
func (r *ProfileRepository) UpdateStreakDays(ctx context.Context, userID string, streakDays int) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.conn.Pool().Exec(ctx, "UPDATE profiles SET streak_days = $2 WHERE id = $1", userID, streakDays)
	if err != nil {
		return fmt.Errorf("failed to update streak days: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}
