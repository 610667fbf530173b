// Package sqlite is the embedded store for single-node deployments and local
// development. It implements the same progression.Repository as the
// PostgreSQL store on top of the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id             TEXT PRIMARY KEY,
    display_name   TEXT NOT NULL DEFAULT '',
    xp             INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
    current_level  INTEGER NOT NULL DEFAULT 1 CHECK (current_level >= 1),
    streak_days    INTEGER NOT NULL DEFAULT 0 CHECK (streak_days >= 0),
    last_active_at TEXT,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_xp ON profiles(xp DESC, id);
`

// SQLite extended result codes for constraint failures.
const (
	codeConstraintPrimaryKey = 1555
	codeConstraintUnique     = 2067
)

// Store implements progression.Repository on a single SQLite file.
type Store struct {
	db *sql.DB
}

var _ progression.Repository = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create data dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Name identifies the store in health reports.
func (s *Store) Name() string { return "sqlite" }

// Check pings the database.
func (s *Store) Check(ctx context.Context) error { return s.db.PingContext(ctx) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == codeConstraintPrimaryKey || se.Code() == codeConstraintUnique
	}
	return false
}

func isMissingColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such column")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, withActivity bool) (*progression.Record, error) {
	var rec progression.Record
	var lastActive sql.NullString
	var created, updated string

	dest := []any{&rec.UserID, &rec.DisplayName, &rec.XP, &rec.Level, &rec.StreakDays}
	if withActivity {
		dest = append(dest, &lastActive)
	}
	dest = append(dest, &created, &updated)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("sqlite: bad created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("sqlite: bad updated_at: %w", err)
	}
	if lastActive.Valid {
		t, err := parseTime(lastActive.String)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad last_active_at: %w", err)
		}
		rec.LastActiveAt = &t
	}
	return &rec, nil
}

// Get returns the record for userID. On a schema without last_active_at the
// record is returned with LastActiveAt == nil.
func (s *Store) Get(ctx context.Context, userID string) (*progression.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, xp, current_level, streak_days, last_active_at, created_at, updated_at
		FROM profiles WHERE id = ?`, userID), true)
	if isMissingColumn(err) {
		rec, err = scanRecord(s.db.QueryRowContext(ctx, `
			SELECT id, display_name, xp, current_level, streak_days, created_at, updated_at
			FROM profiles WHERE id = ?`, userID), false)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("sqlite: get profile: %w", err)
	}
	return rec, nil
}

// TopByXP returns the highest-XP profiles, ties broken by id.
func (s *Store) TopByXP(ctx context.Context, limit int) ([]progression.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, xp, current_level, streak_days
		FROM profiles ORDER BY xp DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []progression.LeaderboardEntry
	for rows.Next() {
		var e progression.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.XP, &e.Level, &e.StreakDays); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, rec *progression.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, xp, current_level, streak_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.DisplayName, rec.XP, rec.Level, rec.StreakDays,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrProfileAlreadyExists
		}
		return fmt.Errorf("sqlite: create profile: %w", err)
	}
	return nil
}

// IncrementXP adds gain with a single UPDATE and stores the recomputed level
// in the same transaction.
func (s *Store) IncrementXP(ctx context.Context, userID string, gain int, curve *progression.Curve) (progression.XPGainResult, error) {
	if gain < 0 {
		return progression.XPGainResult{}, shared.ErrNegativeXPGain
	}
	if curve == nil {
		curve = progression.DefaultCurve
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return progression.XPGainResult{}, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now())
	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		UPDATE profiles SET xp = xp + ?, updated_at = ?
		WHERE id = ? AND xp <= ?
		RETURNING id, display_name, xp, current_level, streak_days, created_at, updated_at`,
		gain, now, userID, math.MaxInt64-gain), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progression.XPGainResult{}, s.noRowsCause(ctx, tx, userID)
		}
		return progression.XPGainResult{}, fmt.Errorf("sqlite: increment xp: %w", err)
	}

	oldLevel := max(rec.Level, 1)
	rec.Level = curve.LevelFromXP(rec.XP)
	if rec.Level != oldLevel {
		if _, err := tx.ExecContext(ctx, "UPDATE profiles SET current_level = ? WHERE id = ?", rec.Level, userID); err != nil {
			return progression.XPGainResult{}, fmt.Errorf("sqlite: update level: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return progression.XPGainResult{}, fmt.Errorf("sqlite: commit: %w", err)
	}

	return progression.XPGainResult{
		Record:    *rec,
		XPGain:    gain,
		OldLevel:  oldLevel,
		LeveledUp: rec.Level > oldLevel,
	}, nil
}

// noRowsCause tells a missing profile from an increment refused by the
// overflow guard.
func (s *Store) noRowsCause(ctx context.Context, tx *sql.Tx, userID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM profiles WHERE id = ?)", userID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: lookup profile: %w", err)
	}
	if exists {
		return shared.ErrXPOverflow
	}
	return shared.ErrProfileNotFound
}

// UpdateStreak stores the streak length and the activity timestamp.
func (s *Store) UpdateStreak(ctx context.Context, userID string, streakDays int, lastActiveAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET streak_days = ?, last_active_at = ?, updated_at = ? WHERE id = ?",
		streakDays, formatTime(lastActiveAt), formatTime(time.Now()), userID)
	if err != nil {
		if isMissingColumn(err) {
			return shared.WrapError("sqlite", "UpdateStreak", shared.ErrMissingColumn, "last_active_at column missing", err)
		}
		return fmt.Errorf("sqlite: update streak: %w", err)
	}
	return requireRow(res)
}

// UpdateStreakDays stores only the streak length.
func (s *Store) UpdateStreakDays(ctx context.Context, userID string, streakDays int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET streak_days = ?, updated_at = ? WHERE id = ?",
		streakDays, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("sqlite: update streak days: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}
