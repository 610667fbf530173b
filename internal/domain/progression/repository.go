package progression

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище профилей с прогрессией.
// Реализуется в infrastructure (PostgreSQL, SQLite).
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Чтение
	// ─────────────────────────────────────────────────────────────────────────

	// Get возвращает запись по ID пользователя. Если в схеме нет колонки
	// last_active_at, запись возвращается с LastActiveAt == nil.
	// Возвращает shared.ErrProfileNotFound, если записи нет.
	Get(ctx context.Context, userID string) (*Record, error)

	// TopByXP возвращает пользователей с наибольшим XP.
	TopByXP(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Запись
	// ─────────────────────────────────────────────────────────────────────────

	// Create сохраняет новую запись.
	// Возвращает shared.ErrProfileAlreadyExists, если запись уже есть.
	Create(ctx context.Context, rec *Record) error

	// IncrementXP атомарно прибавляет gain к XP на стороне хранилища
	// и записывает уровень, пересчитанный по кривой.
	IncrementXP(ctx context.Context, userID string, gain int, curve *Curve) (XPGainResult, error)

	// UpdateStreak записывает серию и время последней активности.
	UpdateStreak(ctx context.Context, userID string, streakDays int, lastActiveAt time.Time) error

	// UpdateStreakDays записывает только серию. Используется, когда
	// полная запись не удалась.
	UpdateStreakDays(ctx context.Context, userID string, streakDays int) error
}

// LeaderboardEntry - строка рейтинга по XP.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
	StreakDays  int    `json:"streak_days"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHES
// ══════════════════════════════════════════════════════════════════════════════

// RecordCache - кэш записей (Redis). Промах и недоступность кэша
// возвращаются как ошибка; вызывающий код идёт в Repository.
type RecordCache interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Set(ctx context.Context, rec *Record) error
	Invalidate(ctx context.Context, userID string) error
}

// LeaderboardCache - горячий рейтинг по XP.
type LeaderboardCache interface {
	// UpdateEntry не понижает XP уже ранжированного пользователя:
	// запоздавшая запись с меньшим XP игнорируется.
	UpdateEntry(ctx context.Context, entry LeaderboardEntry) error
	GetTop(ctx context.Context, n int) ([]LeaderboardEntry, error)
	GetRank(ctx context.Context, userID string) (int, error)
	Rebuild(ctx context.Context, entries []LeaderboardEntry) error
}
