package progression

import (
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// StreakGraceWindow - окно, в котором активность нового дня продолжает серию.
	StreakGraceWindow = 24 * time.Hour

	// StreakBreakAfter - через сколько времени без активности серия сбрасывается.
	StreakBreakAfter = 48 * time.Hour
)

// StreakTransition - что произошло с серией.
type StreakTransition string

const (
	// StreakStarted - первая активность пользователя.
	StreakStarted StreakTransition = "started"

	// StreakContinued - первая активность нового дня в окне 24 часов.
	StreakContinued StreakTransition = "continued"

	// StreakReset - 48 часов и больше без активности, серия начата заново.
	StreakReset StreakTransition = "reset"

	// StreakUnchanged - тот же день или окно 24-48 часов.
	StreakUnchanged StreakTransition = "unchanged"
)

// StreakResult - результат обновления серии.
type StreakResult struct {
	Record         Record           `json:"record"`
	PreviousStreak int              `json:"previous_streak"`
	Transition     StreakTransition `json:"transition"`
	SinceLast      time.Duration    `json:"since_last"`
}

// ApplyStreakUpdate применяет правило серии к записи в момент now.
// Календарные дни сравниваются в loc (nil - UTC). Исходная запись
// не изменяется; в результате LastActiveAt всегда равен now.
func ApplyStreakUpdate(rec Record, now time.Time, loc *time.Location) StreakResult {
	if loc == nil {
		loc = time.UTC
	}

	res := StreakResult{PreviousStreak: rec.StreakDays}
	updated := rec

	switch {
	case rec.LastActiveAt == nil:
		updated.StreakDays = 1
		res.Transition = StreakStarted

	default:
		last := *rec.LastActiveAt
		res.SinceLast = now.Sub(last)

		switch {
		case res.SinceLast < StreakGraceWindow && !timeutil.IsSameDay(now, last, loc):
			updated.StreakDays = rec.StreakDays + 1
			res.Transition = StreakContinued
		case res.SinceLast >= StreakBreakAfter:
			updated.StreakDays = 1
			res.Transition = StreakReset
		default:
			res.Transition = StreakUnchanged
		}
	}

	// После любой активности серия не меньше 1.
	if updated.StreakDays < 1 {
		updated.StreakDays = 1
		res.Transition = StreakStarted
	}

	at := now
	updated.LastActiveAt = &at
	res.Record = updated
	return res
}

// Events возвращает доменные события обновления серии.
func (r StreakResult) Events() []shared.Event {
	switch r.Transition {
	case StreakStarted, StreakContinued:
		return []shared.Event{
			shared.NewDailyStreakUpdatedEvent(r.Record.UserID, r.PreviousStreak, r.Record.StreakDays),
		}
	case StreakReset:
		return []shared.Event{
			shared.NewDailyStreakBrokenEvent(r.Record.UserID, r.PreviousStreak, r.SinceLast),
		}
	}
	return nil
}
