package progression

import (
	"math"
	"time"

	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - прогрессия пользователя (часть профиля).
type Record struct {
	// UserID - идентификатор пользователя во внешнем провайдере.
	UserID string `json:"user_id"`

	// DisplayName - отображаемое имя (может быть пустым).
	DisplayName string `json:"display_name,omitempty"`

	// XP - накопленный опыт, никогда не уменьшается.
	XP int `json:"xp"`

	// Level - уровень, всегда равен LevelFromXP(XP).
	Level int `json:"level"`

	// StreakDays - длина текущей серии активных дней.
	StreakDays int `json:"streak_days"`

	// LastActiveAt - время последней активности; nil, если её не было.
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord создаёт пустую запись для нового пользователя.
func NewRecord(userID string) (*Record, error) {
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Record{
		UserID:     uid.String(),
		XP:         0,
		Level:      1,
		StreakDays: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsFresh возвращает true, если активность ещё не фиксировалась.
func (r Record) IsFresh() bool {
	return r.LastActiveAt == nil
}

// Validate проверяет инварианты записи относительно кривой.
func (r Record) Validate(c *Curve) error {
	if r.XP < 0 || r.StreakDays < 0 {
		return shared.NewDomainError("progression", "Validate", shared.ErrNegativeValue, "xp and streak must be non-negative")
	}
	if r.Level != c.LevelFromXP(r.XP) {
		return shared.ErrInconsistentLevel
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// XP GAIN
// ══════════════════════════════════════════════════════════════════════════════

// XPGainResult - результат начисления XP.
type XPGainResult struct {
	Record    Record `json:"record"`
	XPGain    int    `json:"xp_gain"`
	OldLevel  int    `json:"old_level"`
	LeveledUp bool   `json:"leveled_up"`
}

// ApplyXPGain начисляет XP и пересчитывает уровень. Исходная запись
// не изменяется. Отрицательное начисление и переполнение суммы отклоняются.
func (c *Curve) ApplyXPGain(rec Record, gain int) (XPGainResult, error) {
	if gain < 0 {
		return XPGainResult{}, shared.ErrNegativeXPGain
	}
	if !CanAddXP(rec.XP, gain) {
		return XPGainResult{}, shared.ErrXPOverflow
	}

	oldLevel := rec.Level
	if oldLevel < 1 {
		oldLevel = 1
	}

	updated := rec
	updated.XP = rec.XP + gain
	updated.Level = c.LevelFromXP(updated.XP)

	return XPGainResult{
		Record:    updated,
		XPGain:    gain,
		OldLevel:  oldLevel,
		LeveledUp: updated.Level > oldLevel,
	}, nil
}

// CanAddXP сообщает, помещается ли xp+gain в int.
func CanAddXP(xp, gain int) bool {
	return gain <= math.MaxInt-max(xp, 0)
}

// ApplyXPGain начисляет XP по кривой по умолчанию.
func ApplyXPGain(rec Record, gain int) (XPGainResult, error) {
	return DefaultCurve.ApplyXPGain(rec, gain)
}

// Events возвращает доменные события начисления.
func (r XPGainResult) Events(source Source) []shared.Event {
	events := []shared.Event{
		shared.NewXPGainedEvent(r.Record.UserID, r.XPGain, r.Record.XP, r.Record.Level, string(source)),
	}
	if r.LeveledUp {
		events = append(events, shared.NewLevelUpEvent(r.Record.UserID, r.OldLevel, r.Record.Level, r.Record.XP))
	}
	return events
}
