package progression

import (
	"math"
	"sort"

	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultBase - XP, необходимый для перехода с уровня 1 на уровень 2.
	DefaultBase = 100

	// DefaultScaling - рост стоимости каждого следующего уровня (+10%).
	DefaultScaling = 1.1

	// MaxLevel - абсолютный потолок уровня. Кривые с быстрым ростом
	// упираются в переполнение int раньше, см. Curve.LevelCap.
	MaxLevel = 350
)

// DefaultCurve - кривая уровней по умолчанию (100 XP, +10% за уровень).
var DefaultCurve = MustNewCurve(DefaultBase, DefaultScaling)

// ══════════════════════════════════════════════════════════════════════════════
// CURVE
// ══════════════════════════════════════════════════════════════════════════════

// Curve описывает соответствие между накопленным XP и уровнем.
// Пороги считаются один раз при создании, каждое слагаемое округляется вниз.
// Неизменяема после создания, поэтому безопасна для конкурентного использования.
type Curve struct {
	base    float64
	scaling float64

	thresholds []int // thresholds[i] - XP для уровня i+1
}

// NewCurve создаёт кривую. base должен быть > 0, scaling >= 1.
// Уровни строятся, пока порог помещается в int, но не выше MaxLevel.
// Кривая, у которой не помещается даже второй уровень, отклоняется.
func NewCurve(base int, scaling float64) (*Curve, error) {
	if base <= 0 || scaling < 1 || math.IsNaN(scaling) || math.IsInf(scaling, 0) {
		return nil, shared.ErrInvalidCurve
	}
	c := &Curve{
		base:       float64(base),
		scaling:    scaling,
		thresholds: make([]int, 1, MaxLevel),
	}
	for l := 1; l < MaxLevel; l++ {
		step, ok := c.step(l)
		prev := c.thresholds[l-1]
		if !ok || step > math.MaxInt-prev {
			break
		}
		c.thresholds = append(c.thresholds, prev+step)
	}
	if len(c.thresholds) < 2 {
		return nil, shared.ErrInvalidCurve
	}
	return c, nil
}

// MustNewCurve создаёт кривую или паникует.
func MustNewCurve(base int, scaling float64) *Curve {
	c, err := NewCurve(base, scaling)
	if err != nil {
		panic(err)
	}
	return c
}

// Base возвращает стоимость первого уровня.
func (c *Curve) Base() int {
	return int(c.base)
}

// Scaling возвращает множитель роста.
func (c *Curve) Scaling() float64 {
	return c.scaling
}

// LevelCap возвращает наибольший достижимый уровень кривой.
func (c *Curve) LevelCap() int {
	return len(c.thresholds)
}

// step возвращает стоимость перехода с уровня i на уровень i+1 (i >= 1).
// ok == false, если стоимость не помещается в int.
func (c *Curve) step(i int) (int, bool) {
	v := math.Floor(c.base * math.Pow(c.scaling, float64(i-1)))
	if v >= math.MaxInt64 { // float64(math.MaxInt64) == 2^63
		return 0, false
	}
	return int(v), true
}

// XPRequiredForLevel возвращает суммарный XP, при котором начинается уровень.
// Для level <= 1 возвращает 0. Уровни выше LevelCap насыщаются: порог
// не растёт, и round-trip с LevelFromXP выполняется только до LevelCap.
func (c *Curve) XPRequiredForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > len(c.thresholds) {
		level = len(c.thresholds)
	}
	return c.thresholds[level-1]
}

// LevelFromXP возвращает наибольший уровень, порог которого не превышает xp.
// Отрицательный XP трактуется как 0. Результат не превышает LevelCap.
func (c *Curve) LevelFromXP(xp int) int {
	// уровень = число порогов <= xp; порог уровня 1 засчитывается всегда
	n := sort.Search(len(c.thresholds)-1, func(i int) bool { return c.thresholds[i+1] > xp })
	return n + 1
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL PROGRESS (для отображения)
// ══════════════════════════════════════════════════════════════════════════════

// LevelProgress - прогресс внутри текущего уровня.
type LevelProgress struct {
	Level           int `json:"level"`
	XP              int `json:"xp"`
	LevelStartXP    int `json:"level_start_xp"`
	NextLevelXP     int `json:"next_level_xp"`
	XPIntoLevel     int `json:"xp_into_level"`
	XPNeededForNext int `json:"xp_needed_for_next"`
	ProgressPercent int `json:"progress_percent"`
}

// XPRemaining возвращает, сколько XP осталось до следующего уровня.
func (p LevelProgress) XPRemaining() int {
	if rem := p.NextLevelXP - p.XP; rem > 0 {
		return rem
	}
	return 0
}

// Progress вычисляет прогресс внутри уровня. Процент ограничен диапазоном
// [0, 100]; при нулевой стоимости уровня возвращается 0.
func (c *Curve) Progress(level, xp int) LevelProgress {
	if level < 1 {
		level = 1
	}
	start := c.XPRequiredForLevel(level)
	next := c.XPRequiredForLevel(level + 1)

	p := LevelProgress{
		Level:           level,
		XP:              xp,
		LevelStartXP:    start,
		NextLevelXP:     next,
		XPIntoLevel:     xp - start,
		XPNeededForNext: next - start,
	}

	if p.XPNeededForNext <= 0 {
		return p
	}

	pct := int(math.Round(100 * float64(p.XPIntoLevel) / float64(p.XPNeededForNext)))
	switch {
	case pct > 100:
		pct = 100
	case pct < 0:
		pct = 0
	}
	p.ProgressPercent = pct
	return p
}

// LevelThreshold - строка таблицы порогов.
type LevelThreshold struct {
	Level      int `json:"level"`
	XPRequired int `json:"xp_required"`
	StepCost   int `json:"step_cost"`
}

// LevelTable возвращает пороги уровней 1..maxLevel.
func (c *Curve) LevelTable(maxLevel int) ([]LevelThreshold, error) {
	if maxLevel < 1 || maxLevel > c.LevelCap() {
		return nil, shared.ErrLevelOutOfRange
	}
	table := make([]LevelThreshold, 0, maxLevel)
	prev := 0
	for l := 1; l <= maxLevel; l++ {
		xp := c.XPRequiredForLevel(l)
		table = append(table, LevelThreshold{Level: l, XPRequired: xp, StepCost: xp - prev})
		prev = xp
	}
	return table, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PACKAGE-LEVEL HELPERS (кривая по умолчанию)
// ══════════════════════════════════════════════════════════════════════════════

// XPRequiredForLevel - порог уровня по кривой по умолчанию.
// Выше MaxLevel порог насыщается и перестаёт строго расти.
func XPRequiredForLevel(level int) int {
	return DefaultCurve.XPRequiredForLevel(level)
}

// LevelFromXP - уровень по кривой по умолчанию, не выше MaxLevel.
func LevelFromXP(xp int) int {
	return DefaultCurve.LevelFromXP(xp)
}

// Progress - прогресс внутри уровня по кривой по умолчанию.
func Progress(level, xp int) LevelProgress {
	return DefaultCurve.Progress(level, xp)
}
