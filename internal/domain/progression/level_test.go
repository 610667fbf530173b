package progression

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

func TestXPRequiredForLevel_KnownThresholds(t *testing.T) {
	cases := map[int]int{
		-3: 0,
		0:  0,
		1:  0,
		2:  100,
		3:  210,
		4:  331,
		5:  464, // 331 + floor(133.1)
		6:  610, // 464 + floor(146.41)
	}
	for level, want := range cases {
		assert.Equal(t, want, XPRequiredForLevel(level), "level %d", level)
	}
}

func TestXPRequiredForLevel_FloorsEachAddend(t *testing.T) {
	// Unfloored terms sum to 1143.58881 for level 9; per-term flooring gives 1142.
	assert.Equal(t, 771, XPRequiredForLevel(7))
	assert.Equal(t, 948, XPRequiredForLevel(8))
	assert.Equal(t, 1142, XPRequiredForLevel(9))
}

func TestXPRequiredForLevel_StrictlyIncreasing(t *testing.T) {
	for level := 1; level < 200; level++ {
		assert.Greater(t, XPRequiredForLevel(level+1), XPRequiredForLevel(level), "level %d", level)
	}
}

func TestLevelFromXP_Boundaries(t *testing.T) {
	cases := map[int]int{
		0:   1,
		99:  1,
		100: 2,
		209: 2,
		210: 3,
		330: 3,
		331: 4,
		-50: 1,
	}
	for xp, want := range cases {
		assert.Equal(t, want, LevelFromXP(xp), "xp %d", xp)
	}
}

func TestLevelFromXP_RoundTrip(t *testing.T) {
	for level := 1; level <= 150; level++ {
		threshold := XPRequiredForLevel(level)
		assert.Equal(t, level, LevelFromXP(threshold), "threshold of level %d", level)
		if level > 1 {
			assert.Equal(t, level-1, LevelFromXP(threshold-1), "one xp short of level %d", level)
		}
	}
}

func TestLevelFromXP_SaturatesAtMaxLevel(t *testing.T) {
	assert.Equal(t, MaxLevel, LevelFromXP(XPRequiredForLevel(MaxLevel)+1_000_000))
}

func TestCurve_DefaultReachesMaxLevel(t *testing.T) {
	assert.Equal(t, MaxLevel, DefaultCurve.LevelCap())
	for level := 1; level < MaxLevel; level++ {
		require.Greater(t, XPRequiredForLevel(level+1), XPRequiredForLevel(level), "level %d", level)
	}
	assert.Equal(t, XPRequiredForLevel(MaxLevel), XPRequiredForLevel(MaxLevel+1))
	assert.Equal(t, MaxLevel, LevelFromXP(math.MaxInt))
}

func TestCurve_SteepCurveStopsBeforeOverflow(t *testing.T) {
	c, err := NewCurve(100, 2)
	require.NoError(t, err)

	// 100 * (2^56 - 1) is the last threshold that fits in int64.
	top := c.LevelCap()
	assert.Equal(t, 57, top)
	assert.Equal(t, 7205759403792793500, c.XPRequiredForLevel(top))

	for level := 1; level < top; level++ {
		require.Greater(t, c.XPRequiredForLevel(level+1), c.XPRequiredForLevel(level), "level %d", level)
		threshold := c.XPRequiredForLevel(level + 1)
		require.Equal(t, level+1, c.LevelFromXP(threshold), "threshold of level %d", level+1)
		require.Equal(t, level, c.LevelFromXP(threshold-1), "one xp short of level %d", level+1)
	}
	assert.Equal(t, c.XPRequiredForLevel(top), c.XPRequiredForLevel(top+1))
	assert.Equal(t, top, c.LevelFromXP(math.MaxInt))

	_, err = c.LevelTable(top + 1)
	assert.ErrorIs(t, err, shared.ErrLevelOutOfRange)
	table, err := c.LevelTable(top)
	require.NoError(t, err)
	assert.Len(t, table, top)
}

func TestNewCurve_RejectsCurveWithoutSecondLevel(t *testing.T) {
	_, err := NewCurve(math.MaxInt, 1.5)
	assert.ErrorIs(t, err, shared.ErrInvalidCurve)
}

func TestCurve_ConcurrentAccess(t *testing.T) {
	c := MustNewCurve(DefaultBase, DefaultScaling)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for level := 1; level < 60+n; level++ {
				_ = c.LevelFromXP(c.XPRequiredForLevel(level))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 331, c.XPRequiredForLevel(4))
}

func TestNewCurve_Validation(t *testing.T) {
	_, err := NewCurve(0, 1.1)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = NewCurve(100, 0.9)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	linear, err := NewCurve(50, 1)
	require.NoError(t, err)
	assert.Equal(t, 150, linear.XPRequiredForLevel(4))
	assert.Equal(t, 4, linear.LevelFromXP(150))
}

func TestProgress(t *testing.T) {
	p := Progress(2, 155)
	assert.Equal(t, 100, p.LevelStartXP)
	assert.Equal(t, 210, p.NextLevelXP)
	assert.Equal(t, 55, p.XPIntoLevel)
	assert.Equal(t, 110, p.XPNeededForNext)
	assert.Equal(t, 50, p.ProgressPercent)
	assert.Equal(t, 55, p.XPRemaining())

	assert.Equal(t, 0, Progress(1, 0).ProgressPercent)
	// stale level with more xp than the next threshold is capped
	assert.Equal(t, 100, Progress(1, 500).ProgressPercent)
	assert.Equal(t, 0, Progress(3, 10).ProgressPercent)
}

func TestProgress_ZeroWidthLevelDoesNotDivide(t *testing.T) {
	p := Progress(MaxLevel, XPRequiredForLevel(MaxLevel))
	assert.Equal(t, 0, p.XPNeededForNext)
	assert.Equal(t, 0, p.ProgressPercent)
}

func TestLevelTable(t *testing.T) {
	table, err := DefaultCurve.LevelTable(4)
	require.NoError(t, err)
	require.Len(t, table, 4)
	assert.Equal(t, LevelThreshold{Level: 1, XPRequired: 0, StepCost: 0}, table[0])
	assert.Equal(t, LevelThreshold{Level: 3, XPRequired: 210, StepCost: 110}, table[2])
	assert.Equal(t, LevelThreshold{Level: 4, XPRequired: 331, StepCost: 121}, table[3])

	_, err = DefaultCurve.LevelTable(0)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}
