package progression

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

const testUserID = "5f0c3a52-9d7e-4c1b-8a3f-2b6e1d4c7a90"

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord(testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.XP)
	assert.Equal(t, 1, rec.Level)
	assert.Equal(t, 0, rec.StreakDays)
	assert.True(t, rec.IsFresh())
	assert.NoError(t, rec.Validate(DefaultCurve))

	_, err = NewRecord("not-a-uuid")
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestApplyXPGain_LevelUp(t *testing.T) {
	res, err := ApplyXPGain(Record{UserID: testUserID, XP: 90, Level: 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Record.XP)
	assert.Equal(t, 2, res.Record.Level)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 10, res.XPGain)
	assert.Equal(t, 1, res.OldLevel)
}

func TestApplyXPGain_NoLevelUp(t *testing.T) {
	res, err := ApplyXPGain(Record{UserID: testUserID, XP: 50, Level: 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, 60, res.Record.XP)
	assert.Equal(t, 1, res.Record.Level)
	assert.False(t, res.LeveledUp)
}

func TestApplyXPGain_MultipleLevels(t *testing.T) {
	res, err := ApplyXPGain(Record{UserID: testUserID, XP: 0, Level: 1}, 400)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Record.Level)
	assert.True(t, res.LeveledUp)

	events := res.Events(SourceQuiz)
	require.Len(t, events, 2)
	assert.Equal(t, shared.EventXPGained, events[0].EventType())
	levelUp, ok := events[1].(shared.LevelUpEvent)
	require.True(t, ok)
	assert.Equal(t, 3, levelUp.LevelsGained())
}

func TestApplyXPGain_ZeroGainKeepsRecord(t *testing.T) {
	in := Record{UserID: testUserID, XP: 150, Level: 2}
	res, err := ApplyXPGain(in, 0)
	require.NoError(t, err)
	assert.Equal(t, in.XP, res.Record.XP)
	assert.False(t, res.LeveledUp)
	assert.Len(t, res.Events(SourceManual), 1)
}

func TestApplyXPGain_RejectsNegative(t *testing.T) {
	in := Record{UserID: testUserID, XP: 150, Level: 2}
	_, err := ApplyXPGain(in, -1)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, 150, in.XP)
}

func TestApplyXPGain_RejectsOverflow(t *testing.T) {
	in := Record{UserID: testUserID, XP: math.MaxInt - 5, Level: MaxLevel}
	_, err := ApplyXPGain(in, 10)
	assert.ErrorIs(t, err, shared.ErrXPOverflow)
	assert.True(t, shared.IsValidation(err))

	res, err := ApplyXPGain(in, 5)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, res.Record.XP)
}

func TestApplyXPGain_RepairsStaleLevel(t *testing.T) {
	// level is derived; a stored level that drifted is recomputed
	res, err := ApplyXPGain(Record{UserID: testUserID, XP: 250, Level: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Record.Level)
	assert.NoError(t, res.Record.Validate(DefaultCurve))
}

func TestRecordValidate(t *testing.T) {
	assert.ErrorIs(t, Record{XP: 100, Level: 1}.Validate(DefaultCurve), shared.ErrInvalidState)
	assert.ErrorIs(t, Record{XP: -1, Level: 1}.Validate(DefaultCurve), shared.ErrNegativeValue)
}

func TestAward_XP(t *testing.T) {
	xp, err := Award{Source: SourceMessage}.XP()
	require.NoError(t, err)
	assert.Equal(t, 10, xp)

	xp, err = Award{Source: SourceQuiz, Correct: 3}.XP()
	require.NoError(t, err)
	assert.Equal(t, 150, xp)

	xp, err = Award{Source: SourceManual, Amount: 7}.XP()
	require.NoError(t, err)
	assert.Equal(t, 7, xp)

	_, err = Award{Source: SourceQuiz, Correct: -1}.XP()
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	_, err = Award{Source: SourceManual, Amount: -5}.XP()
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	xp, err = Award{Source: SourceQuiz, Correct: MaxQuizCorrect}.XP()
	require.NoError(t, err)
	assert.Equal(t, MaxQuizCorrect*XPPerChallenge, xp)

	for _, correct := range []int{MaxQuizCorrect + 1, 5534023222112865485, 2e17} {
		_, err = AwardForQuiz(correct)
		assert.ErrorIs(t, err, shared.ErrTooManyCorrect, correct)
		assert.True(t, shared.IsValidation(err))
	}

	_, err = Award{Source: SourceManual, Amount: MaxManualAward + 1}.XP()
	assert.ErrorIs(t, err, shared.ErrXPGainTooLarge)

	_, err = Award{Source: "gift"}.XP()
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSource_IsValid(t *testing.T) {
	assert.True(t, SourceMessage.IsValid())
	assert.False(t, Source("").IsValid())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
