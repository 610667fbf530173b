package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCronExpression_Next(t *testing.T) {
	cases := []struct {
		expr string
		from string
		want string
	}{
		{"*/10 * * * *", "2024-03-10 12:03", "2024-03-10 12:10"},
		{"*/10 * * * *", "2024-03-10 12:10", "2024-03-10 12:20"},
		{"0 21 * * *", "2024-03-10 21:00", "2024-03-11 21:00"},
		{"30 9 * * 1", "2024-03-10 12:00", "2024-03-11 09:30"}, // Sunday -> Monday
		{"0 0 1 * *", "2024-12-15 08:00", "2025-01-01 00:00"},
		{"15,45 8-9 * * *", "2024-03-10 08:50", "2024-03-10 09:15"},
	}
	for _, tc := range cases {
		t.Run(tc.expr+" from "+tc.from, func(t *testing.T) {
			ce, err := ParseCronExpression(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, at(tc.want), ce.Next(at(tc.from)))
		})
	}
}

func TestCronExpression_NoMatchWithinAYear(t *testing.T) {
	ce := MustParseCronExpression("0 0 29 2 *")
	assert.True(t, ce.Next(at("2024-03-01 00:00")).IsZero())
}

func TestCronExpression_DayFieldsAreOred(t *testing.T) {
	// 13th of the month or any Friday.
	ce := MustParseCronExpression("0 0 13 * 5")
	assert.Equal(t, at("2024-03-13 00:00"), ce.Next(at("2024-03-09 00:00")))
	assert.Equal(t, at("2024-03-08 00:00"), ce.Next(at("2024-03-07 00:00")))
}

func TestParseCronExpression_Errors(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "*/0 * * * *", "5-1 * * * *", "a * * * *", "* * 0 * *"} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 90s")
	require.NoError(t, err)
	assert.Equal(t, "@every 1m30s", s.String())
	assert.Equal(t, at("2024-03-10 12:01").Add(30*time.Second), s.Next(at("2024-03-10 12:00")))

	s, err = ParseSchedule("@hourly")
	require.NoError(t, err)
	assert.Equal(t, at("2024-03-10 13:00"), s.Next(at("2024-03-10 12:15")))

	s, err = ParseSchedule(" */5 * * * * ")
	require.NoError(t, err)
	assert.Equal(t, at("2024-03-10 12:05"), s.Next(at("2024-03-10 12:00")))

	for _, bad := range []string{"", "@every", "@every -1m", "@every soon", "@yearly-ish"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}
