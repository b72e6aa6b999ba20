package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPomodoroSettings_Clamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   PomodoroSettings
		want PomodoroSettings
	}{
		{
			name: "defaults untouched",
			in:   DefaultPomodoroSettings(),
			want: DefaultPomodoroSettings(),
		},
		{
			name: "below bounds",
			in:   PomodoroSettings{FocusMinutes: 0, ShortBreakMinutes: -3, LongBreakMinutes: 0, CyclesBeforeLongBreak: 0},
			want: PomodoroSettings{FocusMinutes: 1, ShortBreakMinutes: 1, LongBreakMinutes: 1, CyclesBeforeLongBreak: 1},
		},
		{
			name: "above bounds",
			in:   PomodoroSettings{FocusMinutes: 500, ShortBreakMinutes: 61, LongBreakMinutes: 121, CyclesBeforeLongBreak: 13, EnableSound: true},
			want: PomodoroSettings{FocusMinutes: 180, ShortBreakMinutes: 60, LongBreakMinutes: 120, CyclesBeforeLongBreak: 12, EnableSound: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.in.Clamp()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, got.Clamp(), "clamped settings must be a fixed point")
		})
	}
}

func TestClampFocusSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, ClampFocusSeconds(0))
	assert.Equal(t, 1, ClampFocusSeconds(-10))
	assert.Equal(t, 1500, ClampFocusSeconds(1500))
	assert.Equal(t, 86400, ClampFocusSeconds(86400))
	assert.Equal(t, 86400, ClampFocusSeconds(90000))
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	r, err := ParseRating("Good")
	assert.NoError(t, err)
	assert.Equal(t, Good, r)

	r, err = ParseRating("1")
	assert.NoError(t, err)
	assert.Equal(t, Again, r)

	_, err = ParseRating("5")
	assert.True(t, IsValidation(err))

	_, err = ParseRating("great")
	assert.True(t, IsValidation(err))
}
