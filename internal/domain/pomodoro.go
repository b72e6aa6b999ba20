package domain

import "time"

// Bounds for PomodoroSettings and PomodoroSession fields.
const (
	MinFocusMinutes      = 1
	MaxFocusMinutes      = 180
	MinShortBreakMinutes = 1
	MaxShortBreakMinutes = 60
	MinLongBreakMinutes  = 1
	MaxLongBreakMinutes  = 120
	MinCycles            = 1
	MaxCycles            = 12

	MinFocusSeconds = 1
	MaxFocusSeconds = 86400
)

// PomodoroSettings are the per-user focus timer preferences.
type PomodoroSettings struct {
	FocusMinutes          int  `json:"focus_minutes" db:"focus_minutes" validate:"min=1,max=180"`
	ShortBreakMinutes     int  `json:"short_break_minutes" db:"short_break_minutes" validate:"min=1,max=60"`
	LongBreakMinutes      int  `json:"long_break_minutes" db:"long_break_minutes" validate:"min=1,max=120"`
	CyclesBeforeLongBreak int  `json:"cycles_before_long_break" db:"cycles_before_long_break" validate:"min=1,max=12"`
	EnableNotifications   bool `json:"enable_notifications" db:"enable_notifications"`
	EnableSound           bool `json:"enable_sound" db:"enable_sound"`
	DockIsOpen            bool `json:"dock_is_open" db:"dock_is_open"`
}

// DefaultPomodoroSettings returns the settings a user starts with.
func DefaultPomodoroSettings() PomodoroSettings {
	return PomodoroSettings{
		FocusMinutes:          25,
		ShortBreakMinutes:     5,
		LongBreakMinutes:      15,
		CyclesBeforeLongBreak: 4,
		EnableNotifications:   false,
		EnableSound:           true,
		DockIsOpen:            true,
	}
}

// Clamp returns a copy with every numeric field forced into its bounds.
// Clamped settings are a fixed point: s.Clamp().Clamp() == s.Clamp().
func (s PomodoroSettings) Clamp() PomodoroSettings {
	s.FocusMinutes = clampInt(s.FocusMinutes, MinFocusMinutes, MaxFocusMinutes)
	s.ShortBreakMinutes = clampInt(s.ShortBreakMinutes, MinShortBreakMinutes, MaxShortBreakMinutes)
	s.LongBreakMinutes = clampInt(s.LongBreakMinutes, MinLongBreakMinutes, MaxLongBreakMinutes)
	s.CyclesBeforeLongBreak = clampInt(s.CyclesBeforeLongBreak, MinCycles, MaxCycles)
	return s
}

// Focus is the focus interval length.
func (s PomodoroSettings) Focus() time.Duration {
	return time.Duration(s.FocusMinutes) * time.Minute
}

// ShortBreak is the short break length.
func (s PomodoroSettings) ShortBreak() time.Duration {
	return time.Duration(s.ShortBreakMinutes) * time.Minute
}

// LongBreak is the long break length.
func (s PomodoroSettings) LongBreak() time.Duration {
	return time.Duration(s.LongBreakMinutes) * time.Minute
}

// PomodoroSession is an immutable log entry for one completed focus interval.
type PomodoroSession struct {
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	FocusSeconds int       `json:"focus_seconds"`
	ProjectID    *string   `json:"project_id,omitempty"`
}

// ClampFocusSeconds forces a focus duration into [1, 86400].
func ClampFocusSeconds(seconds int) int {
	return clampInt(seconds, MinFocusSeconds, MaxFocusSeconds)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
