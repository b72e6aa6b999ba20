package focus

import (
	"context"

	"github.com/conorfennell/studyhash/internal/domain"
)

// SettingsStore persists per-user timer settings.
type SettingsStore interface {
	GetPomodoroSettings(ctx context.Context, userID string) (domain.PomodoroSettings, error)
	SavePomodoroSettings(ctx context.Context, userID string, s domain.PomodoroSettings) (domain.PomodoroSettings, error)
}

// Settings reads and writes timer settings, clamping every save so
// out-of-range values never reach the store.
type Settings struct {
	store SettingsStore
}

func NewSettings(store SettingsStore) *Settings {
	return &Settings{store: store}
}

// Get returns the user's settings, creating the defaults on first read.
func (s *Settings) Get(ctx context.Context, userID string) (domain.PomodoroSettings, error) {
	return s.store.GetPomodoroSettings(ctx, userID)
}

// Save clamps and stores the settings and returns the stored record.
func (s *Settings) Save(ctx context.Context, userID string, in domain.PomodoroSettings) (domain.PomodoroSettings, error) {
	return s.store.SavePomodoroSettings(ctx, userID, in.Clamp())
}
