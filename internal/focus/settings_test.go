package focus

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_ClampBeforeSave(t *testing.T) {
	t.Parallel()
	db, err := storage.Open(filepath.Join(t.TempDir(), "focus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewSettings(db)
	ctx := context.Background()

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPomodoroSettings(), got)

	in := domain.PomodoroSettings{FocusMinutes: 0, ShortBreakMinutes: 500, LongBreakMinutes: -3, CyclesBeforeLongBreak: 99, EnableSound: true}
	first, err := svc.Save(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, in.Clamp(), first)

	second, err := svc.Save(ctx, "u1", first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
