package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studyhash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.Production())
	assert.Equal(t, "studyhash.db", cfg.DB.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Minute, cfg.HTTP.SessionTTL)
	assert.Equal(t, 7, cfg.Agenda.Days)
	assert.Equal(t, 5*time.Second, cfg.Practice.CompletionTimeout)

	opts := cfg.PracticeOptions()
	assert.Equal(t, 20, opts.NewCardLimit)
	assert.Equal(t, 250*time.Millisecond, opts.WriteBackoff)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
env: production
db:
  path: /var/lib/studyhash/file.db
agenda:
  time_zone: Asia/Tokyo
  days: 14
practice:
  retry_cap: 2
  write_backoff: 1s
`)
	t.Setenv("STUDYHASH_AGENDA__DAYS", "21")
	t.Setenv("STUDYHASH_PRACTICE__REQUEUE_GAP", "5")

	cfg, err := Load(newFlags(t, "--config", path, "--practice.retry_cap", "4"))
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "/var/lib/studyhash/file.db", cfg.DB.Path, "file over default")
	assert.Equal(t, 21, cfg.Agenda.Days, "env over file")
	assert.Equal(t, 5, cfg.Practice.RequeueGap, "env over default")
	assert.Equal(t, 4, cfg.Practice.RetryCap, "explicit flag over file")
	assert.Equal(t, time.Second, cfg.Practice.WriteBackoff)
	assert.Equal(t, "Asia/Tokyo", cfg.Agenda.TimeZone)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown env", []string{"--env", "staging"}},
		{"days out of range", []string{"--agenda.days", "400"}},
		{"bad time zone", []string{"--agenda.time_zone", "Mars/Olympus"}},
		{"zero timeout", []string{"--practice.completion_timeout", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...))
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "practice.new_card_limit", envKey("STUDYHASH_PRACTICE__NEW_CARD_LIMIT"))
	assert.Equal(t, "env", envKey("STUDYHASH_ENV"))
}
