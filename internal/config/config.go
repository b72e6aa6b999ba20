// Package config loads studyhash configuration from, in rising precedence,
// flag defaults, a YAML file, STUDYHASH_ environment variables and flags set
// on the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/practice"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore: STUDYHASH_PRACTICE__RETRY_CAP=5.
const EnvPrefix = "STUDYHASH_"

type Config struct {
	Env      string         `koanf:"env" validate:"oneof=development production"`
	User     string         `koanf:"user"`
	DB       DBConfig       `koanf:"db"`
	HTTP     HTTPConfig     `koanf:"http"`
	Agenda   AgendaConfig   `koanf:"agenda"`
	Practice PracticeConfig `koanf:"practice"`
	Import   ImportConfig   `koanf:"import"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type HTTPConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
	SessionTTL   time.Duration `koanf:"session_ttl" validate:"min=0"`
}

type AgendaConfig struct {
	TimeZone string `koanf:"time_zone" validate:"required,timezone"`
	Days     int    `koanf:"days" validate:"min=1,max=366"`
}

type PracticeConfig struct {
	NewCardLimit      int           `koanf:"new_card_limit" validate:"min=-1"`
	RetryCap          int           `koanf:"retry_cap" validate:"min=1,max=10"`
	RequeueGap        int           `koanf:"requeue_gap" validate:"min=1"`
	WriteBackoff      time.Duration `koanf:"write_backoff" validate:"gt=0"`
	CompletionTimeout time.Duration `koanf:"completion_timeout" validate:"gt=0"`
}

type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// RegisterFlags adds every configuration key, plus --config, to fs. The flag
// defaults are the configuration defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("env", "development", "runtime environment: development or production")
	fs.String("user", "", "user id for local commands")
	fs.String("db.path", "studyhash.db", "path to the SQLite database file")
	fs.String("http.addr", ":8080", "HTTP listen address")
	fs.Duration("http.read_timeout", 10*time.Second, "HTTP read timeout")
	fs.Duration("http.write_timeout", 30*time.Second, "HTTP write timeout")
	fs.Duration("http.session_ttl", 30*time.Minute, "close practice sessions idle this long, 0 to keep them")
	fs.String("agenda.time_zone", "UTC", "IANA time zone for agenda day buckets")
	fs.Int("agenda.days", 7, "default agenda horizon in days")
	fs.Int("practice.new_card_limit", 20, "New cards per practice session, -1 for none")
	fs.Int("practice.retry_cap", 3, "same-session repeats of a card rated Again")
	fs.Int("practice.requeue_gap", 3, "cards shown before a repeated card returns")
	fs.Duration("practice.write_backoff", 250*time.Millisecond, "wait before retrying a failed rating write")
	fs.Duration("practice.completion_timeout", 5*time.Second, "bound on waiting for rating writes when a session ends")
	fs.String("import.repos_dir", "repos", "directory git deck sources are cloned into")
}

// Load reads the configuration for a flag set prepared by RegisterFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("config flag: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Unchanged flags only fill keys no other source set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks the configuration and reports the first failing field as a
// domain.ValidationError.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{
			Field:   fe.Namespace(),
			Message: fmt.Sprintf("Tag: %s, Param: %s, Value: %v", fe.Tag(), fe.Param(), fe.Value()),
		}
	}
	return err
}

// Production reports whether production logging and defaults apply.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Location resolves the agenda time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Agenda.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("agenda time zone %q: %w", c.Agenda.TimeZone, err)
	}
	return loc, nil
}

// PracticeOptions converts the practice section to sequencer options.
func (c *Config) PracticeOptions() practice.Options {
	return practice.Options{
		NewCardLimit:      c.Practice.NewCardLimit,
		RetryCap:          c.Practice.RetryCap,
		RequeueGap:        c.Practice.RequeueGap,
		WriteBackoff:      c.Practice.WriteBackoff,
		CompletionTimeout: c.Practice.CompletionTimeout,
	}
}

// UserID returns the configured user, falling back to $USER.
func (c *Config) UserID() string {
	if c.User != "" {
		return c.User
	}
	return os.Getenv("USER")
}
