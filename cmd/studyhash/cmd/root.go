package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conorfennell/studyhash/internal/config"
	"github.com/conorfennell/studyhash/internal/storage"
	"github.com/conorfennell/studyhash/internal/study"
)

// version is set at build time with -ldflags.
var version = "dev"

var (
	cfg    *config.Config
	logger *zap.Logger
	db     *storage.DB
)

var rootCmd = &cobra.Command{
	Use:   "studyhash",
	Short: "Spaced repetition over markdown flashcard decks",
	Long: `studyhash imports flashcards from markdown decks, schedules their reviews,
and serves the study agenda, practice sessions and a focus timer over HTTP,
MCP or the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		logger, err = setupLogger(cfg)
		if err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}
		db, err = storage.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("open database %s: %w", cfg.DB.Path, err)
		}
		logger.Debug("database opened", zap.String("path", cfg.DB.Path))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			_ = logger.Sync()
		}
		if db != nil {
			return db.Close()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newService() (*study.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return study.New(db, study.Options{
		Location: loc,
		Practice: cfg.PracticeOptions(),
	}, logger.Named("study")), nil
}

func requireUser() (string, error) {
	user := cfg.UserID()
	if user == "" {
		return "", fmt.Errorf("no user: set --user or STUDYHASH_USER")
	}
	return user, nil
}
