// Package importer loads markdown decks from a local directory or a git
// repository into a project. Each markdown file becomes one flashcard group;
// cards are keyed by a hash of their content, so importing again adds new
// cards and leaves the scheduling state of existing ones untouched.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/gitsource"
	"github.com/conorfennell/studyhash/internal/knol"
	"github.com/conorfennell/studyhash/internal/parser"
	"go.uber.org/zap"
)

// Store is the write side of the card store the importer needs.
type Store interface {
	ProjectOwner(ctx context.Context, projectID string) (string, error)
	UpsertProject(ctx context.Context, id, ownerID, title string) error
	UpsertGroup(ctx context.Context, g domain.FlashcardGroup) error
	InsertCard(ctx context.Context, card domain.Flashcard) (bool, error)
	ListProjectCards(ctx context.Context, projectID string) ([]domain.Flashcard, error)
	AddDeckSource(ctx context.Context, projectID, path string) error
	MarkDeckSourceScanned(ctx context.Context, projectID, path string, at time.Time) error
	ListDeckSources(ctx context.Context, projectID string) ([]domain.DeckSource, error)
}

// Source describes one import.
type Source struct {
	Path      string // local directory or git URL
	ProjectID string
	Title     string
	OwnerID   string
}

// Report summarizes a sync of a project's deck sources.
type Report struct {
	Sources  int
	Groups   int
	Parsed   int
	Inserted int
	// Stale lists stored cards of the project that no deck contains any more.
	// They are kept with their history. Stale is left empty when a source
	// failed to sync, since its cards were not seen.
	Stale  []string
	Errors []error
}

// Importer runs imports against a store.
type Importer struct {
	store    Store
	reposDir string
	log      *zap.Logger
	now      func() time.Time
}

// New returns an Importer that checks git sources out under reposDir.
func New(store Store, reposDir string, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: store, reposDir: reposDir, log: log, now: time.Now}
}

// Import registers src.Path as a deck source of src.ProjectID, creating the
// project when needed, and syncs every registered source of the project.
// Per-source and per-file failures are collected in the report; failures
// that make the whole import meaningless are returned as errors.
func (im *Importer) Import(ctx context.Context, src Source) (Report, error) {
	exists, err := im.authorize(ctx, src.ProjectID, src.OwnerID)
	if err != nil {
		return Report{}, err
	}

	path := normalizePath(src.Path)
	dir, err := im.checkout(ctx, path)
	if err != nil {
		return Report{}, err
	}

	title := src.Title
	if title == "" && !exists {
		title = src.ProjectID
	}
	if err := im.store.UpsertProject(ctx, src.ProjectID, src.OwnerID, title); err != nil {
		return Report{}, err
	}
	if err := im.store.AddDeckSource(ctx, src.ProjectID, path); err != nil {
		return Report{}, err
	}

	return im.sync(ctx, src.ProjectID, map[string]string{path: dir})
}

// Resync syncs every registered deck source of an existing project.
func (im *Importer) Resync(ctx context.Context, projectID, ownerID string) (Report, error) {
	exists, err := im.authorize(ctx, projectID, ownerID)
	if err != nil {
		return Report{}, err
	}
	if !exists {
		return Report{}, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return im.sync(ctx, projectID, nil)
}

// authorize reports whether the project exists. A project owned by someone
// else is reported as not found.
func (im *Importer) authorize(ctx context.Context, projectID, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, domain.ErrNotAuthenticated
	}
	if projectID == "" {
		return false, &domain.ValidationError{Field: "project_id", Message: "required"}
	}
	owner, err := im.store.ProjectOwner(ctx, projectID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	case owner != ownerID:
		return false, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return true, nil
}

// sync reconciles all sources of the project. checkedOut maps source paths
// already checked out in this call to their directories.
func (im *Importer) sync(ctx context.Context, projectID string, checkedOut map[string]string) (Report, error) {
	sources, err := im.store.ListDeckSources(ctx, projectID)
	if err != nil {
		return Report{}, err
	}

	var report Report
	seen := make(map[string]bool)
	failed := false
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dir, ok := checkedOut[source.Path]
		if !ok {
			dir, err = im.checkout(ctx, source.Path)
			if err != nil {
				failed = true
				report.Errors = append(report.Errors, err)
				im.log.Warn("deck source not synced", zap.String("path", source.Path), zap.Error(err))
				continue
			}
		}
		if err := im.reconcile(ctx, projectID, dir, &report, seen); err != nil {
			failed = true
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Sources++
		if err := im.store.MarkDeckSourceScanned(ctx, projectID, source.Path, im.now()); err != nil {
			report.Errors = append(report.Errors, err)
		}
	}

	if !failed {
		stored, err := im.store.ListProjectCards(ctx, projectID)
		if err != nil {
			return report, err
		}
		for _, c := range stored {
			if !seen[c.ID] {
				report.Stale = append(report.Stale, c.ID)
			}
		}
	}

	im.log.Info("import complete",
		zap.String("project_id", projectID),
		zap.Int("sources", report.Sources),
		zap.Int("groups", report.Groups),
		zap.Int("parsed_cards", report.Parsed),
		zap.Int("inserted_cards", report.Inserted),
		zap.Int("stale_cards", len(report.Stale)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// normalizePath makes local paths absolute so a registered source resolves
// from any working directory.
func normalizePath(path string) string {
	if gitsource.IsRemote(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (im *Importer) checkout(ctx context.Context, path string) (string, error) {
	if !gitsource.IsRemote(path) {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("deck source %s: %w", path, err)
		}
		if !info.IsDir() {
			return "", &domain.ValidationError{Field: "path", Message: fmt.Sprintf("%s is not a directory", path)}
		}
		return path, nil
	}

	local, err := gitsource.LocalPath(im.reposDir, path)
	if err != nil {
		return "", &domain.ValidationError{Field: "path", Message: err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("create repos directory: %w", err)
	}
	if err := gitsource.Sync(ctx, path, local, im.log); err != nil {
		return "", err
	}
	return local, nil
}

// reconcile walks dir in lexical order, one group per markdown file.
func (im *Importer) reconcile(ctx context.Context, projectID, dir string, report *Report, seen map[string]bool) error {
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		deck, err := parser.ParseFile(path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", rel, err))
			return nil
		}
		if len(deck.Cards) == 0 {
			return nil
		}

		group := domain.FlashcardGroup{
			ID:        knol.GroupID(projectID, rel),
			ProjectID: projectID,
			Title:     deck.Title,
			Position:  report.Groups,
		}
		if group.Title == "" {
			group.Title = strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		}
		if err := im.store.UpsertGroup(ctx, group); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("group %s: %w", rel, err))
			return nil
		}
		report.Groups++

		for _, sc := range deck.Cards {
			sc.Hash = knol.Hash(sc)
			id := knol.CardID(projectID, sc)
			report.Parsed++
			if seen[id] {
				continue
			}
			seen[id] = true

			inserted, err := im.store.InsertCard(ctx, domain.Flashcard{
				ID:        id,
				ProjectID: projectID,
				GroupID:   &group.ID,
				Front:     sc.Question,
				Back:      sc.Back(),
			})
			if err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("card in %s: %w", rel, err))
				continue
			}
			if inserted {
				report.Inserted++
				im.log.Debug("new card", zap.String("card_id", id), zap.String("hash", sc.Hash), zap.String("deck", rel))
			}
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", dir, walkErr)
	}
	return nil
}
