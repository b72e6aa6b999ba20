// Package study is the entry point every transport calls: it checks that
// the caller owns what it asks for and delegates to the agenda, practice,
// scheduler and focus components.
package study

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/studyhash/internal/agenda"
	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/focus"
	"github.com/conorfennell/studyhash/internal/practice"
	"github.com/conorfennell/studyhash/internal/scheduler"
	"go.uber.org/zap"
)

// Store is everything the service needs from persistence.
type Store interface {
	agenda.CardSource
	practice.Store
	focus.SettingsStore
	focus.SessionLog
	ProjectOwner(ctx context.Context, projectID string) (string, error)
	GetGroup(ctx context.Context, groupID string) (domain.FlashcardGroup, error)
	ListReviewLogs(ctx context.Context, cardID string) ([]domain.ReviewLog, error)
	ListPomodoroSessions(ctx context.Context, userID string, limit int) ([]domain.PomodoroSession, error)
	ListDeckSources(ctx context.Context, projectID string) ([]domain.DeckSource, error)
}

// Bounds for ListPomodoroSessions.
const (
	DefaultSessionLimit = 20
	MaxSessionLimit     = 500
)

// Options configure a Service.
type Options struct {
	Location *time.Location   // day bucketing zone, UTC when nil
	Policy   scheduler.Policy // reference policy when nil
	Practice practice.Options
	Now      func() time.Time
}

// Service implements the study procedures for one store.
type Service struct {
	store    Store
	agenda   *agenda.Aggregator
	seq      *practice.Sequencer
	settings *focus.Settings
	policy   scheduler.Policy
	now      func() time.Time
	log      *zap.Logger
}

func New(store Store, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Policy == nil {
		opts.Policy = scheduler.DefaultParams()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Practice.Now == nil {
		opts.Practice.Now = opts.Now
	}
	return &Service{
		store:    store,
		agenda:   agenda.New(store, opts.Location),
		seq:      practice.NewSequencer(store, opts.Policy, opts.Practice, log.Named("practice")),
		settings: focus.NewSettings(store),
		policy:   opts.Policy,
		now:      opts.Now,
		log:      log,
	}
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Location is the zone used for day bucketing.
func (s *Service) Location() *time.Location {
	return s.agenda.Location()
}

func (s *Service) authorizeProject(ctx context.Context, userID, projectID string) error {
	if userID == "" {
		return domain.ErrNotAuthenticated
	}
	owner, err := s.store.ProjectOwner(ctx, projectID)
	if err != nil {
		return err
	}
	if owner != userID {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return nil
}

func (s *Service) authorizeGroup(ctx context.Context, userID, projectID, groupID string) error {
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return err
	}
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.ProjectID != projectID {
		return fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	return nil
}

// AgendaGroupCounts returns the per-group agenda of a project.
func (s *Service) AgendaGroupCounts(ctx context.Context, userID, projectID string) ([]domain.AgendaGroupRow, error) {
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.agenda.GroupCounts(ctx, projectID, s.now())
}

// AgendaDueByDay returns the load histogram of a project over days days;
// zero selects the default horizon.
func (s *Service) AgendaDueByDay(ctx context.Context, userID, projectID string, days int) ([]domain.AgendaDayRow, error) {
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.agenda.DueByDay(ctx, projectID, s.now(), days)
}

// GetPomodoroSettings returns the user's timer settings.
func (s *Service) GetPomodoroSettings(ctx context.Context, userID string) (domain.PomodoroSettings, error) {
	if userID == "" {
		return domain.PomodoroSettings{}, domain.ErrNotAuthenticated
	}
	return s.settings.Get(ctx, userID)
}

// SavePomodoroSettings clamps and stores the user's timer settings.
func (s *Service) SavePomodoroSettings(ctx context.Context, userID string, in domain.PomodoroSettings) (domain.PomodoroSettings, error) {
	if userID == "" {
		return domain.PomodoroSettings{}, domain.ErrNotAuthenticated
	}
	return s.settings.Save(ctx, userID, in)
}

// InsertPomodoroSession logs a completed focus interval. focusSeconds is
// clamped; a project, when given, must belong to the user.
func (s *Service) InsertPomodoroSession(ctx context.Context, userID string, startedAt, endedAt time.Time, focusSeconds int, projectID *string) error {
	if userID == "" {
		return domain.ErrNotAuthenticated
	}
	if endedAt.Before(startedAt) {
		return &domain.ValidationError{Field: "ended_at", Message: "must not be before started_at"}
	}
	if projectID != nil {
		if err := s.authorizeProject(ctx, userID, *projectID); err != nil {
			return err
		}
	}
	_, err := s.store.InsertPomodoroSession(ctx, userID, domain.PomodoroSession{
		StartedAt:    startedAt.UTC(),
		EndedAt:      endedAt.UTC(),
		FocusSeconds: domain.ClampFocusSeconds(focusSeconds),
		ProjectID:    projectID,
	})
	return err
}

// RateCard schedules one review and writes it with a compare-and-swap on the
// card version read here. A concurrent write yields ErrVersionConflict.
func (s *Service) RateCard(ctx context.Context, userID, cardID string, rating domain.Rating, now time.Time) (domain.SchedulingState, error) {
	if userID == "" {
		return domain.SchedulingState{}, domain.ErrNotAuthenticated
	}
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return domain.SchedulingState{}, err
	}
	if err := s.authorizeProject(ctx, userID, card.ProjectID); err != nil {
		return domain.SchedulingState{}, err
	}

	next, err := s.policy.Schedule(card.SchedulingState, rating, now)
	if err != nil {
		return domain.SchedulingState{}, err
	}
	updated, err := s.store.UpdateScheduling(ctx, cardID, card.Version, next, domain.ReviewLog{
		CardID:      cardID,
		UserID:      userID,
		Rating:      rating,
		StageBefore: card.Stage,
		StageAfter:  next.Stage,
		ReviewedAt:  now.UTC(),
	})
	if err != nil {
		return domain.SchedulingState{}, err
	}
	s.log.Debug("card rated",
		zap.String("card_id", cardID),
		zap.Stringer("rating", rating),
		zap.Stringer("stage", updated.Stage),
	)
	return updated.SchedulingState, nil
}

// FetchDueCards returns the cards a practice session over the group would
// start with.
func (s *Service) FetchDueCards(ctx context.Context, userID, projectID, groupID string, now time.Time, includeNewLimit int) ([]domain.Flashcard, error) {
	if err := s.authorizeGroup(ctx, userID, projectID, groupID); err != nil {
		return nil, err
	}
	if includeNewLimit < 0 {
		includeNewLimit = 0
	}
	cards, err := s.store.FetchDueCards(ctx, projectID, groupID, now, includeNewLimit)
	if err != nil {
		return nil, err
	}
	return practice.BuildQueue(cards, now, includeNewLimit), nil
}

// StartPractice opens a practice session over one group.
func (s *Service) StartPractice(ctx context.Context, userID, projectID, groupID string) (*practice.Session, error) {
	if err := s.authorizeGroup(ctx, userID, projectID, groupID); err != nil {
		return nil, err
	}
	return s.seq.Start(ctx, userID, projectID, groupID)
}

// NewTimer returns a focus timer for the user loaded with their settings.
func (s *Service) NewTimer(ctx context.Context, userID string) (*focus.Timer, error) {
	settings, err := s.GetPomodoroSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return focus.NewTimer(userID, settings, s.store, s.log.Named("focus"), s.now), nil
}

// AuthorizeProject returns nil when the user owns the project,
// ErrNotAuthenticated without a user and ErrNotFound otherwise.
func (s *Service) AuthorizeProject(ctx context.Context, userID, projectID string) error {
	return s.authorizeProject(ctx, userID, projectID)
}

// CardReviews returns the review history of a card, oldest first.
func (s *Service) CardReviews(ctx context.Context, userID, cardID string) ([]domain.ReviewLog, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeProject(ctx, userID, card.ProjectID); err != nil {
		return nil, err
	}
	return s.store.ListReviewLogs(ctx, cardID)
}

// ListPomodoroSessions returns the user's most recent focus intervals,
// newest first. A zero limit selects DefaultSessionLimit.
func (s *Service) ListPomodoroSessions(ctx context.Context, userID string, limit int) ([]domain.PomodoroSession, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if limit == 0 {
		limit = DefaultSessionLimit
	}
	if limit < 1 || limit > MaxSessionLimit {
		return nil, &domain.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxSessionLimit, limit)}
	}
	return s.store.ListPomodoroSessions(ctx, userID, limit)
}

// DeckSources lists the deck sources registered for a project.
func (s *Service) DeckSources(ctx context.Context, userID, projectID string) ([]domain.DeckSource, error) {
	if err := s.authorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListDeckSources(ctx, projectID)
}
