// Package practice runs bounded review sessions over one flashcard group.
//
// A Session serves cards from an ordered queue, applies ratings through a
// scheduler.Policy and persists the resulting state in the background. Writes
// for the same card are applied in rating order; a session only reports
// Completed once every outstanding write has finished or the completion
// timeout has passed.
package practice

//go:generate mockgen -source=sequencer.go -destination=mock/store_mock.go

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of the card store a practice session reads and writes.
type Store interface {
	FetchDueCards(ctx context.Context, projectID, groupID string, now time.Time, newLimit int) ([]domain.Flashcard, error)
	GetCard(ctx context.Context, cardID string) (domain.Flashcard, error)
	UpdateScheduling(ctx context.Context, cardID string, expectedVersion int64, next domain.SchedulingState, review domain.ReviewLog) (domain.Flashcard, error)
}

// Options tune a Sequencer. Zero fields take the defaults from DefaultOptions.
type Options struct {
	NewCardLimit      int           // New cards appended after due cards; negative disables
	RetryCap          int           // same-session requeues per card on Again
	RequeueGap        int           // cards shown before a requeued card returns
	WriteBackoff      time.Duration // wait before retrying a transient write failure
	CompletionTimeout time.Duration // bound on the completion barrier
	LateWriteGrace    time.Duration // how long writes may run after a timed-out barrier
	Now               func() time.Time
}

// DefaultOptions returns the standard session tuning.
func DefaultOptions() Options {
	return Options{
		NewCardLimit:      20,
		RetryCap:          3,
		RequeueGap:        3,
		WriteBackoff:      250 * time.Millisecond,
		CompletionTimeout: 5 * time.Second,
		LateWriteGrace:    30 * time.Second,
		Now:               time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NewCardLimit == 0 {
		o.NewCardLimit = d.NewCardLimit
	}
	if o.NewCardLimit < 0 {
		o.NewCardLimit = 0
	}
	if o.RetryCap <= 0 {
		o.RetryCap = d.RetryCap
	}
	if o.RequeueGap <= 0 {
		o.RequeueGap = d.RequeueGap
	}
	if o.WriteBackoff <= 0 {
		o.WriteBackoff = d.WriteBackoff
	}
	if o.CompletionTimeout <= 0 {
		o.CompletionTimeout = d.CompletionTimeout
	}
	if o.LateWriteGrace <= 0 {
		o.LateWriteGrace = d.LateWriteGrace
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Sequencer starts practice sessions.
type Sequencer struct {
	store  Store
	policy scheduler.Policy
	opts   Options
	log    *zap.Logger
}

// NewSequencer wires a Sequencer. A nil policy selects the reference policy.
func NewSequencer(store Store, policy scheduler.Policy, opts Options, log *zap.Logger) *Sequencer {
	if policy == nil {
		policy = scheduler.DefaultParams()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		store:  store,
		policy: policy,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// Start loads the due cards of a group and returns an Active session.
// The session outlives ctx: background writes use their own context.
func (s *Sequencer) Start(ctx context.Context, userID, projectID, groupID string) (*Session, error) {
	now := s.opts.Now()
	cards, err := s.store.FetchDueCards(ctx, projectID, groupID, now, s.opts.NewCardLimit)
	if err != nil {
		return nil, fmt.Errorf("load practice queue for group %s: %w", groupID, err)
	}

	sess := newSession(s, uuid.NewString(), userID, projectID, groupID)
	sess.load(BuildQueue(cards, now, s.opts.NewCardLimit))

	s.log.Info("practice session started",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Int("queued", len(sess.queue)),
	)
	return sess, nil
}

// BuildQueue orders a session's cards: scheduled cards due at now first,
// longest overdue first, then at most newLimit New cards in the given order.
// Cards not yet due and duplicate IDs are dropped.
func BuildQueue(cards []domain.Flashcard, now time.Time, newLimit int) []domain.Flashcard {
	seen := make(map[string]bool, len(cards))
	var due, fresh []domain.Flashcard
	for _, c := range cards {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		switch {
		case c.Stage == domain.New:
			if len(fresh) < newLimit {
				fresh = append(fresh, c)
			}
		case c.IsDue(now):
			due = append(due, c)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(*due[j].DueAt) {
			return due[i].DueAt.Before(*due[j].DueAt)
		}
		return due[i].ID < due[j].ID
	})
	return append(due, fresh...)
}
