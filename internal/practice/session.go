package practice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"go.uber.org/zap"
)

// State is the lifecycle phase of a session.
type State int

const (
	Loading State = iota
	Active
	Completed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Active:
		return "Active"
	case Completed:
		return "Completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, v := range []State{Loading, Active, Completed} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// WarningKind classifies a non-fatal persistence problem.
type WarningKind int

const (
	// Unsynced: the rating could not be written yet and is kept for retry.
	Unsynced WarningKind = iota + 1
	// ChangedElsewhere: the card changed in another session twice in a row;
	// the rating was not applied.
	ChangedElsewhere
	// Dropped: the write failed permanently, e.g. the card was deleted.
	Dropped
)

func (k WarningKind) String() string {
	switch k {
	case Unsynced:
		return "unsynced"
	case ChangedElsewhere:
		return "changed_elsewhere"
	case Dropped:
		return "dropped"
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *WarningKind) UnmarshalText(text []byte) error {
	for _, v := range []WarningKind{Unsynced, ChangedElsewhere, Dropped} {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown warning kind %q", text)
}

// Warning is surfaced to the user without failing the session.
type Warning struct {
	CardID string        `json:"card_id"`
	Kind   WarningKind   `json:"kind"`
	Rating domain.Rating `json:"rating"`
	Err    error         `json:"-"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("card %s %s (%s): %v", w.CardID, w.Kind, w.Rating, w.Err)
}

// Summary describes a finished session.
type Summary struct {
	Reviewed  int       `json:"reviewed"`
	Requeued  int       `json:"requeued"`
	Discarded int       `json:"discarded"`
	Unsynced  []string  `json:"unsynced"`
	Warnings  []Warning `json:"warnings"`
	TimedOut  bool      `json:"timed_out"`
}

// write is one rating waiting to be persisted.
type write struct {
	rating domain.Rating
	at     time.Time
}

// entry tracks one card of the session.
type entry struct {
	local   domain.Flashcard // optimistic view served to the user
	base    domain.Flashcard // last state known to be persisted
	backlog []write          // ratings not yet persisted, in order
	tail    chan struct{}    // closed when the latest queued job finishes
	running int              // jobs queued or in flight
}

// Session is a single practice run over one group. It is safe for
// concurrent use.
type Session struct {
	ID        string
	UserID    string
	ProjectID string
	GroupID   string

	seq    *Sequencer
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	closing   bool
	queue     []string
	cards     map[string]*entry
	retries   map[string]int
	reviewed  int
	requeued  int
	discarded int
	warnings  []Warning
	summary   *Summary
	pending   sync.WaitGroup
}

func newSession(seq *Sequencer, id, userID, projectID, groupID string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        id,
		UserID:    userID,
		ProjectID: projectID,
		GroupID:   groupID,
		seq:       seq,
		ctx:       ctx,
		cancel:    cancel,
		state:     Loading,
		cards:     make(map[string]*entry),
		retries:   make(map[string]int),
	}
}

func (s *Session) load(cards []domain.Flashcard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cards {
		s.queue = append(s.queue, c.ID)
		s.cards[c.ID] = &entry{local: c, base: c}
	}
	s.state = Active
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining is the number of queue entries left, requeued cards included.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Warnings returns the warnings raised so far.
func (s *Session) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.warnings...)
}

// Next returns the card at the head of the queue. Calling it again before
// rating returns the same card. When the queue is exhausted Next runs the
// completion barrier, moves the session to Completed and reports false.
func (s *Session) Next(ctx context.Context) (domain.Flashcard, bool, error) {
	s.mu.Lock()
	if s.state == Active && !s.closing && len(s.queue) > 0 {
		c := s.cards[s.queue[0]].local
		s.mu.Unlock()
		return c, true, nil
	}
	s.mu.Unlock()

	if _, err := s.Close(ctx); err != nil {
		return domain.Flashcard{}, false, err
	}
	return domain.Flashcard{}, false, nil
}

// Rate applies a rating to the current card and advances the queue without
// waiting for persistence. It returns the card's new scheduling state.
func (s *Session) Rate(cardID string, rating domain.Rating) (domain.SchedulingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active || s.closing {
		return domain.SchedulingState{}, &domain.ValidationError{Field: "session", Message: fmt.Sprintf("session %s is %s", s.ID, s.state)}
	}
	if len(s.queue) == 0 || s.queue[0] != cardID {
		return domain.SchedulingState{}, &domain.ValidationError{Field: "card_id", Message: fmt.Sprintf("card %s is not the current card", cardID)}
	}

	e := s.cards[cardID]
	now := s.seq.opts.Now()
	next, err := s.seq.policy.Schedule(e.local.SchedulingState, rating, now)
	if err != nil {
		return domain.SchedulingState{}, err
	}
	e.local.SchedulingState = next
	s.reviewed++

	s.queue = s.queue[1:]
	if rating == domain.Again && s.retries[cardID] < s.seq.opts.RetryCap {
		s.retries[cardID]++
		s.requeued++
		pos := min(s.seq.opts.RequeueGap, len(s.queue))
		s.queue = append(s.queue[:pos], append([]string{cardID}, s.queue[pos:]...)...)
	}

	s.enqueueLocked(cardID, e, &write{rating: rating, at: now})
	return next, nil
}

// enqueueLocked chains a persistence job behind the card's previous job so
// writes for one card apply in rating order. A nil w only flushes the backlog.
func (s *Session) enqueueLocked(cardID string, e *entry, w *write) {
	prev := e.tail
	done := make(chan struct{})
	e.tail = done
	e.running++
	s.pending.Add(1)

	go func() {
		defer s.pending.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		s.flush(cardID, e, w)

		s.mu.Lock()
		e.running--
		s.mu.Unlock()
	}()
}

// flush persists the card's backlog followed by w. It stops at the first
// transient failure and keeps the rest for a later attempt.
func (s *Session) flush(cardID string, e *entry, w *write) {
	s.mu.Lock()
	jobs := e.backlog
	e.backlog = nil
	if w != nil {
		jobs = append(jobs, *w)
	}
	s.mu.Unlock()

	for i, job := range jobs {
		err := s.persist(cardID, e, job)
		switch {
		case err == nil:
			continue
		case errors.Is(err, domain.ErrVersionConflict):
			s.warn(Warning{CardID: cardID, Kind: ChangedElsewhere, Rating: job.rating, Err: err})
		case errors.Is(err, domain.ErrTransient):
			s.mu.Lock()
			e.backlog = append(append([]write(nil), jobs[i:]...), e.backlog...)
			s.mu.Unlock()
			s.warn(Warning{CardID: cardID, Kind: Unsynced, Rating: job.rating, Err: err})
			return
		default:
			s.warn(Warning{CardID: cardID, Kind: Dropped, Rating: job.rating, Err: err})
		}
	}
}

// persist writes one rating. A version conflict triggers a single re-fetch
// and re-apply; a transient failure a single retry after the backoff.
func (s *Session) persist(cardID string, e *entry, w write) error {
	var conflicts, transients int
	refetch := false
	for {
		var err error
		if refetch {
			var fresh domain.Flashcard
			fresh, err = s.seq.store.GetCard(s.ctx, cardID)
			if err == nil {
				s.setBase(e, fresh)
				refetch = false
			}
		}
		if err == nil {
			err = s.apply(cardID, e, w)
		}
		if err == nil {
			return nil
		}

		switch {
		case errors.Is(err, domain.ErrVersionConflict) && conflicts == 0:
			conflicts++
			refetch = true
			s.seq.log.Debug("practice write conflict, refetching", zap.String("card_id", cardID))
		case errors.Is(err, domain.ErrTransient) && transients == 0:
			transients++
			s.seq.log.Debug("practice write failed, retrying", zap.String("card_id", cardID), zap.Error(err))
			if !sleep(s.ctx, s.seq.opts.WriteBackoff) {
				return err
			}
		default:
			return err
		}
	}
}

// apply computes the next state from the persisted base and writes it with
// a compare-and-swap on the base version.
func (s *Session) apply(cardID string, e *entry, w write) error {
	s.mu.Lock()
	base := e.base
	s.mu.Unlock()

	next, err := s.seq.policy.Schedule(base.SchedulingState, w.rating, w.at)
	if err != nil {
		return err
	}
	updated, err := s.seq.store.UpdateScheduling(s.ctx, cardID, base.Version, next, domain.ReviewLog{
		CardID:      cardID,
		UserID:      s.UserID,
		Rating:      w.rating,
		StageBefore: base.Stage,
		StageAfter:  next.Stage,
		ReviewedAt:  w.at,
	})
	if err != nil {
		return err
	}
	s.setBase(e, updated)
	return nil
}

func (s *Session) setBase(e *entry, c domain.Flashcard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.base = c
}

func (s *Session) warn(w Warning) {
	s.mu.Lock()
	s.warnings = append(s.warnings, w)
	s.mu.Unlock()
	s.seq.log.Warn("practice write not applied",
		zap.String("session_id", s.ID),
		zap.String("card_id", w.CardID),
		zap.Stringer("kind", w.Kind),
		zap.Stringer("rating", w.Rating),
		zap.Error(w.Err),
	)
}

// Close ends the session. Unreached cards are discarded, unsynced ratings are
// retried once more, and the call waits for outstanding writes for at most
// the completion timeout. Close is idempotent and always leaves the session
// Completed; cards still unwritten are listed in the summary.
//
// After a timeout the remaining writes keep running for LateWriteGrace and
// are then cancelled. Their outcome is logged and visible through Warnings,
// but the returned summary does not change.
func (s *Session) Close(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.state == Completed {
		sum := *s.summary
		s.mu.Unlock()
		return sum, nil
	}
	first := !s.closing
	s.closing = true
	s.discarded += len(s.queue)
	s.queue = nil
	if first {
		for id, e := range s.cards {
			if len(e.backlog) > 0 {
				s.enqueueLocked(id, e, nil)
			}
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	timedOut := false
	timer := time.NewTimer(s.seq.opts.CompletionTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
		timedOut = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Completed {
		return *s.summary, nil
	}

	sum := Summary{
		Reviewed:  s.reviewed,
		Requeued:  s.requeued,
		Discarded: s.discarded,
		TimedOut:  timedOut,
	}
	for id, e := range s.cards {
		if len(e.backlog) > 0 || e.running > 0 {
			sum.Unsynced = append(sum.Unsynced, id)
		}
	}
	sort.Strings(sum.Unsynced)
	sum.Warnings = append([]Warning(nil), s.warnings...)

	s.state = Completed
	s.summary = &sum
	if timedOut {
		go s.cancelAfter(done, s.seq.opts.LateWriteGrace)
	} else {
		s.cancel()
	}

	s.seq.log.Info("practice session completed",
		zap.String("session_id", s.ID),
		zap.Int("reviewed", sum.Reviewed),
		zap.Int("discarded", sum.Discarded),
		zap.Int("unsynced", len(sum.Unsynced)),
		zap.Bool("timed_out", timedOut),
	)
	return sum, nil
}

// cancelAfter cancels the session's write context once done is closed or
// grace has passed, whichever comes first.
func (s *Session) cancelAfter(done <-chan struct{}, grace time.Duration) {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		s.seq.log.Warn("practice writes cancelled after close",
			zap.String("session_id", s.ID),
			zap.Duration("grace", grace),
		)
	}
	s.cancel()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
