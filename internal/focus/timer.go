// Package focus implements the pomodoro focus timer and its settings.
package focus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"go.uber.org/zap"
)

// Phase is the state of a Timer.
type Phase int

const (
	Idle Phase = iota
	Focus
	ShortBreak
	LongBreak
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Focus:
		return "Focus"
	case ShortBreak:
		return "ShortBreak"
	case LongBreak:
		return "LongBreak"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SessionLog receives completed focus intervals.
type SessionLog interface {
	InsertPomodoroSession(ctx context.Context, userID string, s domain.PomodoroSession) (int64, error)
}

// Snapshot is a read-only view of a Timer for renderers.
type Snapshot struct {
	Phase     Phase                   `json:"phase"`
	Cycles    int                     `json:"cycles"`
	Paused    bool                    `json:"paused"`
	Elapsed   time.Duration           `json:"elapsed"`
	Remaining time.Duration           `json:"remaining"`
	ProjectID *string                 `json:"project_id,omitempty"`
	Settings  domain.PomodoroSettings `json:"settings"`
}

// Timer is one user's focus timer. It is safe for concurrent use; all
// progress is driven by Tick.
type Timer struct {
	userID   string
	sessions SessionLog
	log      *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	pending   domain.PomodoroSettings // applied on the next phase entry
	current   domain.PomodoroSettings // in force for the running phase
	phase     Phase
	cycles    int
	projectID *string
	startedAt time.Time
	lastTick  time.Time
	elapsed   time.Duration
	paused    bool
}

// NewTimer returns an Idle timer. A nil now uses time.Now.
func NewTimer(userID string, settings domain.PomodoroSettings, sessions SessionLog, log *zap.Logger, now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := settings.Clamp()
	return &Timer{
		userID:   userID,
		sessions: sessions,
		log:      log,
		now:      now,
		pending:  s,
		current:  s,
	}
}

// Start moves an Idle timer into Focus. projectID may be empty.
func (t *Timer) Start(projectID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != Idle {
		return &domain.ValidationError{Field: "phase", Message: fmt.Sprintf("cannot start while %s", t.phase)}
	}
	t.projectID = nil
	if projectID != "" {
		t.projectID = &projectID
	}
	t.enterLocked(Focus)
	return nil
}

// Tick accumulates elapsed time and completes the running phase once its
// length is reached. A completed focus interval is logged; the phase still
// advances when logging fails and the error is returned.
func (t *Timer) Tick(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.phase == Idle || t.paused {
		t.mu.Unlock()
		return false, nil
	}
	now := t.now()
	t.elapsed += now.Sub(t.lastTick)
	t.lastTick = now

	length := t.lengthLocked()
	if t.elapsed < length {
		t.mu.Unlock()
		return false, nil
	}

	if t.phase != Focus {
		t.enterLocked(Idle)
		t.mu.Unlock()
		return true, nil
	}

	t.cycles++
	entry := domain.PomodoroSession{
		StartedAt:    t.startedAt,
		EndedAt:      now,
		FocusSeconds: focusSeconds(min(t.elapsed, length)),
		ProjectID:    t.projectID,
	}
	t.enterLocked(t.breakAfterLocked(t.cycles))
	t.mu.Unlock()

	if t.sessions == nil {
		return true, nil
	}
	if _, err := t.sessions.InsertPomodoroSession(ctx, t.userID, entry); err != nil {
		t.log.Warn("focus session not logged", zap.String("user_id", t.userID), zap.Error(err))
		return true, fmt.Errorf("log focus session: %w", err)
	}
	t.log.Debug("focus session logged", zap.String("user_id", t.userID), zap.Int("focus_seconds", entry.FocusSeconds))
	return true, nil
}

// Pause freezes elapsed-time accumulation.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == Idle || t.paused {
		return
	}
	now := t.now()
	t.elapsed += now.Sub(t.lastTick)
	t.lastTick = now
	t.paused = true
}

// Resume restarts accumulation after Pause.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return
	}
	t.lastTick = t.now()
	t.paused = false
}

// Skip abandons the running phase without logging. Focus moves on to the
// break that completing it would have chosen, but no cycle is credited;
// a break moves to Idle.
func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.phase {
	case Idle:
	case Focus:
		t.enterLocked(t.breakAfterLocked(t.cycles + 1))
	default:
		t.enterLocked(Idle)
	}
}

// Reset returns to Idle, discarding in-progress time. The cycle counter
// is kept.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enterLocked(Idle)
}

// UpdateSettings replaces the settings after clamping them. The running
// phase keeps its length; the new values apply from the next phase entry.
func (t *Timer) UpdateSettings(s domain.PomodoroSettings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = s.Clamp()
	if t.phase == Idle {
		t.current = t.pending
	}
}

// Snapshot returns the current timer state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := t.elapsed
	if t.phase != Idle && !t.paused {
		elapsed += t.now().Sub(t.lastTick)
	}
	snap := Snapshot{
		Phase:     t.phase,
		Cycles:    t.cycles,
		Paused:    t.paused,
		Elapsed:   elapsed,
		ProjectID: t.projectID,
		Settings:  t.current,
	}
	if t.phase != Idle {
		snap.Remaining = max(t.lengthLocked()-elapsed, 0)
	}
	return snap
}

// Run calls Tick every interval until ctx is done. onChange, when not nil,
// receives a snapshot after every phase change.
func (t *Timer) Run(ctx context.Context, every time.Duration, onChange func(Snapshot)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changed, err := t.Tick(ctx)
			if err != nil {
				t.log.Error("focus timer tick", zap.Error(err))
			}
			if changed && onChange != nil {
				onChange(t.Snapshot())
			}
		}
	}
}

func (t *Timer) enterLocked(p Phase) {
	now := t.now()
	t.phase = p
	t.current = t.pending
	t.startedAt = now
	t.lastTick = now
	t.elapsed = 0
	t.paused = false
	if p == Idle {
		t.projectID = nil
	}
}

func (t *Timer) breakAfterLocked(cycle int) Phase {
	if cycle%t.pending.CyclesBeforeLongBreak == 0 {
		return LongBreak
	}
	return ShortBreak
}

func (t *Timer) lengthLocked() time.Duration {
	switch t.phase {
	case Focus:
		return t.current.Focus()
	case ShortBreak:
		return t.current.ShortBreak()
	case LongBreak:
		return t.current.LongBreak()
	}
	return 0
}

func focusSeconds(d time.Duration) int {
	return domain.ClampFocusSeconds(int(d.Round(time.Second) / time.Second))
}
