package web

import (
	"context"
	"sync"
	"time"

	"github.com/conorfennell/studyhash/internal/practice"
)

// sessions holds the open practice sessions of every user.
type sessions struct {
	mu   sync.Mutex
	open map[string]*openSession
	now  func() time.Time
}

type openSession struct {
	sess     *practice.Session
	lastUsed time.Time
}

func newSessions() *sessions {
	return &sessions{open: make(map[string]*openSession), now: time.Now}
}

func (s *sessions) add(sess *practice.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[sess.ID] = &openSession{sess: sess, lastUsed: s.now()}
}

// get returns the session only to its owner and marks it used.
func (s *sessions) get(id, userID string) (*practice.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.open[id]
	if !ok || o.sess.UserID != userID {
		return nil, false
	}
	o.lastUsed = s.now()
	return o.sess, true
}

func (s *sessions) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, id)
}

// take removes and returns the sessions drop selects.
func (s *sessions) take(drop func(*openSession) bool) []*practice.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*practice.Session
	for id, o := range s.open {
		if drop(o) {
			out = append(out, o.sess)
			delete(s.open, id)
		}
	}
	return out
}

// closeAll ends every open session, waiting for their writes within ctx.
func (s *sessions) closeAll(ctx context.Context) {
	closeSessions(ctx, s.take(func(*openSession) bool { return true }))
}

// reapIdle closes sessions unused for longer than ttl and returns how many
// were closed.
func (s *sessions) reapIdle(ctx context.Context, ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	idle := s.take(func(o *openSession) bool { return o.lastUsed.Before(cutoff) })
	closeSessions(ctx, idle)
	return len(idle)
}

func closeSessions(ctx context.Context, open []*practice.Session) {
	var wg sync.WaitGroup
	for _, sess := range open {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Close(ctx)
		}()
	}
	wg.Wait()
}
