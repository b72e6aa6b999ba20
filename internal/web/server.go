package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/practice"
	"github.com/conorfennell/studyhash/internal/study"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UserHeader carries the caller's identity, set by the upstream identity layer.
const UserHeader = "X-User-ID"

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc      *study.Service
	router   *http.ServeMux
	sessions *sessions
	log      *zap.Logger
}

// NewServer creates and configures a new server.
func NewServer(svc *study.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		svc:      svc,
		router:   http.NewServeMux(),
		sessions: newSessions(),
		log:      log,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rec, r)
	s.log.Debug("http request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("took", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Options configure ListenAndServe.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// SessionTTL closes practice sessions idle for longer; zero keeps them
	// until shutdown.
	SessionTTL time.Duration
}

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// closes open practice sessions so their ratings are flushed.
func (s *Server) ListenAndServe(ctx context.Context, opts Options) error {
	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      s,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	if opts.SessionTTL > 0 {
		go s.reapSessions(reapCtx, opts.SessionTTL)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.closeAll(shutdownCtx)
	s.log.Info("http server stopped")
	return err
}

// reapSessions closes idle practice sessions every ttl/2 until ctx is done.
func (s *Server) reapSessions(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(max(ttl/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.reapIdle(context.WithoutCancel(ctx), ttl); n > 0 {
				s.log.Info("idle practice sessions closed", zap.Int("count", n), zap.Duration("ttl", ttl))
			}
		}
	}
}

// Close ends every open practice session.
func (s *Server) Close(ctx context.Context) {
	s.sessions.closeAll(ctx)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth())

	s.router.HandleFunc("GET /api/projects/{projectID}/agenda", s.handleAgenda())
	s.router.HandleFunc("GET /api/projects/{projectID}/agenda/groups", s.handleAgendaGroups())
	s.router.HandleFunc("GET /api/projects/{projectID}/agenda/days", s.handleAgendaDays())
	s.router.HandleFunc("GET /api/projects/{projectID}/groups/{groupID}/due", s.handleDueCards())
	s.router.HandleFunc("GET /api/projects/{projectID}/sources", s.handleDeckSources())

	s.router.HandleFunc("POST /api/cards/{cardID}/rate", s.handleRateCard())
	s.router.HandleFunc("GET /api/cards/{cardID}/reviews", s.handleCardReviews())

	s.router.HandleFunc("GET /api/pomodoro/settings", s.handleGetSettings())
	s.router.HandleFunc("PUT /api/pomodoro/settings", s.handlePutSettings())
	s.router.HandleFunc("GET /api/pomodoro/sessions", s.handleListPomodoroSessions())
	s.router.HandleFunc("POST /api/pomodoro/sessions", s.handlePostPomodoroSession())

	s.router.HandleFunc("POST /api/practice", s.handleStartPractice())
	s.router.HandleFunc("GET /api/practice/{sessionID}/next", s.handlePracticeNext())
	s.router.HandleFunc("POST /api/practice/{sessionID}/rate", s.handlePracticeRate())
	s.router.HandleFunc("DELETE /api/practice/{sessionID}", s.handleClosePractice())
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: key, Message: "must be an integer"}
	}
	return v, nil
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type agendaResponse struct {
	Groups []domain.AgendaGroupRow `json:"groups"`
	Days   []domain.AgendaDayRow   `json:"days"`
}

// handleAgenda loads both agenda views concurrently.
func (s *Server) handleAgenda() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		user, projectID := userID(r), r.PathValue("projectID")

		var resp agendaResponse
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			rows, err := s.svc.AgendaGroupCounts(ctx, user, projectID)
			resp.Groups = rows
			return err
		})
		g.Go(func() error {
			rows, err := s.svc.AgendaDueByDay(ctx, user, projectID, days)
			resp.Days = rows
			return err
		})
		if err := g.Wait(); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleAgendaGroups() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := s.svc.AgendaGroupCounts(r.Context(), userID(r), r.PathValue("projectID"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rows)
	}
}

func (s *Server) handleAgendaDays() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		rows, err := s.svc.AgendaDueByDay(r.Context(), userID(r), r.PathValue("projectID"), days)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rows)
	}
}

func (s *Server) handleDueCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "include_new", practice.DefaultOptions().NewCardLimit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cards, err := s.svc.FetchDueCards(r.Context(), userID(r), r.PathValue("projectID"), r.PathValue("groupID"), s.svc.Now(), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleDeckSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.svc.DeckSources(r.Context(), userID(r), r.PathValue("projectID"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sources)
	}
}

func (s *Server) handleCardReviews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := s.svc.CardReviews(r.Context(), userID(r), r.PathValue("cardID"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, logs)
	}
}

type rateRequest struct {
	CardID string `json:"card_id,omitempty"`
	Rating string `json:"rating"`
}

func (s *Server) handleRateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rateRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		rating, err := domain.ParseRating(req.Rating)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		state, err := s.svc.RateCard(r.Context(), userID(r), r.PathValue("cardID"), rating, s.svc.Now())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.svc.GetPomodoroSettings(r.Context(), userID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, settings)
	}
}

func (s *Server) handlePutSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.PomodoroSettings
		if err := s.decode(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		saved, err := s.svc.SavePomodoroSettings(r.Context(), userID(r), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, saved)
	}
}

func (s *Server) handleListPomodoroSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sessions, err := s.svc.ListPomodoroSessions(r.Context(), userID(r), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sessions)
	}
}

type pomodoroSessionRequest struct {
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	FocusSeconds int       `json:"focus_seconds"`
	ProjectID    *string   `json:"project_id,omitempty"`
}

func (s *Server) handlePostPomodoroSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pomodoroSessionRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		err := s.svc.InsertPomodoroSession(r.Context(), userID(r), req.StartedAt, req.EndedAt, req.FocusSeconds, req.ProjectID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type startPracticeRequest struct {
	ProjectID string `json:"project_id"`
	GroupID   string `json:"group_id"`
}

type practiceResponse struct {
	SessionID string                  `json:"session_id"`
	State     practice.State          `json:"state"`
	Remaining int                     `json:"remaining"`
	Card      *domain.Flashcard       `json:"card,omitempty"`
	Scheduled *domain.SchedulingState `json:"scheduled,omitempty"`
	Warnings  []practice.Warning      `json:"warnings,omitempty"`
	Summary   *practice.Summary       `json:"summary,omitempty"`
}

func (s *Server) handleStartPractice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startPracticeRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		sess, err := s.svc.StartPractice(r.Context(), userID(r), req.ProjectID, req.GroupID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.sessions.add(sess)
		s.writeJSON(w, http.StatusCreated, practiceResponse{
			SessionID: sess.ID,
			State:     sess.State(),
			Remaining: sess.Remaining(),
		})
	}
}

func (s *Server) session(r *http.Request) (*practice.Session, error) {
	user := userID(r)
	if user == "" {
		return nil, domain.ErrNotAuthenticated
	}
	id := r.PathValue("sessionID")
	sess, ok := s.sessions.get(id, user)
	if !ok {
		return nil, fmt.Errorf("practice session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// handlePracticeNext serves the current card. An exhausted queue completes
// the session and returns its summary.
func (s *Server) handlePracticeNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		card, ok, err := sess.Next(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := practiceResponse{SessionID: sess.ID, State: sess.State(), Remaining: sess.Remaining()}
		if ok {
			resp.Card = &card
		} else {
			sum, _ := sess.Close(r.Context())
			resp.Summary = &sum
			s.sessions.remove(sess.ID)
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handlePracticeRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req rateRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		rating, err := domain.ParseRating(req.Rating)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		state, err := sess.Rate(req.CardID, rating)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, practiceResponse{
			SessionID: sess.ID,
			State:     sess.State(),
			Remaining: sess.Remaining(),
			Scheduled: &state,
			Warnings:  sess.Warnings(),
		})
	}
}

func (s *Server) handleClosePractice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sum, err := sess.Close(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.sessions.remove(sess.ID)
		s.writeJSON(w, http.StatusOK, practiceResponse{
			SessionID: sess.ID,
			State:     sess.State(),
			Summary:   &sum,
		})
	}
}
