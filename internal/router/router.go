package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/auth"
	"Mansoor88-6/team-time-tracker/internal/handler"
)

type Handlers struct {
	Tasks  *handler.TaskHandler
	Auth   *handler.AuthHandler
	Events *handler.EventHandler
}

func New(h Handlers, sessions *auth.SessionService, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/v1/auth/sign-in", h.Auth.SignIn)

	protected := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requireSession(sessions, logger, fn))
	}

	protected("POST /api/v1/auth/sign-out", h.Auth.SignOut)
	protected("GET /api/v1/me", h.Auth.Me)

	protected("GET /api/v1/snapshot", h.Tasks.Snapshot)
	protected("GET /api/v1/tasks", h.Tasks.ListTasks)
	protected("POST /api/v1/tasks", h.Tasks.CreateTask)
	protected("GET /api/v1/tasks/{id}/report", h.Tasks.TaskReport)
	protected("POST /api/v1/tasks/{id}/clock-in", h.Tasks.ClockIn)
	protected("POST /api/v1/time-entries/{id}/clock-out", h.Tasks.ClockOut)
	protected("GET /api/v1/time-entries", h.Tasks.ListEntries)
	protected("GET /api/v1/profiles", h.Tasks.ListProfiles)

	protected("GET /api/v1/events", h.Events.Stream)

	return logRequests(mux, logger)
}

func requireSession(sessions *auth.SessionService, logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, err := sessions.Authenticate(r.Context(), handler.BearerToken(r))
		if err != nil {
			handler.WriteError(w, logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(handler.WithProfile(r.Context(), profile)))
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func logRequests(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
