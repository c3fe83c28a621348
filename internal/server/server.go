package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/auth"
	"Mansoor88-6/team-time-tracker/internal/config"
	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/handler"
	"Mansoor88-6/team-time-tracker/internal/notify"
	"Mansoor88-6/team-time-tracker/internal/queue"
	"Mansoor88-6/team-time-tracker/internal/router"
	"Mansoor88-6/team-time-tracker/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Server owns the store and every component serving the HTTP API.
type Server struct {
	cfg        *config.Config
	db         *database.DB
	journal    *queue.CloseJournal
	broker     *notify.Broker
	tasks      *service.TaskService
	sessions   *auth.SessionService
	reconciler *service.Reconciler
	handler    http.Handler
	logger     *zap.Logger
}

// New opens the store at cfg.StoragePath and wires the API.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	db, err := database.New(cfg.StoragePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	journal := queue.NewCloseJournal(db.DB, logger)
	broker := notify.NewBroker(logger)
	tasks := service.NewTaskService(db, journal, broker, logger, service.Options{
		OperationTimeout: cfg.Server.OperationTimeoutDuration(),
	})
	sessions := auth.NewSessionService(db, cfg.Auth.SessionTTLDuration(), logger)

	s := &Server{
		cfg:      cfg,
		db:       db,
		journal:  journal,
		broker:   broker,
		tasks:    tasks,
		sessions: sessions,
		reconciler: service.NewReconciler(
			tasks,
			journal,
			cfg.Reconcile.IntervalDuration(),
			cfg.Reconcile.MaxAgeDuration(),
			logger,
		),
		logger: logger,
	}
	s.handler = router.New(router.Handlers{
		Tasks:  handler.NewTaskHandler(tasks, logger),
		Auth:   handler.NewAuthHandler(sessions, logger),
		Events: handler.NewEventHandler(broker, cfg.Server.EventBuffer, logger),
	}, sessions, logger)

	return s, nil
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on cfg.Server.Address until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: s.cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  s.cfg.Server.IdleTimeoutDuration(),
	}

	s.reconciler.Start(ctx)
	defer s.reconciler.Stop()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")

	// Event streams only end when their subscription closes.
	s.broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", zap.Error(err))
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Close releases the store after housekeeping. Call after Run returns.
func (s *Server) Close() error {
	s.reconciler.Stop()
	s.broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if _, err := s.journal.Cleanup(ctx, s.cfg.Reconcile.MaxAgeDuration()); err != nil {
		s.logger.Error("Failed to cleanup close intents", zap.Error(err))
	}
	if _, err := s.sessions.PurgeExpired(ctx); err != nil {
		s.logger.Error("Failed to purge expired sessions", zap.Error(err))
	}
	return s.db.Close()
}
