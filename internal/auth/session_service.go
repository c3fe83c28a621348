package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/repository"
)

// DefaultSessionTTL applies when the service is built with a non-positive TTL.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionService issues and checks bearer tokens. Sign-in is by email only:
// the profile is created on first use.
type SessionService struct {
	profiles *repository.ProfileRepository
	sessions *repository.SessionRepository
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionService(db *database.DB, ttl time.Duration, logger *zap.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		profiles: repository.NewProfileRepository(db),
		sessions: repository.NewSessionRepository(db),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// NormalizeEmail lower-cases and validates a plain address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation(apperr.CodeInvalidEmail, "Please enter a valid email address")
	}
	return email, nil
}

func (s *SessionService) SignIn(ctx context.Context, email string) (*models.SignInResponse, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	candidate := &models.Profile{ID: uuid.NewString(), Email: email, CreatedAt: now}
	created, err := s.profiles.Create(ctx, candidate)
	if err != nil {
		return nil, s.storeError("failed to sign in", err)
	}

	profile := candidate
	if !created {
		if profile, err = s.profiles.GetByEmail(ctx, email); err != nil {
			return nil, s.storeError("failed to sign in", err)
		}
	} else {
		s.logger.Info("Profile created", zap.String("user_id", profile.ID), zap.String("email", email))
	}

	session := &repository.Session{
		Token:     uuid.NewString(),
		UserID:    profile.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, s.storeError("failed to sign in", err)
	}

	s.logger.Info("Signed in",
		zap.String("user_id", profile.ID),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return &models.SignInResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Profile:   *profile,
	}, nil
}

// Authenticate resolves token to the signed-in profile.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Sign in required")
	}

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("Session not found, please sign in again")
	}
	if err != nil {
		return nil, s.storeError("failed to authenticate", err)
	}

	if !s.now().Before(session.ExpiresAt) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn("Failed to delete expired session", zap.Error(err))
		}
		return nil, apperr.Unauthorized("Session expired, please sign in again")
	}

	profile, err := s.profiles.GetByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("Profile no longer exists")
	}
	if err != nil {
		return nil, s.storeError("failed to authenticate", err)
	}
	return profile, nil
}

func (s *SessionService) SignOut(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return s.storeError("failed to sign out", err)
	}
	return nil
}

// PurgeExpired removes expired sessions.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, s.storeError("failed to purge sessions", err)
	}
	if n > 0 {
		s.logger.Info("Purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}

func (s *SessionService) storeError(msg string, err error) error {
	s.logger.Error(msg, zap.Error(err))
	return apperr.Store(msg, fmt.Errorf("auth: %w", err))
}
