package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/auth"
	"Mansoor88-6/team-time-tracker/internal/models"
)

type AuthHandler struct {
	sessions *auth.SessionService
	logger   *zap.Logger
}

func NewAuthHandler(sessions *auth.SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	resp, err := h.sessions.SignIn(r.Context(), req.Email)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context(), BearerToken(r)); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, ok := actor(w, r, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
