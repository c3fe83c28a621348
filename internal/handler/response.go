package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/models"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error *apperr.Error `json:"error"`
}

type profileKey struct{}

// WithProfile returns a context carrying the authenticated profile.
func WithProfile(ctx context.Context, profile *models.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, profile)
}

// ProfileFrom returns the authenticated profile stored by WithProfile.
func ProfileFrom(ctx context.Context) (*models.Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(*models.Profile)
	return p, ok && p != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError renders err with the status of its kind. Errors that are not
// *apperr.Error are reported as store failures.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Store("internal error", err)
	}
	status := apperr.HTTPStatus(ae.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("Request rejected",
			zap.Int("status", status),
			zap.String("code", ae.Code),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: ae})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Debug("Failed to decode request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: apperr.Validation(apperr.CodeInvalidRequest, "Invalid request body"),
		})
		return false
	}
	return true
}

func actor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*models.Profile, bool) {
	profile, ok := ProfileFrom(r.Context())
	if !ok {
		WriteError(w, logger, apperr.Unauthorized("Sign in required"))
		return nil, false
	}
	return profile, true
}
