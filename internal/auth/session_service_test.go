package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/database"
)

func newTestService(t *testing.T, ttl time.Duration) (*SessionService, *time.Time) {
	t.Helper()
	db, err := database.New(database.InMemory, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	svc := NewSessionService(db, ttl, zap.NewNop())
	svc.SetClock(func() time.Time { return now })
	return svc, &now
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	for _, bad := range []string{"", "alice", "Alice <alice@example.com>", "a b@example.com"} {
		_, err := NormalizeEmail(bad)
		assert.Equal(t, apperr.CodeInvalidEmail, apperr.CodeOf(err), "email %q", bad)
	}
}

func TestSignIn_ReusesProfileForSameEmail(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	first, err := svc.SignIn(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := svc.SignIn(ctx, "ALICE@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.Profile.ID, second.Profile.ID)
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, "alice@example.com", second.Profile.Email)
}

func TestAuthenticate(t *testing.T) {
	svc, now := newTestService(t, time.Hour)
	ctx := context.Background()

	resp, err := svc.SignIn(ctx, "alice@example.com")
	require.NoError(t, err)

	profile, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Profile.ID, profile.ID)

	_, err = svc.Authenticate(ctx, "")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	_, err = svc.Authenticate(ctx, "bogus")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	*now = now.Add(time.Hour)
	_, err = svc.Authenticate(ctx, resp.Token)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized), "expired")
}

func TestSignOut(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	resp, err := svc.SignIn(ctx, "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, resp.Token))
	_, err = svc.Authenticate(ctx, resp.Token)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestPurgeExpired(t *testing.T) {
	svc, now := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = svc.SignIn(ctx, "bob@example.com")
	require.NoError(t, err)

	*now = now.Add(2 * time.Hour)
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
