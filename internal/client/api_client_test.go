package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/config"
	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/server"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{StoragePath: database.InMemory}
	cfg.Server.EventBuffer = 16
	srv, err := server.New(cfg, zap.NewNop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func signedIn(t *testing.T, baseURL, email string) *APIClient {
	t.Helper()
	c := NewAPIClient(baseURL, "", 5*time.Second, zap.NewNop())
	resp, err := c.SignIn(context.Background(), email)
	require.NoError(t, err)
	c.SetToken(resp.Token)
	return c
}

func TestAPIClient_Workflow(t *testing.T) {
	ts := newAPI(t)
	ctx := context.Background()
	alice := signedIn(t, ts.URL, "alice@example.com")
	bob := signedIn(t, ts.URL+"/", "bob@example.com")

	require.NoError(t, alice.HealthCheck(ctx))

	me, err := alice.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	task, err := alice.CreateTask(ctx, "Build report", "Quarterly numbers")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly numbers", task.Description)

	entry, err := alice.ClockIn(ctx, task.ID)
	require.NoError(t, err)

	_, err = bob.ClockIn(ctx, task.ID)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, apperr.CodeTaskOccupied, ae.Code)

	result, err := alice.ClockOut(ctx, entry.ID, models.ClockOutKeepOpen)
	require.NoError(t, err)
	assert.False(t, result.Entry.Active())

	tasks, err := bob.ListTasks(ctx, models.TaskOpen)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	entries, err := bob.ListEntries(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	profiles, err := bob.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	rep, err := bob.TaskReport(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, rep.Lines, 1)

	snap, err := bob.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 1)

	require.NoError(t, alice.SignOut(ctx))
	_, err = alice.Me(ctx)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestAPIClient_BackendError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewAPIClient(ts.URL, "", time.Second, zap.NewNop())
	err := c.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, IsBackendError(err))

	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusBadGateway, be.StatusCode)
	assert.Contains(t, be.Message, "upstream exploded")
}

func TestAPIClient_UnreachableIsStoreError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewAPIClient(url, "", time.Second, zap.NewNop())
	_, err := c.ListTasks(context.Background(), "")
	assert.True(t, apperr.IsKind(err, apperr.KindStore))
}

func TestSubscribe(t *testing.T) {
	ts := newAPI(t)
	alice := signedIn(t, ts.URL, "alice@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := alice.Subscribe(ctx)
	require.NoError(t, err)

	_, err = alice.CreateTask(context.Background(), "Streamed", "")
	require.NoError(t, err)

	select {
	case event, ok := <-events:
		require.True(t, ok)
		assert.Equal(t, int64(1), event.Seq)
		assert.Equal(t, models.TableTasks, event.Table)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	for range events {
	}
}

func TestSubscribe_RequiresSession(t *testing.T) {
	ts := newAPI(t)
	c := NewAPIClient(ts.URL, "bogus", time.Second, zap.NewNop())

	_, err := c.Subscribe(context.Background())
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}
