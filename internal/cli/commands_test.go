package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/config"
	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/server"
)

type result struct {
	stdout string
	stderr string
	code   int
}

func newBackend(t *testing.T) *httptest.Server {
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

// writeConfig creates a client config pointing at baseURL.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`log:
  level: error
  format: console
client:
  base_url: %q
  timeout: 5
`, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(ctx context.Context, configPath string, args ...string) result {
	var stdout, stderr bytes.Buffer
	code := Run(ctx, append([]string{"--config", configPath}, args...), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func signIn(t *testing.T, baseURL, email string) string {
	t.Helper()
	path := writeConfig(t, baseURL)
	res := runCLI(context.Background(), path, "signin", email)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	return path
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func createTask(t *testing.T, configPath, title string) models.Task {
	t.Helper()
	res := runCLI(context.Background(), configPath, "--format", "json", "task", "create", "--title", title)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var task models.Task
	decodeData(t, res.stdout, &task)
	return task
}

func TestSignIn_StoresToken(t *testing.T) {
	ts := newBackend(t)
	path := writeConfig(t, ts.URL)

	res := runCLI(context.Background(), path, "signin", "Alice@Example.com")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed in as alice@example.com")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Client.Token)
	assert.Equal(t, ts.URL, cfg.Client.BaseURL)
	assert.Equal(t, "error", cfg.Log.Level)

	res = runCLI(context.Background(), path, "signout")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	cfg, err = config.LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Client.Token)
}

func TestSignIn_InvalidEmail(t *testing.T) {
	ts := newBackend(t)
	path := writeConfig(t, ts.URL)

	res := runCLI(context.Background(), path, "signin", "not-an-email")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestCommands_RequireSignIn(t *testing.T) {
	ts := newBackend(t)
	path := writeConfig(t, ts.URL)

	res := runCLI(context.Background(), path, "task", "list")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "not signed in")
}

func TestInvalidFormat(t *testing.T) {
	ts := newBackend(t)
	path := writeConfig(t, ts.URL)

	res := runCLI(context.Background(), path, "--format", "xml", "task", "list")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid format")
}

func TestTaskWorkflow(t *testing.T) {
	ts := newBackend(t)
	alice := signIn(t, ts.URL, "alice@example.com")
	ctx := context.Background()

	task := createTask(t, alice, "  Write docs  ")
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, models.TaskOpen, task.Status)

	res := runCLI(ctx, alice, "task", "list")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Write docs")
	assert.Contains(t, res.stdout, "alice@example.com")

	res = runCLI(ctx, alice, "clockin", task.ID)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `Clocked in to "Write docs"`)

	res = runCLI(ctx, alice, "clockin", task.ID)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "You already have an active session for this task")

	res = runCLI(ctx, alice, "report", task.ID)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Task:        Write docs")
	assert.Contains(t, res.stdout, "Active")

	res = runCLI(ctx, alice, "clockout", task.ID, "--close")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Clocked out after")
	assert.Contains(t, res.stdout, `Task "Write docs" closed`)

	res = runCLI(ctx, alice, "--format", "json", "task", "list", "--status", "closed")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var closed []models.Task
	decodeData(t, res.stdout, &closed)
	require.Len(t, closed, 1)
	assert.Equal(t, task.ID, closed[0].ID)
	assert.NotNil(t, closed[0].ClosedAt)

	res = runCLI(ctx, alice, "clockin", task.ID)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "This task is closed")
}

func TestClockIn_OccupiedByAnotherUser(t *testing.T) {
	ts := newBackend(t)
	alice := signIn(t, ts.URL, "alice@example.com")
	bob := signIn(t, ts.URL, "bob@example.com")
	ctx := context.Background()

	task := createTask(t, alice, "Shared task")
	res := runCLI(ctx, alice, "clockin", task.ID)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = runCLI(ctx, bob, "clockin", task.ID)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "This task is currently being worked on by alice@example.com")

	res = runCLI(ctx, bob, "--format", "json", "clockout", task.ID)
	assert.Equal(t, ExitFailure, res.code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, MsgNoActiveSession, resp.Error.Message)

	res = runCLI(ctx, alice, "clockout", task.ID)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.NotContains(t, res.stdout, "closed")

	res = runCLI(ctx, bob, "clockin", task.ID)
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
}

func TestUnknownTask(t *testing.T) {
	ts := newBackend(t)
	alice := signIn(t, ts.URL, "alice@example.com")

	res := runCLI(context.Background(), alice, "clockin", "missing")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "task not found")

	res = runCLI(context.Background(), alice, "report", "missing")
	assert.Equal(t, ExitFailure, res.code)
}

func TestWatch_ShowsActiveTimer(t *testing.T) {
	ts := newBackend(t)
	alice := signIn(t, ts.URL, "alice@example.com")

	task := createTask(t, alice, "Live task")
	res := runCLI(context.Background(), alice, "clockin", task.ID)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	res = runCLI(ctx, alice, "watch", "--interval", "10ms")

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Live task 00:00:0")
}

func TestWatch_IdleWithoutSession(t *testing.T) {
	ts := newBackend(t)
	alice := signIn(t, ts.URL, "alice@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res := runCLI(ctx, alice, "watch")

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, idleLabel+" 00:00:00")
}
