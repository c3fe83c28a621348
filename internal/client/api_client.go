package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/report"
)

// APIClient talks to the team tracker HTTP API.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// streamClient has no overall timeout; event streams are long-lived.
	streamClient *http.Client
	logger       *zap.Logger
}

func NewAPIClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

// SetToken sets the session token sent as a bearer credential.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

// BackendError is returned for failed responses that do not carry an API error body.
type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	return e.Message
}

func (c *APIClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *APIClient) SignIn(ctx context.Context, email string) (*models.SignInResponse, error) {
	var resp models.SignInResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/sign-in", models.SignInRequest{Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/sign-out", nil, nil)
}

func (c *APIClient) Me(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *APIClient) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/snapshot", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *APIClient) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	path := "/api/v1/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *APIClient) CreateTask(ctx context.Context, title, description string) (*models.Task, error) {
	var task models.Task
	req := models.CreateTaskRequest{Title: title, Description: description}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *APIClient) TaskReport(ctx context.Context, taskID string) (*report.Report, error) {
	var rep report.Report
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID)+"/report", nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *APIClient) ClockIn(ctx context.Context, taskID string) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(taskID)+"/clock-in", nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *APIClient) ClockOut(ctx context.Context, entryID string, mode models.ClockOutMode) (*models.ClockOutResult, error) {
	var result models.ClockOutResult
	path := "/api/v1/time-entries/" + url.PathEscape(entryID) + "/clock-out"
	if err := c.do(ctx, http.MethodPost, path, models.ClockOutRequest{Mode: mode}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) ListEntries(ctx context.Context, taskID string) ([]models.TimeEntry, error) {
	path := "/api/v1/time-entries"
	if taskID != "" {
		path += "?task_id=" + url.QueryEscape(taskID)
	}
	var entries []models.TimeEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *APIClient) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles", nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Debug("Request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return apperr.Store("server unreachable", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeError turns a failed response back into the *apperr.Error the server
// rendered, or a *BackendError when the body is not an API error.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error *apperr.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && payload.Error.Kind != "" {
		return payload.Error
	}
	return &BackendError{
		Message:    fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		StatusCode: resp.StatusCode,
	}
}

// IsBackendError reports whether err is a *BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
