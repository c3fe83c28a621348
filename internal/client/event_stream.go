package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/models"
)

// Subscribe opens the change event stream. Events are delivered on the
// returned channel, which is closed when ctx is cancelled or the stream
// ends. After the channel closes the caller must refetch a snapshot.
func (c *APIClient) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, apperr.Store("server unreachable", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	events := make(chan models.ChangeEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		c.readEvents(ctx, bufio.NewScanner(resp.Body), events)
	}()
	return events, nil
}

func (c *APIClient) readEvents(ctx context.Context, scanner *bufio.Scanner, out chan<- models.ChangeEvent) {
	scanner.Buffer(make([]byte, 64<<10), 1<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
				c.logger.Warn("Dropping malformed change event", zap.Error(err))
			} else {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("Event stream interrupted", zap.Error(err))
	}
}
