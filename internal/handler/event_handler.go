package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/notify"
)

// DefaultHeartbeat is the interval between keep-alive comments on idle streams.
const DefaultHeartbeat = 15 * time.Second

// EventHandler streams change events as Server-Sent Events. The stream ends
// when the subscriber falls behind; clients then refetch a snapshot.
type EventHandler struct {
	broker    *notify.Broker
	buffer    int
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewEventHandler(broker *notify.Broker, buffer int, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		broker:    broker,
		buffer:    buffer,
		heartbeat: DefaultHeartbeat,
		logger:    logger,
	}
}

func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("Cannot clear write deadline", zap.Error(err))
	}

	events, cancel := h.broker.Subscribe(h.buffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected seq=%d\n\n", h.broker.Seq())
	if err := rc.Flush(); err != nil {
		h.logger.Error("Streaming not supported", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
		case event, ok := <-events:
			if !ok {
				h.logger.Info("Event stream closed by broker")
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to encode change event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: change\ndata: %s\n\n", event.Seq, data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
