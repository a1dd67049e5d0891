package service

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"weatherportal-web/internal/modules/weather/dataview"
	"weatherportal-web/internal/modules/weather/types"
)

// MessagePublisher accepts a message without blocking the caller.
type MessagePublisher interface {
	Enqueue(topic string, payload []byte) bool
}

// EventPublisher forwards settled fetches of data views to the message bus.
type EventPublisher struct {
	publisher MessagePublisher
	prefix    string
	logger    *slog.Logger
}

func NewEventPublisher(publisher MessagePublisher, topicPrefix string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{publisher: publisher, prefix: topicPrefix, logger: logger}
}

// Topic returns the topic carrying events of one view.
func (e *EventPublisher) Topic(viewID string) string {
	return fmt.Sprintf("%s/views/%s/events", e.prefix, viewID)
}

// Publish implements dataview.EventSink.
func (e *EventPublisher) Publish(ev dataview.Event) {
	payload, err := json.Marshal(toViewEvent(ev))
	if err != nil {
		e.logger.Error("failed to marshal view event", "view_id", ev.ViewID, "error", err)
		return
	}
	if !e.publisher.Enqueue(e.Topic(ev.ViewID), payload) {
		e.logger.Debug("view event dropped", "view_id", ev.ViewID, "generation", ev.Generation)
	}
}

func toViewEvent(ev dataview.Event) types.ViewEvent {
	return types.ViewEvent{
		ViewID:     ev.ViewID,
		Generation: ev.Generation,
		State:      ev.State.String(),
		Status:     ev.Status,
		DurationMs: ev.Duration.Milliseconds(),
		Timestamp:  ev.Time.UTC(),
	}
}
