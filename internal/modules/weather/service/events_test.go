package service

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"weatherportal-web/internal/modules/weather/dataview"
	"weatherportal-web/internal/modules/weather/types"
)

type captured struct {
	topic   string
	payload []byte
}

type mockPublisher struct {
	accept bool
	msgs   []captured
}

func (m *mockPublisher) Enqueue(topic string, payload []byte) bool {
	m.msgs = append(m.msgs, captured{topic: topic, payload: payload})
	return m.accept
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventPublisher_Publish(t *testing.T) {
	pub := &mockPublisher{accept: true}
	ep := NewEventPublisher(pub, "weatherportal", quietLogger())

	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	ep.Publish(dataview.Event{
		ViewID:     "abc",
		Generation: 3,
		State:      dataview.StateReady,
		Status:     200,
		Duration:   1500 * time.Millisecond,
		Time:       at,
	})

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages; want 1", len(pub.msgs))
	}
	if got := pub.msgs[0].topic; got != "weatherportal/views/abc/events" {
		t.Errorf("topic = %q; want weatherportal/views/abc/events", got)
	}

	var ev types.ViewEvent
	if err := json.Unmarshal(pub.msgs[0].payload, &ev); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if ev.ViewID != "abc" || ev.Generation != 3 || ev.State != "ready" || ev.Status != 200 || ev.DurationMs != 1500 {
		t.Errorf("event = %+v", ev)
	}
	if !ev.Timestamp.Equal(at) || ev.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v; want %v in UTC", ev.Timestamp, at)
	}
}

func TestEventPublisher_NetworkFailureOmitsStatus(t *testing.T) {
	pub := &mockPublisher{accept: true}
	ep := NewEventPublisher(pub, "wp", quietLogger())

	ep.Publish(dataview.Event{ViewID: "v", State: dataview.StateUnavailable})

	var raw map[string]any
	if err := json.Unmarshal(pub.msgs[0].payload, &raw); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if _, ok := raw["status"]; ok {
		t.Errorf("payload %s carries a status for a transport failure", pub.msgs[0].payload)
	}
	if raw["state"] != "unavailable" {
		t.Errorf("state = %v; want unavailable", raw["state"])
	}
}

func TestEventPublisher_DroppedIsNotFatal(t *testing.T) {
	pub := &mockPublisher{accept: false}
	ep := NewEventPublisher(pub, "wp", quietLogger())

	ep.Publish(dataview.Event{ViewID: "v", State: dataview.StateError, Status: 500})

	if len(pub.msgs) != 1 {
		t.Errorf("Enqueue calls = %d; want 1", len(pub.msgs))
	}
}
