package types

import "time"

// WeatherReading is one card on the data view. Readings have no identity
// beyond their position in the list returned by the backend.
type WeatherReading struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Temp        float64 `json:"temp"`
}

// ViewEvent is published for every settled fetch of a data view.
type ViewEvent struct {
	ViewID     string    `json:"view_id"`
	Generation uint64    `json:"generation"`
	State      string    `json:"state"`
	Status     int       `json:"status,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
