package dataview

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"weatherportal-web/internal/modules/weather/repository"
	"weatherportal-web/internal/modules/weather/types"
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateError
	// StateUnavailable is a transport failure: the backend could not be reached.
	StateUnavailable
	// StateRedirecting is terminal; the visitor is sent to the login flow.
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateUnavailable:
		return "unavailable"
	case StateRedirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

const (
	MessageServerError = "Failed to load weather data. Please try again."
	MessageUnavailable = "Weather service is unreachable. Please try again."
)

var (
	ErrNotReady           = errors.New("view has no readings loaded")
	ErrIndexOutOfRange    = errors.New("city index out of range")
	ErrAddCityUnsupported = errors.New("adding cities is not supported")
)

// Policy holds the fixed parameters of every fetch.
type Policy struct {
	AuthURL      string
	FetchTimeout time.Duration
	// RedirectOnNetworkError restores the legacy behavior of treating a
	// transport failure like a rejected session.
	RedirectOnNetworkError bool
}

// Snapshot is a copy of a view's state safe to hand to templates.
type Snapshot struct {
	ViewID      string
	State       State
	Readings    []types.WeatherReading
	Message     string
	RedirectURL string
	Generation  uint64
}

// Event describes one settled fetch.
type Event struct {
	ViewID     string
	Generation uint64
	State      State
	Status     int
	Duration   time.Duration
	Time       time.Time
}

type EventSink interface {
	Publish(Event)
}

type View struct {
	id     string
	repo   repository.WeatherRepository
	policy Policy
	sink   EventSink
	logger *slog.Logger

	mu          sync.Mutex
	gen         uint64
	state       State
	readings    []types.WeatherReading
	message     string
	redirectURL string
	// pending is closed when the newest generation settles; nil when idle.
	pending  chan struct{}
	lastSeen time.Time
}

func NewView(id string, repo repository.WeatherRepository, policy Policy, sink EventSink, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		id:       id,
		repo:     repo,
		policy:   policy,
		sink:     sink,
		logger:   logger.With("view_id", id),
		state:    StateLoading,
		lastSeen: time.Now(),
	}
}

func (v *View) ID() string { return v.id }

// Fetch performs one backend request and returns the state the view settles
// in. The request is detached from ctx cancellation and bounded by the policy
// timeout so that every generation settles. If a newer Fetch starts while this
// one is in flight, this result is discarded and Fetch waits for the newest
// generation instead.
func (v *View) Fetch(ctx context.Context, cred repository.Credential) Snapshot {
	gen, ok := v.begin()
	if !ok {
		return v.Snapshot()
	}

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.policy.FetchTimeout)
	readings, err := v.repo.GetReadings(fetchCtx, cred)
	cancel()

	out := v.classify(readings, err)
	if v.settle(gen, out) {
		v.publish(gen, out, time.Since(start))
		return v.Snapshot()
	}

	v.logger.Debug("discarding superseded fetch", "generation", gen)
	snap, werr := v.Wait(ctx)
	if werr != nil {
		v.logger.Debug("wait for newest fetch abandoned", "generation", gen, "error", werr)
	}
	return snap
}

// Refresh re-runs Fetch from any stable state.
func (v *View) Refresh(ctx context.Context, cred repository.Credential) Snapshot {
	return v.Fetch(ctx, cred)
}

// Wait blocks until no fetch is in flight, then returns the settled state.
func (v *View) Wait(ctx context.Context) (Snapshot, error) {
	for {
		v.mu.Lock()
		ch := v.pending
		if ch == nil {
			snap := v.snapshotLocked()
			v.mu.Unlock()
			return snap, nil
		}
		v.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return v.Snapshot(), ctx.Err()
		}
	}
}

// RemoveCity drops the reading at index from the local list. The backend is
// not told.
func (v *View) RemoveCity(index int) (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastSeen = time.Now()

	if v.state != StateReady {
		return v.snapshotLocked(), ErrNotReady
	}
	if index < 0 || index >= len(v.readings) {
		return v.snapshotLocked(), ErrIndexOutOfRange
	}
	v.readings = slices.Delete(v.readings, index, index+1)
	return v.snapshotLocked(), nil
}

// AddCity accepts the add-city input but has nowhere to send it. A blank name
// is ignored; anything else returns ErrAddCityUnsupported.
func (v *View) AddCity(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	v.logger.Debug("add city requested", "city", name)
	return ErrAddCityUnsupported
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// LastSeen reports when the view was last used.
func (v *View) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		ViewID:      v.id,
		State:       v.state,
		Readings:    slices.Clone(v.readings),
		Message:     v.message,
		RedirectURL: v.redirectURL,
		Generation:  v.gen,
	}
}

// begin enters Loading under a new generation. A redirecting view is
// finished and refuses new fetches.
func (v *View) begin() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastSeen = time.Now()

	if v.state == StateRedirecting {
		return v.gen, false
	}
	if v.pending != nil {
		close(v.pending)
	}
	v.gen++
	v.state = StateLoading
	v.pending = make(chan struct{})
	return v.gen, true
}

type outcome struct {
	state       State
	readings    []types.WeatherReading
	message     string
	redirectURL string
	status      int
}

func (v *View) classify(readings []types.WeatherReading, err error) outcome {
	if err == nil {
		return outcome{state: StateReady, readings: slices.Clone(readings), status: 200}
	}

	var status int
	var se *repository.StatusError
	if errors.As(err, &se) {
		status = se.Code
	}

	switch {
	case errors.Is(err, repository.ErrAuthRequired):
		v.logger.Info("backend rejected session, redirecting to login", "status", status)
		return outcome{state: StateRedirecting, redirectURL: v.policy.AuthURL, status: status}
	case errors.Is(err, repository.ErrThrottled):
		v.logger.Warn("weather request throttled", "error", err)
		return outcome{state: StateUnavailable, message: MessageUnavailable}
	case errors.Is(err, repository.ErrUnreachable):
		if v.policy.RedirectOnNetworkError {
			v.logger.Warn("weather backend unreachable, redirecting to login", "error", err)
			return outcome{state: StateRedirecting, redirectURL: v.policy.AuthURL}
		}
		v.logger.Warn("weather backend unreachable", "error", err)
		return outcome{state: StateUnavailable, message: MessageUnavailable}
	default:
		v.logger.Error("error fetching weather data", "status", status, "error", err)
		return outcome{state: StateError, message: MessageServerError, status: status}
	}
}

// settle applies out if gen is still the newest generation.
func (v *View) settle(gen uint64, out outcome) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen || v.pending == nil {
		return false
	}
	v.state = out.state
	v.message = out.message
	v.redirectURL = out.redirectURL
	v.readings = out.readings
	close(v.pending)
	v.pending = nil
	return true
}

func (v *View) publish(gen uint64, out outcome, d time.Duration) {
	if v.sink == nil {
		return
	}
	v.sink.Publish(Event{
		ViewID:     v.id,
		Generation: gen,
		State:      out.state,
		Status:     out.status,
		Duration:   d,
		Time:       time.Now(),
	})
}
