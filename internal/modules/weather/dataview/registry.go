package dataview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"weatherportal-web/internal/modules/weather/repository"
)

// Registry keeps the live views of this process, one per browser tab cookie.
// Views idle for longer than ttl are dropped by Run. When maxViews is
// positive, registering past it evicts the least recently used view.
type Registry struct {
	repo     repository.WeatherRepository
	policy   Policy
	sink     EventSink
	logger   *slog.Logger
	ttl      time.Duration
	maxViews int

	mu    sync.Mutex
	views map[string]*View
}

func NewRegistry(repo repository.WeatherRepository, policy Policy, sink EventSink, ttl time.Duration, maxViews int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		repo:     repo,
		policy:   policy,
		sink:     sink,
		logger:   logger,
		ttl:      ttl,
		maxViews: maxViews,
		views:    make(map[string]*View),
	}
}

// Get returns the view with id, if it is still registered.
func (r *Registry) Get(id string) (*View, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	return v, ok
}

// GetOrCreate returns the view with id or registers a fresh one under a new
// random id. created reports whether a new view was made.
func (r *Registry) GetOrCreate(id string) (v *View, created bool) {
	if v, ok := r.Get(id); ok {
		return v, false
	}
	v = NewView(uuid.NewString(), r.repo, r.policy, r.sink, r.logger)
	r.mu.Lock()
	evicted := r.evictLocked()
	r.views[v.ID()] = v
	r.mu.Unlock()
	if evicted != "" {
		r.logger.Warn("view limit reached, evicted least recently used view",
			"evicted_view_id", evicted, "max_views", r.maxViews)
	}
	r.logger.Debug("view created", "view_id", v.ID())
	return v, true
}

// evictLocked drops the least recently used view when the registry is full
// and returns its id.
func (r *Registry) evictLocked() string {
	if r.maxViews <= 0 || len(r.views) < r.maxViews {
		return ""
	}
	var (
		oldestID string
		oldest   time.Time
	)
	for id, v := range r.views {
		if seen := v.LastSeen(); oldestID == "" || seen.Before(oldest) {
			oldestID, oldest = id, seen
		}
	}
	delete(r.views, oldestID)
	return oldestID
}

// Delete forgets a view; its local state is gone.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep removes views not used since now-ttl and returns how many it removed.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, v := range r.views {
		if v.LastSeen().Before(cutoff) {
			delete(r.views, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired views every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Debug("expired views removed", "count", n, "remaining", r.Len())
			}
		}
	}
}
