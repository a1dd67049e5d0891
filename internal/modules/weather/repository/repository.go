package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"weatherportal-web/internal/modules/weather/types"
)

const (
	weatherPath     = "/weather"
	maxResponseBody = 1 << 20
)

var (
	// ErrAuthRequired means the backend answered 401, 403 or a redirect
	// (typically to its login page): the session is missing or no longer valid.
	ErrAuthRequired = errors.New("backend requires authentication")
	// ErrDecode means the backend answered 2xx with a body that is not a JSON
	// array of readings.
	ErrDecode = errors.New("decode weather readings")
	// ErrUnreachable means no HTTP response was received at all.
	ErrUnreachable = errors.New("weather backend unreachable")
	// ErrThrottled means the local rate limiter refused the request before it
	// was sent.
	ErrThrottled = errors.New("weather backend request throttled")
)

// StatusError is any non-2xx answer. 401, 403 and 3xx also match
// ErrAuthRequired; redirects are never followed.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather backend status %d", e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrAuthRequired && isAuthStatus(e.Code)
}

func isAuthStatus(code int) bool {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return true
	case code >= 300 && code <= 399:
		return true
	default:
		return false
	}
}

type WeatherRepository interface {
	GetReadings(ctx context.Context, cred Credential) ([]types.WeatherReading, error)
}

type repositoryImpl struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
}

// NewRepository returns a repository reading from baseURL + "/weather". A nil
// client uses http.DefaultClient; a nil limiter disables rate limiting. The
// client is copied so that redirects come back as a StatusError instead of
// being followed.
func NewRepository(client *http.Client, baseURL string, limiter *rate.Limiter) WeatherRepository {
	if client == nil {
		client = http.DefaultClient
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &repositoryImpl{
		client:   &noRedirect,
		endpoint: baseURL + weatherPath,
		limiter:  limiter,
	}
}

// NewLimiter builds the token bucket shared by every backend request.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (r *repositoryImpl) GetReadings(ctx context.Context, cred Credential) ([]types.WeatherReading, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrThrottled, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if cred != nil {
		cred.Apply(req)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("close weather response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var readings []types.WeatherReading
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&readings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return readings, nil
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
}
