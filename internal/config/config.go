package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	NetworkErrorUnavailable = "unavailable"
	NetworkErrorRedirect    = "redirect"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// AuthURL starts the external login flow; LogoutURL clears the backend session.
	AuthURL   string
	LogoutURL string
	// BackendURL is the base URL of the session-protected weather API.
	BackendURL string

	FetchTimeout time.Duration
	BackendRPS   float64
	BackendBurst int

	// NetworkErrorPolicy decides what a transport failure does to the data view:
	// "unavailable" shows a transient error, "redirect" restarts the login flow.
	NetworkErrorPolicy string

	// SessionCookies lists the incoming cookie names forwarded to the backend.
	// Empty forwards every cookie except the view cookie.
	SessionCookies []string
	ViewTTL        time.Duration

	// MaxViews caps live data views; the least recently used one is evicted.
	MaxViews int

	// MQTTBroker empty disables view event publishing.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOr("HTTP_ADDR", ":3000")

	authURL, err := parseURL("AUTH_URL", envOr("AUTH_URL", "http://localhost:8080/oauth2/authorization/auth0"))
	if err != nil {
		return Config{}, err
	}
	logoutURL, err := parseURL("LOGOUT_URL", envOr("LOGOUT_URL", "http://localhost:8080/logout"))
	if err != nil {
		return Config{}, err
	}
	backendURL, err := parseURL("BACKEND_URL", envOr("BACKEND_URL", "http://localhost:8080"))
	if err != nil {
		return Config{}, err
	}

	fetchTimeoutStr := envOr("FETCH_TIMEOUT", "10s")
	fetchTimeout, err := time.ParseDuration(fetchTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FETCH_TIMEOUT %q: %w", fetchTimeoutStr, err)
	}
	if fetchTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid FETCH_TIMEOUT %q: must be > 0", fetchTimeoutStr)
	}

	rpsStr := envOr("BACKEND_RPS", "5")
	rps, err := strconv.ParseFloat(rpsStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BACKEND_RPS %q: %w", rpsStr, err)
	}
	if rps <= 0 {
		return Config{}, fmt.Errorf("invalid BACKEND_RPS %q: must be > 0", rpsStr)
	}

	burstStr := envOr("BACKEND_BURST", "10")
	burst, err := strconv.Atoi(burstStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BACKEND_BURST %q: %w", burstStr, err)
	}
	if burst < 1 {
		return Config{}, fmt.Errorf("invalid BACKEND_BURST %q: must be >= 1", burstStr)
	}

	policy := strings.ToLower(envOr("NETWORK_ERROR_POLICY", NetworkErrorUnavailable))
	switch policy {
	case NetworkErrorUnavailable, NetworkErrorRedirect:
	default:
		return Config{}, fmt.Errorf("invalid NETWORK_ERROR_POLICY %q (allowed: unavailable, redirect)", policy)
	}

	var sessionCookies []string
	for _, name := range strings.Split(os.Getenv("SESSION_COOKIES"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			sessionCookies = append(sessionCookies, name)
		}
	}

	viewTTLStr := envOr("VIEW_TTL", "30m")
	viewTTL, err := time.ParseDuration(viewTTLStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid VIEW_TTL %q: %w", viewTTLStr, err)
	}
	if viewTTL <= 0 {
		return Config{}, fmt.Errorf("invalid VIEW_TTL %q: must be > 0", viewTTLStr)
	}

	maxViewsStr := envOr("MAX_VIEWS", "10000")
	maxViews, err := strconv.Atoi(maxViewsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MAX_VIEWS %q: %w", maxViewsStr, err)
	}
	if maxViews < 1 {
		return Config{}, fmt.Errorf("invalid MAX_VIEWS %q: must be >= 1", maxViewsStr)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPortStr := envOr("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		AuthURL:            authURL,
		LogoutURL:          logoutURL,
		BackendURL:         strings.TrimRight(backendURL, "/"),
		FetchTimeout:       fetchTimeout,
		BackendRPS:         rps,
		BackendBurst:       burst,
		NetworkErrorPolicy: policy,
		SessionCookies:     sessionCookies,
		ViewTTL:            viewTTL,
		MaxViews:           maxViews,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       envOr("MQTT_CLIENT_ID", "weatherportal-web"),
		MQTTTopicPrefix:    strings.TrimRight(envOr("MQTT_TOPIC_PREFIX", "weatherportal"), "/"),
	}, nil
}

// loadDotEnv fills unset variables from DOTENV_PATH (default .env). A missing
// file is not an error; variables already present in the environment win.
func loadDotEnv() error {
	path := envOr("DOTENV_PATH", ".env")
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseURL(key, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid %s %q: scheme must be http or https", key, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid %s %q: missing host", key, raw)
	}
	return u.String(), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
