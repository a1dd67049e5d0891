package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"weatherportal-web/internal/config"
)

// New returns the process logger. Local runs (APP_ENV=dev or an unstamped
// build) get tint output; everything else gets JSON tagged for aggregation.
func New(w io.Writer, cfg config.Config, version, appName string) *slog.Logger {
	if cfg.AppEnv != "prod" || version == "dev" {
		return slog.New(devHandler(w, cfg.LogLevel)).With("app", appName)
	}
	return slog.New(prodHandler(w, cfg.LogLevel)).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

func devHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  true,
		TimeFormat: time.TimeOnly,
	})
}

func prodHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})
}
