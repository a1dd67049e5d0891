package weather

import (
	"log/slog"
	"net/http"

	"weatherportal-web/internal/config"
	"weatherportal-web/internal/modules/weather/controller"
	"weatherportal-web/internal/modules/weather/dataview"
	"weatherportal-web/internal/modules/weather/repository"
)

// RegisterFeature wires the weather views onto mux and returns the view
// registry so the caller can run its janitor. sink may be nil.
func RegisterFeature(mux *http.ServeMux, cfg config.Config, sink dataview.EventSink, logger *slog.Logger) *dataview.Registry {
	limiter := repository.NewLimiter(cfg.BackendRPS, cfg.BackendBurst)
	weatherRepository := repository.NewRepository(&http.Client{}, cfg.BackendURL, limiter)

	policy := dataview.Policy{
		AuthURL:                cfg.AuthURL,
		FetchTimeout:           cfg.FetchTimeout,
		RedirectOnNetworkError: cfg.NetworkErrorPolicy == config.NetworkErrorRedirect,
	}
	registry := dataview.NewRegistry(weatherRepository, policy, sink, cfg.ViewTTL, cfg.MaxViews, logger)

	weatherController := controller.NewWeatherController(registry, controller.Options{
		AuthURL:        cfg.AuthURL,
		LogoutURL:      cfg.LogoutURL,
		SessionCookies: cfg.SessionCookies,
		SecureCookies:  cfg.AppEnv == "prod",
	})
	weatherController.RegisterRoutes(mux)
	return registry
}
