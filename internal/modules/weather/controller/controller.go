package controller

import (
	"net/http"
	"time"

	"weatherportal-web/internal/modules/weather/dataview"
)

// Options carries the deployment-specific URLs and cookie settings.
type Options struct {
	AuthURL   string
	LogoutURL string
	// SessionCookies names the cookies forwarded to the backend; empty forwards all.
	SessionCookies []string
	SecureCookies  bool
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	registry *dataview.Registry
	opts     Options
	now      func() time.Time
}

func NewWeatherController(registry *dataview.Registry, opts Options) WeatherController {
	return &weatherControllerImpl{registry: registry, opts: opts, now: time.Now}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleRoot)
	mux.HandleFunc("GET /weather", c.handlePage)
	mux.HandleFunc("GET /weather/panel", c.handlePanel)
	mux.HandleFunc("POST /weather/refresh", c.handleRefresh)
	mux.HandleFunc("POST /weather/cities", c.handleAddCity)
	mux.HandleFunc("POST /weather/cities/{index}/remove", c.handleRemoveCity)
	mux.HandleFunc("GET /logout", c.handleLogout)
}
