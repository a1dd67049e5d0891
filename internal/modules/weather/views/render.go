package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"time"

	"weatherportal-web/internal/modules/weather/types"
)

//go:embed templates
var viewsFS embed.FS

var pageTmpl *template.Template

var errNotLoaded = errors.New("weather templates not loaded: call views.LoadTemplates during startup")

// loadTemplatesFromFS loads page and partial templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("weather").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	pageTmpl = tmpl
	return nil
}

// LoadTemplates loads embedded templates. Call during startup before serving
// requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// RedirectData is the view model for the login hand-off page.
type RedirectData struct {
	AuthURL string
}

// RenderRedirect writes the "redirecting to authentication" page shown while
// the browser follows the redirect.
func RenderRedirect(w io.Writer, data *RedirectData) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, "redirect.html", data)
}

// Panel states, as rendered by partials/panel.html.
const (
	PanelLoading     = "loading"
	PanelReady       = "ready"
	PanelError       = "error"
	PanelUnavailable = "unavailable"
)

// Card is one rendered weather reading.
type Card struct {
	Index       int
	Name        string
	Description string
	Icon        string
	Color       string
	TempLabel   string
}

// PanelData is the view model for the swappable data panel.
type PanelData struct {
	State   string
	Message string
	Cards   []Card
}

// WeatherPageData is the view model for the full data view.
type WeatherPageData struct {
	Now   time.Time
	Panel PanelData
}

func RenderWeatherPage(w io.Writer, data *WeatherPageData) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, "weather.html", data)
}

// RenderPanelPartial executes only the panel partial into w.
// Use for htmx fragment swaps (initial load, refresh, remove).
func RenderPanelPartial(w io.Writer, data *PanelData) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, "partials/panel.html", data)
}

// NewCards derives the card view models from readings, keeping their order.
func NewCards(readings []types.WeatherReading) []Card {
	cards := make([]Card, 0, len(readings))
	for i, r := range readings {
		cards = append(cards, Card{
			Index:       i,
			Name:        r.Name,
			Description: r.Description,
			Icon:        WeatherIcon(r.Description),
			Color:       CardColor(i),
			TempLabel:   FormatTemp(r.Temp),
		})
	}
	return cards
}
