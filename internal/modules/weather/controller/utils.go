package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"weatherportal-web/internal/modules/weather/dataview"
	"weatherportal-web/internal/modules/weather/views"
	"weatherportal-web/internal/utils"
)

const viewCookieName = "wp_view"

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends the browser to url. htmx requests get an HX-Redirect header
// so the whole page navigates instead of a fragment swap.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func readViewCookie(r *http.Request) string {
	cookie, err := r.Cookie(viewCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c *weatherControllerImpl) writeViewCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     viewCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *weatherControllerImpl) clearViewCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     viewCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// panelFromSnapshot maps a settled view onto the panel view model.
// Redirecting has no panel; callers handle it before rendering.
func panelFromSnapshot(snap dataview.Snapshot) views.PanelData {
	switch snap.State {
	case dataview.StateReady:
		return views.PanelData{State: views.PanelReady, Cards: views.NewCards(snap.Readings)}
	case dataview.StateError:
		return views.PanelData{State: views.PanelError, Message: snap.Message}
	case dataview.StateUnavailable:
		return views.PanelData{State: views.PanelUnavailable, Message: snap.Message}
	default:
		return views.PanelData{State: views.PanelLoading}
	}
}

func renderPanel(w http.ResponseWriter, data views.PanelData) {
	var buf bytes.Buffer
	if err := views.RenderPanelPartial(&buf, &data); err != nil {
		slog.Error("panel partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}
