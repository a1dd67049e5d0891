package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"weatherportal-web/internal/modules/weather/dataview"
	"weatherportal-web/internal/modules/weather/repository"
	"weatherportal-web/internal/modules/weather/views"
	"weatherportal-web/internal/utils"
)

// handleRoot hands the visitor straight to the login flow. The body is a
// fallback for clients that do not follow the redirect.
func (c *weatherControllerImpl) handleRoot(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := views.RenderRedirect(&buf, &views.RedirectData{AuthURL: c.opts.AuthURL}); err != nil {
		slog.Error("redirect template render failed", "error", err)
		http.Redirect(w, r, c.opts.AuthURL, http.StatusFound)
		return
	}
	w.Header().Set("Location", c.opts.AuthURL)
	utils.WriteHTML(w, http.StatusFound, buf.Bytes())
}

// handlePage mounts a fresh data view. Any view the browser held before is
// discarded, so nothing survives navigation.
func (c *weatherControllerImpl) handlePage(w http.ResponseWriter, r *http.Request) {
	if old := readViewCookie(r); old != "" {
		c.registry.Delete(old)
	}
	v, _ := c.registry.GetOrCreate("")
	c.writeViewCookie(w, v.ID())

	data := views.WeatherPageData{Now: c.now(), Panel: panelFromSnapshot(v.Snapshot())}
	var buf bytes.Buffer
	if err := views.RenderWeatherPage(&buf, &data); err != nil {
		slog.Error("weather page render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *weatherControllerImpl) handlePanel(w http.ResponseWriter, r *http.Request) {
	v, ok := c.lookupView(w, r)
	if !ok {
		return
	}
	snap := v.Fetch(r.Context(), c.credential(r))
	c.writeSnapshot(w, r, snap)
}

func (c *weatherControllerImpl) handleRefresh(w http.ResponseWriter, r *http.Request) {
	v, ok := c.lookupView(w, r)
	if !ok {
		return
	}
	snap := v.Refresh(r.Context(), c.credential(r))
	c.writeSnapshot(w, r, snap)
}

func (c *weatherControllerImpl) handleRemoveCity(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid city index")
		return
	}
	v, ok := c.lookupView(w, r)
	if !ok {
		return
	}

	snap, err := v.RemoveCity(index)
	switch {
	case errors.Is(err, dataview.ErrIndexOutOfRange):
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, dataview.ErrNotReady):
		utils.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	renderPanel(w, panelFromSnapshot(snap))
}

func (c *weatherControllerImpl) handleAddCity(w http.ResponseWriter, r *http.Request) {
	v, ok := c.lookupView(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if err := v.AddCity(r.PostFormValue("city")); err != nil {
		if errors.Is(err, dataview.ErrAddCityUnsupported) {
			utils.WriteError(w, http.StatusNotImplemented, err.Error())
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout drops local view state and hands over to the backend logout.
func (c *weatherControllerImpl) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := readViewCookie(r); id != "" {
		c.registry.Delete(id)
	}
	c.clearViewCookie(w)
	redirect(w, r, c.opts.LogoutURL)
}

// lookupView resolves the view named by the request cookie. When it is gone
// (expired or never mounted) the browser is sent back to remount the page.
func (c *weatherControllerImpl) lookupView(w http.ResponseWriter, r *http.Request) (*dataview.View, bool) {
	id := readViewCookie(r)
	v, ok := c.registry.Get(id)
	if !ok {
		slog.Info("view not found, remounting", "view_id", id, "path", r.URL.Path)
		redirect(w, r, "/weather")
		return nil, false
	}
	return v, true
}

func (c *weatherControllerImpl) credential(r *http.Request) repository.Credential {
	return repository.CredentialFromRequest(r, c.opts.SessionCookies, viewCookieName)
}

// writeSnapshot renders a settled view. A view that ended in Redirecting is
// finished: it is forgotten and the browser leaves for the login flow.
func (c *weatherControllerImpl) writeSnapshot(w http.ResponseWriter, r *http.Request, snap dataview.Snapshot) {
	if snap.State == dataview.StateRedirecting {
		c.registry.Delete(snap.ViewID)
		c.clearViewCookie(w)
		redirect(w, r, snap.RedirectURL)
		return
	}
	renderPanel(w, panelFromSnapshot(snap))
}
