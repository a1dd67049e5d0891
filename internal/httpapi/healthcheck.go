package httpapi

import (
	"net/http"

	"weatherportal-web/internal/utils"
)

// ViewCounter reports how many data views are live.
type ViewCounter interface {
	Len() int
}

// BrokerStatus reports the message broker connection; nil when disabled.
type BrokerStatus interface {
	IsConnected() bool
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	views  ViewCounter
	broker BrokerStatus
}

func NewHealthchecker(views ViewCounter, broker BrokerStatus) healthchecker {
	return &healthcheckerImpl{views: views, broker: broker}
}

// handleHealthz reports liveness. The broker is optional, so its state is
// informational and never fails the check.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	mqtt := "disabled"
	if h.broker != nil {
		mqtt = "disconnected"
		if h.broker.IsConnected() {
			mqtt = "connected"
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"views":  h.views.Len(),
		"mqtt":   mqtt,
	})
}

// RegisterHealthcheck adds GET /healthz to mux.
func RegisterHealthcheck(mux *http.ServeMux, views ViewCounter, broker BrokerStatus) {
	healthchecker := NewHealthchecker(views, broker)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
