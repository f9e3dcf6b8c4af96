package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"realm-server/internal/shared/errors"
	"realm-server/internal/shared/response"
	"realm-server/internal/zone"
)

type ZoneLister interface {
	Statuses() []zone.Status
}

type PlayerCounter interface {
	CountPlayers(ctx context.Context) (int, error)
}

type ZonesResponse struct {
	Zones             []zone.Status `json:"zones"`
	Sessions          int           `json:"sessions"`
	RegisteredPlayers int           `json:"registered_players"`
}

type ZonesHandler struct {
	zones   ZoneLister
	players PlayerCounter
}

// NewZonesHandler takes a nil players when no player count is available.
func NewZonesHandler(zones ZoneLister, players PlayerCounter) *ZonesHandler {
	return &ZonesHandler{zones: zones, players: players}
}

func (h *ZonesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "zones")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	statuses := h.zones.Statuses()
	resp := ZonesResponse{Zones: statuses}
	for _, s := range statuses {
		resp.Sessions += s.Sessions
	}

	if h.players != nil {
		count, err := h.players.CountPlayers(r.Context())
		if err != nil {
			logger.Warn("Failed to get player count", "error", err)
		}
		resp.RegisteredPlayers = count
	}

	logger.Debug("Zones listed", "zones", len(statuses), "sessions", resp.Sessions)
	response.Success(w, http.StatusOK, resp)
}
