package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/route"
	"github.com/yegors/airship-atc/internal/simulation"
	"github.com/yegors/airship-atc/internal/storage/sqlite"
	"github.com/yegors/airship-atc/pkg/logger"
)

// Simulation is the part of the simulation service the API drives
type Simulation interface {
	RunID() string
	Time() float64
	Snapshot() []simulation.AirshipState
	Get(id string) (simulation.AirshipState, error)
	AddAirship(routeID int, pos physics.Vec3) (string, error)
	RemoveAirship(id string) error
	SetObserver(pos physics.Vec2)
}

// EventHistory reads stored mode changes and docks
type EventHistory interface {
	GetModeHistory(runID, airshipID string, limit int) ([]*sqlite.ModeChangeRecord, error)
	GetDockHistory(runID, airshipID string, limit int) ([]*sqlite.DockEventRecord, error)
	CountDocks(runID, site string) (int, error)
}

// ChatHistory reads stored chat lines
type ChatHistory interface {
	GetChatLines(runID, airshipID string, limit, offset int) ([]*sqlite.ChatRecord, error)
	GetRecentChat(runID string, limit int) ([]*sqlite.ChatRecord, error)
}

// Handler contains the API handlers
type Handler struct {
	sim      Simulation
	routes   *route.Network
	events   EventHistory
	chat     ChatHistory
	override *avoidance.SharedOverride
	started  time.Time
	logger   *logger.Logger
}

// NewHandler creates a new API handler. events and chat may be nil when
// storage is disabled.
func NewHandler(sim Simulation, routes *route.Network, events EventHistory, chat ChatHistory, override *avoidance.SharedOverride, log *logger.Logger) *Handler {
	return &Handler{
		sim:      sim,
		routes:   routes,
		events:   events,
		chat:     chat,
		override: override,
		started:  time.Now(),
		logger:   log.Named("api-handler"),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"run_id":         h.sim.RunID(),
		"sim_time":       h.sim.Time(),
		"airship_count":  len(h.sim.Snapshot()),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// GetAllAirships returns every airship, optionally filtered by ?route=
func (h *Handler) GetAllAirships(w http.ResponseWriter, r *http.Request) {
	airships := h.sim.Snapshot()

	if v := r.URL.Query().Get("route"); v != "" {
		routeID, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid route id")
			return
		}
		filtered := make([]simulation.AirshipState, 0, len(airships))
		for _, a := range airships {
			if a.RouteID == routeID {
				filtered = append(filtered, a)
			}
		}
		airships = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"sim_time": h.sim.Time(),
		"count":    len(airships),
		"airships": airships,
	})
}

// GetAirship returns one airship
func (h *Handler) GetAirship(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	airship, err := h.sim.Get(id)
	if err != nil {
		h.notFoundOr500(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, airship)
}

type createAirshipRequest struct {
	RouteID  int          `json:"route_id"`
	Position physics.Vec3 `json:"position"`
}

// CreateAirship adds an airship at a position on a route
func (h *Handler) CreateAirship(w http.ResponseWriter, r *http.Request) {
	var req createAirshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.sim.AddAirship(req.RouteID, req.Position)
	if err != nil {
		if errors.Is(err, route.ErrUnknownRoute) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to add airship", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to add airship")
		return
	}

	h.logger.Info("Airship created via API", logger.String("airship", id), logger.Int("route", req.RouteID))
	airship, err := h.sim.Get(id)
	if err != nil {
		WriteJSON(w, http.StatusCreated, map[string]any{"id": id})
		return
	}
	WriteJSON(w, http.StatusCreated, airship)
}

// RemoveAirship takes an airship out of the simulation
func (h *Handler) RemoveAirship(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sim.RemoveAirship(id); err != nil {
		h.notFoundOr500(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetModeHistory returns the stored mode changes of an airship
func (h *Handler) GetModeHistory(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		WriteError(w, http.StatusServiceUnavailable, "Event storage disabled")
		return
	}
	id := chi.URLParam(r, "id")
	records, err := h.events.GetModeHistory(h.sim.RunID(), id, parseLimit(r))
	if err != nil {
		h.logger.Error("Failed to get mode history", logger.Error(err), logger.String("airship", id))
		WriteError(w, http.StatusInternalServerError, "Failed to get mode history")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"airship_id": id,
		"count":      len(records),
		"modes":      nonNil(records),
	})
}

// GetDockHistory returns the stored docks of an airship
func (h *Handler) GetDockHistory(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		WriteError(w, http.StatusServiceUnavailable, "Event storage disabled")
		return
	}
	id := chi.URLParam(r, "id")
	records, err := h.events.GetDockHistory(h.sim.RunID(), id, parseLimit(r))
	if err != nil {
		h.logger.Error("Failed to get dock history", logger.Error(err), logger.String("airship", id))
		WriteError(w, http.StatusInternalServerError, "Failed to get dock history")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"airship_id": id,
		"count":      len(records),
		"docks":      nonNil(records),
	})
}

// GetChat returns the chat lines of an airship, newest first
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		WriteError(w, http.StatusServiceUnavailable, "Chat storage disabled")
		return
	}
	id := chi.URLParam(r, "id")

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	records, err := h.chat.GetChatLines(h.sim.RunID(), id, parseLimit(r), offset)
	if err != nil {
		h.logger.Error("Failed to get chat lines", logger.Error(err), logger.String("airship", id))
		WriteError(w, http.StatusInternalServerError, "Failed to get chat lines")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"airship_id": id,
		"count":      len(records),
		"chat":       nonNil(records),
	})
}

// GetRecentChat returns the latest chat lines of all airships
func (h *Handler) GetRecentChat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		WriteError(w, http.StatusServiceUnavailable, "Chat storage disabled")
		return
	}
	limit := parseLimit(r)
	if limit == 0 {
		limit = defaultRecentChat
	}
	records, err := h.chat.GetRecentChat(h.sim.RunID(), limit)
	if err != nil {
		h.logger.Error("Failed to get recent chat", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "Failed to get recent chat")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"count": len(records),
		"chat":  nonNil(records),
	})
}

// GetSite returns the dock count of a site in the current run
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		WriteError(w, http.StatusServiceUnavailable, "Event storage disabled")
		return
	}
	site := chi.URLParam(r, "site")
	if !h.knownSite(site) {
		WriteError(w, http.StatusNotFound, "Site not found")
		return
	}
	n, err := h.events.CountDocks(h.sim.RunID(), site)
	if err != nil {
		h.logger.Error("Failed to count docks", logger.Error(err), logger.String("site", site))
		WriteError(w, http.StatusInternalServerError, "Failed to count docks")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"site": site, "docks": n})
}

func (h *Handler) knownSite(site string) bool {
	for _, rt := range h.routes.Routes() {
		for _, leg := range rt.Legs {
			if leg.SiteName == site {
				return true
			}
		}
	}
	return false
}

// GetRoutes returns every route with its derived approach geometry
func (h *Handler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	routes := h.routes.Routes()
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":            len(routes),
		"docking_duration": h.routes.DockingDuration(),
		"routes":           routes,
	})
}

const defaultRecentChat = 50

type speedOverrideRequest struct {
	Factor float32 `json:"factor"`
}

// GetSpeedOverride returns the runtime cruise speed override
func (h *Handler) GetSpeedOverride(w http.ResponseWriter, r *http.Request) {
	v, ok := h.override.Get()
	resp := map[string]any{"active": ok}
	if ok {
		resp["factor"] = v
	}
	WriteJSON(w, http.StatusOK, resp)
}

// SetSpeedOverride sets the runtime cruise speed override
func (h *Handler) SetSpeedOverride(w http.ResponseWriter, r *http.Request) {
	var req speedOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Factor <= 0 || req.Factor > 2 {
		WriteError(w, http.StatusBadRequest, "factor must be in (0, 2]")
		return
	}

	h.override.Set(req.Factor)
	h.logger.Info("Speed override set", logger.Float32("factor", req.Factor))
	WriteJSON(w, http.StatusOK, map[string]any{"active": true, "factor": req.Factor})
}

// ClearSpeedOverride removes the runtime cruise speed override
func (h *Handler) ClearSpeedOverride(w http.ResponseWriter, r *http.Request) {
	h.override.Clear()
	h.logger.Info("Speed override cleared")
	WriteJSON(w, http.StatusOK, map[string]any{"active": false})
}

// SetObserver moves the point around which airships are fully simulated
func (h *Handler) SetObserver(w http.ResponseWriter, r *http.Request) {
	var pos physics.Vec2
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.sim.SetObserver(pos)
	WriteJSON(w, http.StatusOK, pos)
}

func (h *Handler) notFoundOr500(w http.ResponseWriter, err error) {
	if errors.Is(err, simulation.ErrAirshipNotFound) {
		WriteError(w, http.StatusNotFound, "Airship not found")
		return
	}
	h.logger.Error("Airship request failed", logger.Error(err))
	WriteError(w, http.StatusInternalServerError, "Internal Server Error")
}

// parseLimit reads ?limit=; 0 lets storage apply its own maximum
func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error body
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
