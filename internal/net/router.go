package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rockfall/arena/internal/lobby"
	"github.com/rockfall/arena/internal/result"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
)

// Results reads the persisted game log.
type Results interface {
	Leaderboard(ctx context.Context, limit int) ([]result.Standing, error)
	Recent(ctx context.Context, limit int) ([]result.Record, error)
	ByRoom(ctx context.Context, roomID int64) ([]result.Record, error)
}

// API serves the operator HTTP endpoints next to the websocket.
type API struct {
	roster        *lobby.Roster
	rooms         *world.Manager
	authoritative *Authoritative
	relay         *Relay
	hub           *Hub
	results       Results
	countdown     time.Duration
	now           func() time.Time
	log           *zap.Logger
}

func NewAPI(roster *lobby.Roster, rooms *world.Manager, a *Authoritative, relay *Relay, hub *Hub, results Results, countdown time.Duration, log *zap.Logger) *API {
	return &API{
		roster:        roster,
		rooms:         rooms,
		authoritative: a,
		relay:         relay,
		hub:           hub,
		results:       results,
		countdown:     countdown,
		now:           time.Now,
		log:           log,
	}
}

// NewRouter mounts the websocket handler at /ws and the API under /api.
func NewRouter(ws http.Handler, api *API, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", api.health)
	r.Handle("/ws", ws)
	r.Route("/api", func(sub chi.Router) {
		sub.Get("/rooms", api.listRooms)
		sub.Post("/rooms", api.createRoom)
		sub.Get("/rooms/{id}", api.getRoom)
		sub.Post("/rooms/{id}/start", api.startRoom)
		sub.Get("/rooms/{id}/results", api.roomResults)
		sub.Get("/results", api.recentResults)
		sub.Get("/leaderboard", api.leaderboard)
	})
	return r
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

type roomRequest struct {
	RoomID       int64    `json:"roomId"`
	MapName      string   `json:"mapName"`
	WinMode      string   `json:"winMode"`
	MaxPlayers   int      `json:"maxPlayers"`
	Architecture string   `json:"architecture"`
	Players      []string `json:"players"`
}

type roomView struct {
	RoomID       int64    `json:"roomId"`
	MapName      string   `json:"mapName"`
	WinMode      string   `json:"winMode"`
	MaxPlayers   int      `json:"maxPlayers"`
	Architecture string   `json:"architecture"`
	Players      []string `json:"players"`
	Started      bool     `json:"started"`
	Active       bool     `json:"active"`
}

func (a *API) view(s lobby.RoomSpec) roomView {
	_, active := a.rooms.Get(s.RoomID)
	return roomView{
		RoomID:       s.RoomID,
		MapName:      s.MapName,
		WinMode:      s.WinMode,
		MaxPlayers:   s.MaxPlayers,
		Architecture: s.ArchCode(),
		Players:      s.Players,
		Started:      s.Started,
		Active:       active,
	}
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       a.rooms.Count(),
		"relayRooms":  a.relay.Count(),
		"connections": a.hub.Count(),
	})
}

func (a *API) listRooms(w http.ResponseWriter, _ *http.Request) {
	specs := a.roster.Rooms()
	out := make([]roomView, 0, len(specs))
	for _, s := range specs {
		out = append(out, a.view(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	arch, err := world.ParseArchitecture(req.Architecture)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	spec := lobby.RoomSpec{
		RoomID:       req.RoomID,
		MapName:      req.MapName,
		WinMode:      req.WinMode,
		MaxPlayers:   req.MaxPlayers,
		Architecture: arch,
		Players:      req.Players,
	}
	if err := a.roster.Register(spec); err != nil {
		switch {
		case errors.Is(err, lobby.ErrAlreadyStarted):
			errorJSON(w, http.StatusConflict, err.Error())
		default:
			errorJSON(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	saved, _ := a.roster.Spec(req.RoomID)
	writeJSON(w, http.StatusCreated, a.view(saved))
}

func roomID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (a *API) getRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid room id")
		return
	}
	spec, ok := a.roster.Spec(id)
	if !ok {
		errorJSON(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, a.view(spec))
}

// startRoom marks the room started. Authoritative rooms get their World
// now, with the roster seated and the countdown running.
func (a *API) startRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid room id")
		return
	}
	spec, err := a.roster.MarkStarted(id)
	switch {
	case errors.Is(err, lobby.ErrUnknownRoom):
		errorJSON(w, http.StatusNotFound, "room not found")
		return
	case errors.Is(err, lobby.ErrAlreadyStarted):
		errorJSON(w, http.StatusConflict, "room already started")
		return
	case err != nil:
		errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	startAt := a.now().Add(a.countdown)
	if spec.Architecture == world.ArchAuthoritative {
		if err := a.authoritative.Start(spec, startAt); err != nil {
			a.roster.ResetRoomAfterGame(id)
			if errors.Is(err, ErrRoomActive) {
				errorJSON(w, http.StatusConflict, "room already started")
				return
			}
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	a.log.Info("room start requested", zap.Int64("room", id), zap.String("arch", spec.ArchCode()))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"roomId":  id,
		"startAt": startAt.UnixMilli(),
	})
}

// queryLimit reads ?limit=, 1..100, defaulting to 10.
func queryLimit(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 10, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil && n > 0 && n <= 100
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	if a.results == nil {
		errorJSON(w, http.StatusServiceUnavailable, "result storage disabled")
		return
	}
	limit, ok := queryLimit(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "limit must be 1..100")
		return
	}
	rows, err := a.results.Leaderboard(r.Context(), limit)
	if err != nil {
		a.log.Error("leaderboard query failed", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) recentResults(w http.ResponseWriter, r *http.Request) {
	if a.results == nil {
		errorJSON(w, http.StatusServiceUnavailable, "result storage disabled")
		return
	}
	limit, ok := queryLimit(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "limit must be 1..100")
		return
	}
	recs, err := a.results.Recent(r.Context(), limit)
	if err != nil {
		a.log.Error("recent results query failed", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "results unavailable")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func (a *API) roomResults(w http.ResponseWriter, r *http.Request) {
	id, ok := roomID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if a.results == nil {
		errorJSON(w, http.StatusServiceUnavailable, "result storage disabled")
		return
	}
	recs, err := a.results.ByRoom(r.Context(), id)
	if err != nil {
		a.log.Error("room results query failed", zap.Int64("room", id), zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "results unavailable")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func nonNil(recs []result.Record) []result.Record {
	if recs == nil {
		return []result.Record{}
	}
	return recs
}
