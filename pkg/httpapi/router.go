// Package httpapi is the REST backend polled by the staff dashboards and the
// guest-facing frontend. Handlers are thin: decode, delegate, encode.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/service/knowledge"
	"github.com/ilora-retreats/concierge/pkg/service/session"
	"github.com/ilora-retreats/concierge/pkg/store"
	"github.com/ilora-retreats/concierge/pkg/usecase/concierge"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
)

// Asker answers one guest message. Implemented by the concierge bot;
// narrowed to an interface so handler tests can stub it.
type Asker interface {
	Ask(ctx context.Context, query, sessionKey string) string
}

const defaultTicketLimit = 50

// Dependencies wires the router to the rest of the process. Bookings may be
// nil when the deployment runs without the bookings database.
type Dependencies struct {
	Bot      Asker
	Cache    *knowledge.Cache
	Tickets  concierge.TicketSink
	Sessions session.Store
	Bookings *store.Store
}

type router struct {
	deps Dependencies
}

// NewRouter builds the HTTP handler for all concierge endpoints.
func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/api/v1/ask", rt.handleAsk)
	mux.HandleFunc("/api/v1/menu", rt.handleMenu)
	mux.HandleFunc("/api/v1/tickets", rt.handleTickets)
	mux.HandleFunc("/api/v1/sessions/latest", rt.handleLatestSession)
	mux.HandleFunc("/api/v1/rooms", rt.handleRooms)
	return mux
}

func (r *router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Query      string `json:"query"`
	SessionKey string `json:"session_key"`
}

func (r *router) handleAsk(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var payload askRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	reply := r.deps.Bot.Ask(req.Context(), payload.Query, payload.SessionKey)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (r *router) handleMenu(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.deps.Cache.Refresh(req.Context(), false); err != nil {
		logging.From(req.Context()).Warn("menu refresh failed", "error", err)
	}

	menu := r.deps.Cache.Snapshot().Menu
	items := make([]map[string]any, 0, len(menu))
	for _, item := range menu {
		items = append(items, map[string]any{
			"item_id":       item.ID,
			"type":          item.Type,
			"item":          item.Name,
			"price":         item.Price,
			"description":   item.Description,
			"complimentary": item.Complimentary(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleTickets(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := defaultTicketLimit
	if raw := strings.TrimSpace(req.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := r.deps.Tickets.Recent(req.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "ticket store unavailable"})
		return
	}

	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, ticketToMap(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleLatestSession(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sess, err := r.deps.Sessions.Latest(req.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSessions) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sessions"})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "session store unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":        sess.Key,
		"normalized": sess.Normalized,
		"last_login": sess.LastLogin,
	})
}

func (r *router) handleRooms(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Bookings == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "bookings store not configured"})
		return
	}

	rooms, err := r.deps.Bookings.ListRooms(req.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "bookings store unavailable"})
		return
	}

	items := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		items = append(items, map[string]any{
			"room_no":    room.RoomNo,
			"room_type":  room.RoomType,
			"night_rate": room.NightRate,
			"available":  room.Available,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func ticketToMap(rec model.TicketRecord) map[string]any {
	m := map[string]any{
		"ticket_id":   rec.ID,
		"email":       rec.Email,
		"name":        rec.Name,
		"room_no":     rec.RoomNo,
		"request":     rec.Request,
		"category":    rec.Category,
		"assigned_to": rec.AssignedTo,
		"status":      rec.Status,
		"created_at":  rec.CreatedAt,
		"notes":       rec.Notes,
	}
	if rec.ResolvedAt != nil {
		m["resolved_at"] = *rec.ResolvedAt
	}
	return m
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
