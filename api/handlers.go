/*
handlers.go - HTTP API handlers for the slot reservation engine

PURPOSE:
  Exposes the reservation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login        Sign in (any non-empty credentials)
    POST   /api/auth/logout       Revoke the current session

  Slots:
    GET    /api/slots             List all slots (viewer-aware when
                                  authenticated)
    GET    /api/slots/mine        Slots held by the caller
    GET    /api/slots/{id}        One slot
    POST   /api/slots/{id}/toggle Book or release

  History / stats:
    GET    /api/history?limit=n   Booking history, newest first
    GET    /api/stats             Dashboard numbers (admin only)

  Live updates:
    GET    /api/ws                WebSocket snapshot stream (ws.go)

ERROR HANDLING:
  Domain errors map onto HTTP status codes:
  - 401: Unauthenticated (missing/invalid/revoked session)
  - 404: Slot not found
  - 409: Occupied by another user
  - 403: Admin endpoint without the admin flag
  - 503: Store temporarily unavailable
  Every failure body carries the specific, user-facing message.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ws.go: WebSocket snapshot push
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/parking-engine/auth"
	"github.com/warp/parking-engine/parking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *parking.Engine
	Bus      *parking.Bus
	Identity *auth.Provider
	Stats    *parking.StatsCollector
}

// NewHandler creates a handler over the engine and its collaborators.
func NewHandler(engine *parking.Engine, bus *parking.Bus, identity *auth.Provider, stats *parking.StatsCollector) *Handler {
	return &Handler{Engine: engine, Bus: bus, Identity: identity, Stats: stats}
}

// =============================================================================
// IDENTITY MIDDLEWARE
// =============================================================================

type ctxKey int

const identityKey ctxKey = 0

// identityFrom returns the request identity, zero when anonymous.
func identityFrom(r *http.Request) parking.Identity {
	id, _ := r.Context().Value(identityKey).(parking.Identity)
	return id
}

// WithIdentity resolves an optional bearer token into the request
// context. Requests without a token pass through anonymous; individual
// handlers decide whether that is acceptable.
func (h *Handler) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.Identity.FromToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired session", err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login signs a user in. Any non-empty username/vehicle pair is
// accepted; there is no credential verification by design.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, token, err := h.Identity.SignIn(req.Username, req.VehicleNumber)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toIdentityDTO(id)})
}

// Logout revokes the caller's session. Idempotent.
// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.Identity.SignOut(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SLOT HANDLERS
// =============================================================================

// ListSlots returns all slots ascending by number. When the caller is
// authenticated the per-viewer fields (actionText, canInteract) are
// filled in.
// GET /api/slots
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Engine.Slots(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(slots, identityFrom(r)))
}

// GetSlot returns a single slot.
// GET /api/slots/{id}
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	id := parking.SlotID(chi.URLParam(r, "id"))
	slot, err := h.Engine.Slot(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTO(slot, identityFrom(r)))
}

// MySlots returns the slots the caller currently occupies.
// GET /api/slots/mine
func (h *Handler) MySlots(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if id.IsZero() {
		writeDomainError(w, parking.ErrUnauthenticated)
		return
	}
	slots, err := h.Engine.Slots(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(parking.UserSlots(slots, id), id))
}

// ToggleSlot books an available slot or releases the caller's own slot.
// POST /api/slots/{id}/toggle
func (h *Handler) ToggleSlot(w http.ResponseWriter, r *http.Request) {
	id := parking.SlotID(chi.URLParam(r, "id"))
	result, err := h.Engine.ToggleBooking(r.Context(), id, identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Action:  string(result.Action),
		Message: result.Message,
		Slot:    toSlotDTO(result.Slot, identityFrom(r)),
	})
}

// =============================================================================
// HISTORY / STATS HANDLERS
// =============================================================================

// GetHistory returns booking history newest-first. ?limit=n caps the
// result for recent-activity views.
// GET /api/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}
	records, err := h.Engine.History(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(records))
}

// GetStats returns the derived dashboard numbers. Admin only.
// GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if id.IsZero() {
		writeDomainError(w, parking.ErrUnauthenticated)
		return
	}
	if !id.IsAdmin {
		writeError(w, http.StatusForbidden, "Admin access required", nil)
		return
	}
	stats, err := h.Stats.Collect(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the engine's error taxonomy to HTTP statuses,
// keeping the specific user-facing message intact.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, parking.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "User not authenticated", nil)
	case errors.Is(err, parking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "Slot not found", err)
	case errors.Is(err, parking.ErrOccupiedByOther), errors.Is(err, parking.ErrNotOccupant):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, parking.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, "Request cancelled", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
