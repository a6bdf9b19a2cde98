package dashboard

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	conversationsvc "github.com/voxlab/callbot/internal/service/conversation"
	"github.com/voxlab/callbot/internal/twilio"
	"github.com/voxlab/callbot/pkg/utils"
)

const serviceVersion = "1.0.0"

// CallAPI abstracts the Twilio REST client for monitoring endpoints.
type CallAPI interface {
	ListCalls(ctx context.Context, limit int) ([]twilio.Call, error)
	CompleteCall(ctx context.Context, callSID string) (*twilio.Call, error)
}

// Handler serves the admin/monitoring API backing the dashboard.
type Handler struct {
	store     *conversationsvc.Store
	calls     CallAPI
	startedAt time.Time
}

// New creates the dashboard handler. calls may be nil when Twilio REST
// credentials are not configured; the call-log endpoints then report 503.
func New(store *conversationsvc.Store, calls CallAPI) *Handler {
	return &Handler{
		store:     store,
		calls:     calls,
		startedAt: time.Now().UTC(),
	}
}

// RegisterRoutes registers the dashboard API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Get("/calls", h.handleListCalls)
	r.Delete("/calls/{callSID}", h.handleCompleteCall)
	r.Get("/conversations", h.handleListConversations)
	r.Get("/conversations/search", h.handleSearchConversations)
	r.Get("/conversations/{callSID}", h.handleGetConversation)
	r.Get("/conversations/{callSID}/stats", h.handleConversationStats)
	r.Get("/conversations/{callSID}/stream", h.handleStreamConversation)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"service":        "callbot",
		"version":        serviceVersion,
		"activeSessions": h.store.Len(),
		"uptimeSeconds":  int(time.Since(h.startedAt).Seconds()),
	})
}

func (h *Handler) handleListCalls(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "twilio api not configured")
		return
	}

	calls, err := h.calls.ListCalls(r.Context(), parseLimit(r, 10))
	if err != nil {
		log.Printf("[dashboard] failed to fetch calls: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch calls")
		return
	}
	utils.RespondJSON(w, http.StatusOK, calls)
}

func (h *Handler) handleCompleteCall(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "twilio api not configured")
		return
	}

	callSID := chi.URLParam(r, "callSID")
	call, err := h.calls.CompleteCall(r.Context(), callSID)
	if err != nil {
		log.Printf("[dashboard] failed to complete call %s: %v", callSID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to complete call")
		return
	}

	h.store.End(r.Context(), callSID)
	utils.RespondJSON(w, http.StatusOK, call)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List(r.Context(), parseLimit(r, 50)))
}

func (h *Handler) handleSearchConversations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.store.Search(r.Context(), query, parseLimit(r, 20)))
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	callSID := chi.URLParam(r, "callSID")

	sess, err := h.store.Get(r.Context(), callSID)
	if err != nil {
		if errors.Is(err, conversationsvc.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleConversationStats(w http.ResponseWriter, r *http.Request) {
	callSID := chi.URLParam(r, "callSID")

	stats, err := h.store.Stats(r.Context(), callSID)
	if err != nil {
		if errors.Is(err, conversationsvc.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation stats")
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

// handleStreamConversation pushes transcript growth over SSE until the
// client disconnects or the session ends.
func (h *Handler) handleStreamConversation(w http.ResponseWriter, r *http.Request) {
	callSID := chi.URLParam(r, "callSID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, err := h.store.Get(r.Context(), callSID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	utils.SetupSSEHeaders(w)
	log.Printf("[dashboard] opening transcript stream for call=%s", callSID)

	utils.SendSSEChunk(w, flusher, map[string]any{
		"event":   "status",
		"message": "stream established",
		"callSid": callSID,
	})

	ctx := r.Context()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sent := 0
	sent = h.pushNewTurns(ctx, w, flusher, callSID, sent)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[dashboard] closing transcript stream for call=%s", callSID)
			return
		case <-ticker.C:
			transcript, err := h.store.Transcript(ctx, callSID)
			// A transcript shorter than what was already streamed means the
			// call id was ended and reused for a new session.
			if err != nil || len(transcript) < sent {
				utils.SendSSEEvent(w, flusher, "end", map[string]string{"callSid": callSID})
				return
			}
			for _, turn := range transcript[sent:] {
				utils.SendSSEEvent(w, flusher, "turn", turn)
			}
			sent = len(transcript)
		}
	}
}

func (h *Handler) pushNewTurns(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, callSID string, sent int) int {
	transcript, err := h.store.Transcript(ctx, callSID)
	if err != nil {
		return sent
	}
	if sent > len(transcript) {
		sent = len(transcript)
	}
	for _, turn := range transcript[sent:] {
		utils.SendSSEEvent(w, flusher, "turn", turn)
	}
	return len(transcript)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
