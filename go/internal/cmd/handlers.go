package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/clients"
	"github.com/huanshanxiaoyao/governor-game/go/internal/gamesync"
	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
	"github.com/huanshanxiaoyao/governor-game/go/internal/negotiation"
	"github.com/huanshanxiaoyao/governor-game/go/internal/turn"
)

// apiHandler exposes the client core to the browser view as JSON endpoints.
type apiHandler struct {
	services *Services
}

type sendRequest struct {
	Content     string             `json:"content"`
	SpeakerRole models.SpeakerRole `json:"speaker_role"`
}

type sendResponse struct {
	*models.ChatResponse
	RoundDisplay string `json:"round_display"`
	State        string `json:"state"`
}

type sessionResponse struct {
	Active       bool                        `json:"active"`
	Session      *models.NegotiationSession  `json:"session,omitempty"`
	Messages     []models.NegotiationMessage `json:"messages,omitempty"`
	RoundDisplay string                      `json:"round_display,omitempty"`
	State        string                      `json:"state,omitempty"`
}

type irrigationRequest struct {
	VillageName string `json:"village_name"`
}

type syncRequest struct {
	Action   gamesync.ActionKind `json:"action"`
	ActionID string              `json:"action_id"`
}

func gameID(r *http.Request) models.ID {
	return models.ID(r.PathValue("gid"))
}

func (h *apiHandler) activeNegotiation(w http.ResponseWriter, r *http.Request) {
	session, err := h.services.Negotiations.CheckActive(r.Context(), gameID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Active: session != nil, Session: session})
}

// openNegotiation opens the game's active negotiation as reported by the server.
func (h *apiHandler) openNegotiation(w http.ResponseWriter, r *http.Request) {
	gid := gameID(r)
	session, err := h.services.Negotiations.CheckActive(r.Context(), gid)
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "当前没有进行中的谈判"})
		return
	}
	if err := h.services.Negotiations.Open(r.Context(), gid, *session); err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w)
}

func (h *apiHandler) sendNegotiation(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.services.Negotiations.Send(r.Context(), req.Content, req.SpeakerRole)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{
		ChatResponse: resp,
		RoundDisplay: h.services.Negotiations.RoundDisplay(),
		State:        h.services.Negotiations.State().String(),
	})
}

func (h *apiHandler) closeNegotiation(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Negotiations.Close(r.Context()); err != nil {
		// The session is closed either way; only the resync failed.
		log.Warn().Err(err).Str("game_id", gameID(r).String()).Msg("sync after closing negotiation failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) startIrrigation(w http.ResponseWriter, r *http.Request) {
	var req irrigationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.services.Negotiations.StartIrrigation(r.Context(), gameID(r), req.VillageName); err != nil {
		writeError(w, err)
		return
	}
	h.writeSession(w)
}

func (h *apiHandler) advance(w http.ResponseWriter, r *http.Request) {
	report, err := h.services.Advancer.Advance(r.Context(), gameID(r))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if len(report.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(report.Raw); err != nil {
			log.Error().Err(err).Msg("failed to write advance report")
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// sync reconciles after a mutation the view made directly against the engine
// (tax change, investment). Retried notifications for one mutation carry the
// same action_id and are synced once.
func (h *apiHandler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch req.Action {
	case gamesync.ActionTaxChange, gamesync.ActionInvestment:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported sync action: " + string(req.Action)})
		return
	}
	action := gamesync.NewAction(req.Action)
	if req.ActionID != "" {
		action.ID = req.ActionID
	}
	if err := h.services.Syncer.Sync(r.Context(), gameID(r), action); err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.services.State.CurrentGame())
}

func (h *apiHandler) startPrecompute(w http.ResponseWriter, r *http.Request) {
	h.services.Precompute.Start(r.Context(), gameID(r))
	w.WriteHeader(http.StatusAccepted)
}

func (h *apiHandler) stopPrecompute(w http.ResponseWriter, r *http.Request) {
	h.services.Precompute.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) writeSession(w http.ResponseWriter) {
	n := h.services.Negotiations
	session := n.Session()
	writeJSON(w, http.StatusOK, sessionResponse{
		Active:       session != nil,
		Session:      session,
		Messages:     n.History(),
		RoundDisplay: n.RoundDisplay(),
		State:        n.State().String(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps client core errors to HTTP statuses. Engine errors are
// relayed with the engine's own message.
func writeError(w http.ResponseWriter, err error) {
	writeErrorFrom(w, err, false)
}

// writeUpstreamError is writeError for calls whose unclassified failures come
// from talking to the engine.
func writeUpstreamError(w http.ResponseWriter, err error) {
	writeErrorFrom(w, err, true)
}

func writeErrorFrom(w http.ResponseWriter, err error, upstream bool) {
	var transportErr *negotiation.TransportError
	var apiErr *clients.APIError

	switch {
	case errors.Is(err, negotiation.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "请输入内容"})
	case errors.Is(err, negotiation.ErrEmptyVillageName):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "请选择村庄"})
	case errors.Is(err, negotiation.ErrSendInFlight),
		errors.Is(err, negotiation.ErrStaleResponse),
		errors.Is(err, negotiation.ErrNotActive),
		errors.Is(err, turn.ErrAdvanceInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &transportErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: transportErr.UserMessage()})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: apiErr.Message})
	case upstream:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: clients.ErrorMessage(err)})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
