package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"datar/dispatch"
	"datar/session"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	AgentName string    `json:"agent_name"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

type agentChatRequest struct {
	Message string `json:"message"`
}

type agentChatResponse struct {
	Response  string `json:"response"`
	AgentName string `json:"agent_name"`
	AgentID   string `json:"agent_id"`
}

type sessionHistoryResponse struct {
	SessionID    string            `json:"session_id"`
	Messages     []session.Message `json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
	MessageCount int               `json:"message_count"`
}

type selectAgentRequest struct {
	AgentID string `json:"agent_id"`
}

// selectAgentResponse keeps the original frontend's Spanish wire keys.
type selectAgentResponse struct {
	Success     bool   `json:"exitoso"`
	AgentName   string `json:"agente"`
	AgentID     string `json:"agente_id"`
	Description string `json:"descripcion"`
	Message     string `json:"mensaje"`
	Color       string `json:"color"`
	Emoji       string `json:"emoji"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "DATAR API",
		"description": "Sistema agéntico para la Estructura Ecológica Principal de Bogotá",
		"version":     Version,
		"root_agent":  s.svc.Capability().Name(),
		"endpoints": map[string]string{
			"health":   "/health",
			"agents":   "/api/agents",
			"chat":     "/api/chat",
			"sessions": "/api/sessions",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"root_agent": s.svc.Capability().Name(),
		"sessions":   s.svc.Sessions().Len(),
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Registry().List())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.svc.Dispatcher().Dispatch(r.Context(), dispatch.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		AgentHint: req.AgentID,
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.Response,
		AgentName: result.AgentName,
		SessionID: result.SessionID,
		Timestamp: result.Timestamp,
	})
}

// handleAgentChat is the per-agent convenience surface: every call runs in a
// fresh session with the path's agent id as a fixed routing hint.
func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	desc, ok := s.svc.Registry().Describe(agentID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("agente %q no encontrado", agentID),
		})
		return
	}

	var req agentChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.svc.Dispatcher().Dispatch(r.Context(), dispatch.Request{
		Message:   req.Message,
		AgentHint: agentID,
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, agentChatResponse{
		Response:  result.Response,
		AgentName: desc.DisplayName,
		AgentID:   agentID,
	})
}

// handleSelectAgent returns a persona's metadata and a welcome message. The
// root agent handles routing automatically; the endpoint remains for frontend
// compatibility. Unknown ids get a 404 listing the available ids.
func (s *Server) handleSelectAgent(w http.ResponseWriter, r *http.Request) {
	var req selectAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	desc, ok := s.svc.Registry().Describe(req.AgentID)
	if !ok {
		ids := make([]string, 0, s.svc.Registry().Len())
		for _, d := range s.svc.Registry().List() {
			ids = append(ids, d.ID)
		}
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("agente %q no encontrado. Agentes disponibles: %s",
				req.AgentID, strings.Join(ids, ", ")),
		})
		return
	}

	writeJSON(w, http.StatusOK, selectAgentResponse{
		Success:     true,
		AgentName:   desc.DisplayName,
		AgentID:     desc.ID,
		Description: desc.Description,
		Message:     fmt.Sprintf("¡Hola! Soy %s. %s. ¿En qué puedo ayudarte?", desc.DisplayName, desc.Description),
		Color:       desc.Color,
		Emoji:       desc.Emoji,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Sessions().List())
}

// handleSessionHistory returns the session's recorded turns. Unknown ids
// yield an empty-history result, not an error.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	resp := sessionHistoryResponse{
		SessionID: sessionID,
		Messages:  s.svc.Sessions().History(r.Context(), sessionID),
	}
	if md, ok := s.svc.Sessions().Metadata(sessionID); ok {
		resp.CreatedAt = md.CreatedAt
		resp.MessageCount = md.MessageCount
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSession is idempotent: deleting an absent session reports not
// found in the message but still succeeds.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if s.svc.Sessions().Delete(sessionID) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("sesión %s eliminada", sessionID),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("sesión %s no encontrada", sessionID),
	})
}

// writeDispatchError maps the dispatch error taxonomy onto status codes.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case dispatch.IsInputError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		// Session and execution faults alike surface the reason string.
		s.logger.Error("dispatch request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
