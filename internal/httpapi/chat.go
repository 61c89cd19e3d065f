package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/antoniostano/recall/internal/convo"
	"github.com/antoniostano/recall/internal/history"
)

// resolveClientID picks the conversation key: explicit query value, then
// the JSON body field, then a client-supplied header. First non-empty
// candidate wins; the literal "unknown" is the final fallback so a request
// without identity still lands in one well-known history.
func resolveClientID(r *http.Request, bodyID string) string {
	candidates := []string{
		r.URL.Query().Get("client_id"),
		r.URL.Query().Get("client"),
		r.URL.Query().Get("device"),
		bodyID,
		r.Header.Get("X-Client-ID"),
	}
	for _, candidate := range candidates {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return "unknown"
}

func (s *Server) countRequest(op, outcome string) {
	s.metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()
}

type chatRequest struct {
	ClientID string `json:"client_id"`
	Prompt   string `json:"prompt"`
}

type chatResponse struct {
	ClientID string `json:"client_id"`
	Reply    string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.countRequest("converse", "bad_request")
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	clientID := resolveClientID(r, req.ClientID)
	reply, err := s.orchestrator.Converse(r.Context(), clientID, req.Prompt)
	if err != nil {
		if errors.Is(err, convo.ErrEmptyPrompt) {
			s.countRequest("converse", "bad_request")
			respondError(w, http.StatusBadRequest, "missing_prompt", "prompt is required")
			return
		}
		s.countRequest("converse", "error")
		respondError(w, http.StatusInternalServerError, "converse_failed", err.Error())
		return
	}

	s.countRequest("converse", "ok")
	respondJSON(w, http.StatusOK, chatResponse{ClientID: clientID, Reply: reply})
}

func (s *Server) handleViewHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyViewAllowed(r) {
		s.countRequest("view", "unauthorized")
		respondError(w, http.StatusUnauthorized, "unauthorized", "history view requires the shared secret")
		return
	}

	clientID := resolveClientID(r, "")
	turns, err := s.orchestrator.History(r.Context(), clientID)
	if err != nil {
		s.countRequest("view", "error")
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}

	s.countRequest("view", "ok")
	respondJSON(w, http.StatusOK, turns)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	clientID := resolveClientID(r, "")
	if err := s.orchestrator.ClearHistory(r.Context(), clientID); err != nil {
		s.countRequest("clear", "error")
		respondError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}

	s.countRequest("clear", "ok")
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type importRequest struct {
	ClientID string         `json:"client_id"`
	History  []history.Turn `json:"history"`
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		s.countRequest("import", "bad_request")
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.History == nil {
		s.countRequest("import", "bad_request")
		respondError(w, http.StatusBadRequest, "missing_history", "history payload is required")
		return
	}

	clientID := resolveClientID(r, req.ClientID)
	if err := s.orchestrator.ImportHistory(r.Context(), clientID, req.History); err != nil {
		if errors.Is(err, history.ErrInvalidTurn) {
			s.countRequest("import", "bad_request")
			respondError(w, http.StatusBadRequest, "malformed_history", err.Error())
			return
		}
		s.countRequest("import", "error")
		respondError(w, http.StatusInternalServerError, "import_failed", err.Error())
		return
	}

	s.countRequest("import", "ok")
	respondJSON(w, http.StatusOK, map[string]string{"status": "memory updated"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.historyViewAllowed(r) {
		s.countRequest("export", "unauthorized")
		respondError(w, http.StatusUnauthorized, "unauthorized", "export requires the shared secret")
		return
	}

	snapshot, err := s.orchestrator.SnapshotAll(r.Context())
	if err != nil {
		s.countRequest("export", "error")
		respondError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	s.countRequest("export", "ok")
	respondJSON(w, http.StatusOK, snapshot)
}

type legacyRequest struct {
	Device string          `json:"device"`
	Input  string          `json:"input"`
	Memory json.RawMessage `json:"memory"`
}

// handleLegacyAPI mirrors the original single-endpoint surface: clear,
// view, import, and converse multiplexed over query parameters, with the
// reply returned as plain text.
func (s *Server) handleLegacyAPI(w http.ResponseWriter, r *http.Request) {
	var req legacyRequest
	if r.Method == http.MethodPost && strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			s.countRequest("legacy", "bad_request")
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	clientID := resolveClientID(r, req.Device)

	if r.URL.Query().Get("clear") == "true" {
		if err := s.orchestrator.ClearHistory(r.Context(), clientID); err != nil {
			s.countRequest("clear", "error")
			respondError(w, http.StatusInternalServerError, "clear_failed", err.Error())
			return
		}
		s.countRequest("clear", "ok")
		respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}

	if r.URL.Query().Get("view") == "history" {
		if !s.historyViewAllowed(r) {
			s.countRequest("view", "unauthorized")
			respondError(w, http.StatusUnauthorized, "unauthorized", "history view requires the shared secret")
			return
		}
		turns, err := s.orchestrator.History(r.Context(), clientID)
		if err != nil {
			s.countRequest("view", "error")
			respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
			return
		}
		s.countRequest("view", "ok")
		respondJSON(w, http.StatusOK, turns)
		return
	}

	if len(req.Memory) > 0 && string(req.Memory) != "null" {
		var turns []history.Turn
		if err := json.Unmarshal(req.Memory, &turns); err != nil {
			s.countRequest("import", "bad_request")
			respondError(w, http.StatusBadRequest, "malformed_history", "memory payload is not a turn list")
			return
		}
		if err := s.orchestrator.ImportHistory(r.Context(), clientID, turns); err != nil {
			if errors.Is(err, history.ErrInvalidTurn) {
				s.countRequest("import", "bad_request")
				respondError(w, http.StatusBadRequest, "malformed_history", err.Error())
				return
			}
			s.countRequest("import", "error")
			respondError(w, http.StatusInternalServerError, "import_failed", err.Error())
			return
		}
		s.countRequest("import", "ok")
		respondJSON(w, http.StatusOK, map[string]string{"status": "memory updated"})
		return
	}

	input := r.URL.Query().Get("input")
	if strings.TrimSpace(input) == "" {
		input = req.Input
	}
	reply, err := s.orchestrator.Converse(r.Context(), clientID, input)
	if err != nil {
		if errors.Is(err, convo.ErrEmptyPrompt) {
			s.countRequest("converse", "bad_request")
			respondError(w, http.StatusBadRequest, "missing_prompt", "No input provided")
			return
		}
		s.countRequest("converse", "error")
		respondError(w, http.StatusInternalServerError, "converse_failed", err.Error())
		return
	}

	s.countRequest("converse", "ok")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(reply))
}
