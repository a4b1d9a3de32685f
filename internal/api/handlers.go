package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snipq/snipq/internal/provider"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueryRequest is the trigger input: selected text plus where the answer
// should land.
type QueryRequest struct {
	Text        string `json:"text"`
	Destination string `json:"destination"`
}

// ProviderView is a provider's stored settings with the key redacted.
type ProviderView struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	HasKey   bool   `json:"has_key"`
	Active   bool   `json:"active"`
}

// PutProviderRequest updates one provider's credentials.
type PutProviderRequest struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// PutActiveRequest switches the active provider.
type PutActiveRequest struct {
	Provider string `json:"provider"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery handles POST /v1/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is empty")
		return
	}
	if req.Destination == "" {
		s.writeError(w, http.StatusBadRequest, "destination is empty")
		return
	}

	if err := s.dispatch.Dispatch(req.Text, req.Destination); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleHistory handles GET /v1/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.writeError(w, http.StatusBadRequest, "limit must be 1..1000")
			return
		}
		limit = n
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read history: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"dispatches": recs})
}

// handleGetProviders handles GET /v1/settings/providers.
func (s *Server) handleGetProviders(w http.ResponseWriter, r *http.Request) {
	all, err := s.settings.All(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read settings: "+err.Error())
		return
	}
	active, _, err := s.settings.Active(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read settings: "+err.Error())
		return
	}

	views := make([]ProviderView, 0, len(all))
	for _, id := range []provider.ID{provider.OpenAI, provider.Anthropic, provider.Gemini} {
		cfg, ok := all[id]
		if !ok {
			views = append(views, ProviderView{Provider: string(id), Active: id == active})
			continue
		}
		views = append(views, ProviderView{
			Provider: string(id),
			Model:    cfg.Model,
			HasKey:   cfg.APIKey != "",
			Active:   id == active,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"providers": views})
}

// handlePutProvider handles PUT /v1/settings/providers/{provider}.
func (s *Server) handlePutProvider(w http.ResponseWriter, r *http.Request) {
	id := provider.ID(chi.URLParam(r, "provider"))
	if !id.Valid() {
		s.writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	var req PutProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.settings.SetProvider(r.Context(), id, req.APIKey, req.Model); err != nil {
		s.writeError(w, http.StatusInternalServerError, "save settings: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleGetActive handles GET /v1/settings/active.
func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	active, ok, err := s.settings.Active(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read settings: "+err.Error())
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"provider": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"provider": string(active)})
}

// handlePutActive handles PUT /v1/settings/active.
func (s *Server) handlePutActive(w http.ResponseWriter, r *http.Request) {
	var req PutActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	id := provider.ID(req.Provider)
	if !id.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	if err := s.settings.SetActive(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, "save settings: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
