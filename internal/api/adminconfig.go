package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// getConfigCategory handles GET /api/v1/admin/config/{category}.
func (s *Server) getConfigCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	docs, err := s.deps.Configs.GetAll(r.Context(), category)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// getConfigKey handles GET /api/v1/admin/config/{category}/{key}.
func (s *Server) getConfigKey(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	key := chi.URLParam(r, "key")

	doc, err := s.deps.Configs.Get(r.Context(), category, key)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"key":      key,
		"value":    doc,
	})
}

type configUpdateRequest struct {
	Value     json.RawMessage `json:"value"`
	ChangedBy string          `json:"changedBy"`
	Reason    string          `json:"reason"`
}

// updateConfig handles PUT /api/v1/admin/config/{category}/{key}.
// Validation failures come back as 422 with the full error list.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	key := chi.URLParam(r, "key")

	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Value) == 0 {
		respondJSON(w, http.StatusBadRequest, errorBody("value is required"))
		return
	}
	if req.ChangedBy == "" {
		respondJSON(w, http.StatusBadRequest, errorBody("changedBy is required"))
		return
	}

	rec, result, err := s.deps.Configs.Update(r.Context(), category, key, req.Value, req.ChangedBy, req.Reason)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"category": rec.Category,
		"key":      rec.Key,
		"version":  rec.Version,
		"warnings": result.Warnings,
	})
}

// runDecay handles POST /api/v1/admin/decay/run. An overlapping run reports
// itself as skipped rather than queueing.
func (s *Server) runDecay(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Decay.Run(r.Context())
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	status := http.StatusOK
	if summary.Skipped {
		status = http.StatusConflict
	}
	respondJSON(w, status, summary)
}
