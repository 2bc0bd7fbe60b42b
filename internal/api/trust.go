package api

import (
	"net/http"
	"strconv"

	"github.com/commonstack/trusthub/internal/store"
)

const defaultHistoryLimit = 50

type trustScoreResponse struct {
	UserID     string               `json:"userId"`
	TrustScore float64              `json:"trustScore"`
	TrustLevel string               `json:"trustLevel"`
	History    []store.HistoryEntry `json:"history,omitempty"`
}

// getTrustScore handles GET /api/v1/trust/{userID}.
func (s *Server) getTrustScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}

	user, err := s.deps.Reader.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	resp := trustScoreResponse{
		UserID:     user.ID.String(),
		TrustScore: user.TrustScore,
		TrustLevel: user.TrustLevel,
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("history"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, errorBody("invalid history limit"))
			return
		}
		limit = n
	}
	if limit > 0 {
		history, err := s.deps.Reader.ListScoreHistory(r.Context(), userID, limit)
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		resp.History = history
	}

	respondJSON(w, http.StatusOK, resp)
}

// recalculate handles POST /api/v1/trust/{userID}/recalculate.
func (s *Server) recalculate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}

	result, err := s.deps.Calculator.Calculate(r.Context(), userID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// recalculateAll handles POST /api/v1/admin/recalculate.
func (s *Server) recalculateAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Calculator.RecalculateAll(r.Context())
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
