package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// canAccessFeature handles GET /api/v1/access/{userID}/features/{feature}.
func (s *Server) canAccessFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}
	feature := chi.URLParam(r, "feature")

	decision, err := s.deps.Gate.CanAccessFeature(r.Context(), userID, feature)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, decision)
}

// checkFeatureUsage handles GET /api/v1/access/{userID}/features/{feature}/usage.
func (s *Server) checkFeatureUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}
	feature := chi.URLParam(r, "feature")

	usage, err := s.deps.Gate.CheckFeatureUsage(r.Context(), userID, feature)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, usage)
}

// requireFeature handles GET /api/v1/access/{userID}/require/{feature}:
// 204 when the dual gate passes, 403 with the structured denial otherwise.
func (s *Server) requireFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}
	feature := chi.URLParam(r, "feature")

	denial, err := s.deps.Gate.RequireFeature(r.Context(), userID, feature)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if denial == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusForbidden, denial)
}

// accessSummary handles GET /api/v1/access/{userID}/summary.
func (s *Server) accessSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}

	summary, err := s.deps.Gate.UserAccessSummary(r.Context(), userID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// vouchEligibility handles GET /api/v1/access/{userID}/vouch-eligibility.
func (s *Server) vouchEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r, "userID")
	if !ok {
		return
	}

	eligibility, err := s.deps.Gate.CheckVouchEligibility(r.Context(), userID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, eligibility)
}
