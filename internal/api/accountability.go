package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/commonstack/trusthub/internal/store"
)

type accountabilityEventRequest struct {
	VoucheeID         string         `json:"voucheeId"`
	ImpactType        string         `json:"impactType"`
	ImpactValue       float64        `json:"impactValue"`
	Reason            string         `json:"reason"`
	RelatedEntityType string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string         `json:"relatedEntityId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

var validImpactTypes = map[store.ImpactType]bool{
	store.ImpactPositive: true,
	store.ImpactNegative: true,
	store.ImpactNeutral:  true,
}

// recordAccountabilityEvent handles POST /api/v1/accountability/events.
func (s *Server) recordAccountabilityEvent(w http.ResponseWriter, r *http.Request) {
	var req accountabilityEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	voucheeID, err := uuid.Parse(req.VoucheeID)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("invalid voucheeId"))
		return
	}
	impact := store.ImpactType(req.ImpactType)
	if !validImpactTypes[impact] {
		respondJSON(w, http.StatusBadRequest, errorBody("impactType must be positive, negative or neutral"))
		return
	}
	if req.ImpactValue < 0 {
		respondJSON(w, http.StatusBadRequest, errorBody("impactValue must be non-negative"))
		return
	}

	created, err := s.deps.Propagator.RecordEvent(r.Context(), voucheeID, impact,
		req.ImpactValue, req.Reason, req.RelatedEntityType, req.RelatedEntityID, req.Metadata)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"vouchersNotified": created})
}

// getAccountabilityImpact handles GET /api/v1/accountability/vouchers/{voucherID}/impact.
func (s *Server) getAccountabilityImpact(w http.ResponseWriter, r *http.Request) {
	voucherID, ok := s.userIDParam(w, r, "voucherID")
	if !ok {
		return
	}

	impact, err := s.deps.Propagator.Impact(r.Context(), voucherID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, impact)
}

// getAccountabilityHistory handles GET /api/v1/accountability/vouchers/{voucherID}/history.
func (s *Server) getAccountabilityHistory(w http.ResponseWriter, r *http.Request) {
	voucherID, ok := s.userIDParam(w, r, "voucherID")
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, errorBody("invalid limit"))
			return
		}
		limit = n
	}

	items, err := s.deps.Propagator.History(r.Context(), voucherID, limit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// sweepAccountability handles POST /api/v1/admin/accountability/sweep.
func (s *Server) sweepAccountability(w http.ResponseWriter, r *http.Request) {
	processed, failed, err := s.deps.Propagator.ProcessUnprocessed(r.Context())
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"processed": processed, "failed": failed})
}
