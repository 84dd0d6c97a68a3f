package http

import (
	"net/http"

	"spendtrack/internal/services"
)

type planRequest struct {
	Type        string   `json:"type"`
	Amount      string   `json:"amount"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	FromDate    string   `json:"from_date"`
	ToDate      string   `json:"to_date"`
}

func (req planRequest) toInput() services.PlanInput {
	return services.PlanInput{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Categories:  req.Categories,
		FromDate:    req.FromDate,
		ToDate:      req.ToDate,
	}
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.plans.Create(r.Context(), userFrom(r.Context()), req.toInput())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPlanResponse(p))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.plans.Get(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPlanResponse(p))
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req planRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.plans.Update(r.Context(), userFrom(r.Context()), id, req.toInput())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPlanResponse(p))
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.plans.Delete(r.Context(), userFrom(r.Context()), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
