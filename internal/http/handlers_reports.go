package http

import (
	"net/http"
	"strconv"

	"spendtrack/internal/core"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	report, err := s.reports.Summary(r.Context(), userFrom(r.Context()), f, r.URL.Query().Get("currency"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryResponse(report))
}

// handleCharts returns spending aggregated by category and by day, the two
// series the client charts are drawn from.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID := userFrom(r.Context())
	currency := r.URL.Query().Get("currency")

	byCategory, err := s.reports.SpendingByCategory(r.Context(), userID, f, currency)
	if err != nil {
		respondError(w, r, err)
		return
	}
	byDay, err := s.reports.SpendingByDay(r.Context(), userID, f, currency)
	if err != nil {
		respondError(w, r, err)
		return
	}

	type categoryPoint struct {
		Name   string `json:"name"`
		Amount string `json:"amount"`
	}
	type dayPoint struct {
		Date  string `json:"date"`
		Total string `json:"total"`
	}
	out := struct {
		ByCategory []categoryPoint `json:"by_category"`
		ByDay      []dayPoint      `json:"by_day"`
	}{
		ByCategory: make([]categoryPoint, 0, len(byCategory)),
		ByDay:      make([]dayPoint, 0, len(byDay)),
	}
	for _, c := range byCategory {
		out.ByCategory = append(out.ByCategory, categoryPoint{Name: c.Name, Amount: c.Amount.String()})
	}
	for _, d := range byDay {
		out.ByDay = append(out.ByDay, dayPoint{Date: d.Date.Format(core.DateLayout), Total: d.Total.String()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.reports.CurrentOverview(r.Context(), userFrom(r.Context()), r.URL.Query().Get("currency"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Year        int    `json:"year"`
		Month       int    `json:"month"`
		Currency    string `json:"currency"`
		TotalSpent  string `json:"total_spent"`
		TotalEarned string `json:"total_earned"`
		Advisory    string `json:"advisory,omitempty"`
	}{
		Year:        o.Year,
		Month:       o.Month,
		Currency:    o.Currency,
		TotalSpent:  o.TotalSpent.String(),
		TotalEarned: o.TotalEarned.String(),
		Advisory:    o.Advisory,
	})
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		respondError(w, r, &core.ValidationError{Field: "year", Reason: "must be a number"})
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil || month < 1 || month > 12 {
		respondError(w, r, &core.ValidationError{Field: "month", Reason: "must be 1-12"})
		return
	}

	summary, err := s.reports.MonthlySummary(r.Context(), userFrom(r.Context()), year, month)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Year             int    `json:"year"`
		Month            int    `json:"month"`
		Currency         string `json:"currency"`
		TotalSpent       string `json:"total_spent"`
		TotalEarned      string `json:"total_earned"`
		TransactionCount int64  `json:"transaction_count"`
		RefreshedAt      string `json:"refreshed_at"`
	}{
		Year:             summary.Year,
		Month:            summary.Month,
		Currency:         summary.Currency,
		TotalSpent:       summary.TotalSpent.String(),
		TotalEarned:      summary.TotalEarned.String(),
		TransactionCount: summary.TransactionCount,
		RefreshedAt:      summary.RefreshedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
