package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps domain errors onto the API's status codes: validation
// failures are 422, missing or foreign-owned entities are 404, name
// collisions are 409. Anything else is a 500 with a generic body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ve.Error(), Field: ve.Field})
		return
	}
	var ce *core.ConflictError
	if errors.As(err, &ce) {
		respondJSON(w, http.StatusConflict, errorBody{Error: ce.Error()})
		return
	}
	if errors.Is(err, core.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	slog.ErrorContext(r.Context(), "Request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Date:        tx.Date.Format(core.DateLayout),
		Status:      string(tx.Status),
		Category:    tx.Category,
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency,
		Description: tx.Description,
	}
}

type planResponse struct {
	ID          int64    `json:"id"`
	Type        string   `json:"type"`
	Amount      string   `json:"amount"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
	FromDate    string   `json:"from_date"`
	ToDate      string   `json:"to_date"`
	LeftMoney   string   `json:"left_money"`
	Status      string   `json:"status"`
}

func toPlanResponse(p core.Plan) planResponse {
	return planResponse{
		ID:          p.ID,
		Type:        string(p.Type),
		Amount:      p.Amount.String(),
		Description: p.Description,
		Categories:  p.CategoryNames(),
		FromDate:    p.FromDate.Format(core.DateLayout),
		ToDate:      p.ToDate.Format(core.DateLayout),
		LeftMoney:   p.LeftMoney.String(),
		Status:      string(p.Status),
	}
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name}
}

type summaryResponse struct {
	Currency     string                `json:"currency"`
	TotalSpent   string                `json:"total_spent"`
	TotalEarned  string                `json:"total_earned"`
	Transactions []transactionResponse `json:"transactions"`
}

func toSummaryResponse(report services.SummaryReport) summaryResponse {
	out := summaryResponse{
		Currency:     report.Currency,
		TotalSpent:   report.TotalSpent.String(),
		TotalEarned:  report.TotalEarned.String(),
		Transactions: make([]transactionResponse, 0, len(report.Transactions)),
	}
	for _, tx := range report.Transactions {
		out.Transactions = append(out.Transactions, toTransactionResponse(tx))
	}
	return out
}
