package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"spendtrack/internal/currency"
	"spendtrack/internal/plan"
	"spendtrack/internal/services"
	"spendtrack/internal/store/memory"
)

func testNow() time.Time {
	return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo := memory.New()
	engine := plan.NewEngine(testNow)
	rates := currency.NewConverter(currency.Config{})

	return NewServer("127.0.0.1:0",
		services.NewLedgerService(repo, engine, nil),
		services.NewPlanService(repo, testNow),
		services.NewCategoryService(repo),
		services.NewReportsService(repo, rates, testNow),
		nil,
	)
}

func doJSON(t *testing.T, srv *Server, method, path string, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestAPI_RequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/transactions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions", "not-a-number", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHealthEndpointsSkipIdentity(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", "7", transactionRequest{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "120.50",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d (%s), want 201", rec.Code, rec.Body.String())
	}
	var created transactionResponse
	decodeInto(t, rec, &created)
	if created.Currency != "QAR" {
		t.Fatalf("currency = %q, want defaulted QAR", created.Currency)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions", "7", nil)
	var list []transactionResponse
	decodeInto(t, rec, &list)
	if len(list) != 1 || list[0].Amount != "120.5" {
		t.Fatalf("list = %+v, want one transaction of 120.5", list)
	}

	// Another user sees nothing.
	rec = doJSON(t, srv, http.MethodGet, "/api/transactions", "8", nil)
	var other []transactionResponse
	decodeInto(t, rec, &other)
	if len(other) != 0 {
		t.Fatalf("other user sees %d transactions, want 0", len(other))
	}

	txPath := "/api/transactions/" + strconv.FormatInt(created.ID, 10)
	rec = doJSON(t, srv, http.MethodDelete, txPath, "7", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, txPath, "7", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d, want 404", rec.Code)
	}
}

func TestCreateTransaction_ValidationStatus(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body transactionRequest
	}{
		{"negative amount", transactionRequest{Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "-1"}},
		{"bad status", transactionRequest{Date: "2025-03-10", Status: "lost", Category: "Food", Amount: "1"}},
		{"bad date", transactionRequest{Date: "March 10", Status: "spent", Category: "Food", Amount: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/transactions", "7", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d (%s), want 422", rec.Code, rec.Body.String())
			}
			var body errorBody
			decodeInto(t, rec, &body)
			if body.Field == "" {
				t.Fatalf("error body %+v missing field", body)
			}
		})
	}
}

func TestPlanConsumptionVisibleThroughAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/plans", "7", planRequest{
		Type: "monthly", Amount: "500", Categories: []string{"Food"},
		FromDate: "2025-03-01", ToDate: "2025-03-31",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create plan = %d (%s), want 201", rec.Code, rec.Body.String())
	}
	var p planResponse
	decodeInto(t, rec, &p)
	if p.LeftMoney != "500" || p.Status != "Active" {
		t.Fatalf("plan = %+v, want full allowance and Active", p)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", "7", transactionRequest{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "120",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction = %d, want 201", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/plans/1", "7", nil)
	decodeInto(t, rec, &p)
	if p.LeftMoney != "380" {
		t.Fatalf("left_money = %s, want 380", p.LeftMoney)
	}
}

func TestCategoryRename_Conflict(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", "7", categoryRequest{Name: "food"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d, want 201", rec.Code)
	}
	var food categoryResponse
	decodeInto(t, rec, &food)
	if food.Name != "Food" {
		t.Fatalf("name = %q, want title-cased Food", food.Name)
	}

	doJSON(t, srv, http.MethodPost, "/api/categories", "7", categoryRequest{Name: "travel"})

	rec = doJSON(t, srv, http.MethodPut, "/api/categories/"+jsonID(food.ID), "7", categoryRequest{Name: "TRAVEL"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("rename = %d (%s), want 409", rec.Code, rec.Body.String())
	}
}

func TestCategoryDelete_ReportsRemovedCount(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/transactions", "7", transactionRequest{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "10",
	})
	doJSON(t, srv, http.MethodPost, "/api/transactions", "7", transactionRequest{
		Date: "2025-03-11", Status: "spent", Category: "Food", Amount: "20",
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/categories", "7", nil)
	var cats []categoryResponse
	decodeInto(t, rec, &cats)
	if len(cats) != 1 {
		t.Fatalf("categories = %+v, want one", cats)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/categories/"+jsonID(cats[0].ID), "7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d, want 200", rec.Code)
	}
	var body map[string]int64
	decodeInto(t, rec, &body)
	if body["transactions_removed"] != 2 {
		t.Fatalf("removed = %d, want 2", body["transactions_removed"])
	}
}

func TestReportsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/transactions", "7", transactionRequest{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "800",
	})
	doJSON(t, srv, http.MethodPost, "/api/transactions", "7", transactionRequest{
		Date: "2025-03-01", Status: "earned", Category: "Salary", Amount: "1000",
	})

	t.Run("summary", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/reports/summary", "7", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("summary = %d, want 200", rec.Code)
		}
		var body summaryResponse
		decodeInto(t, rec, &body)
		if body.TotalSpent != "800" || body.TotalEarned != "1000" {
			t.Fatalf("totals = %s/%s, want 800/1000", body.TotalSpent, body.TotalEarned)
		}
	})

	t.Run("charts", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/reports/charts", "7", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("charts = %d, want 200", rec.Code)
		}
		var body struct {
			ByCategory []struct {
				Name   string `json:"name"`
				Amount string `json:"amount"`
			} `json:"by_category"`
			ByDay []struct {
				Date  string `json:"date"`
				Total string `json:"total"`
			} `json:"by_day"`
		}
		decodeInto(t, rec, &body)
		if len(body.ByCategory) != 1 || body.ByCategory[0].Name != "Food" {
			t.Fatalf("by_category = %+v, want only Food", body.ByCategory)
		}
	})

	t.Run("overview with advisory", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/reports/overview", "7", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("overview = %d, want 200", rec.Code)
		}
		var body struct {
			Advisory string `json:"advisory"`
		}
		decodeInto(t, rec, &body)
		if body.Advisory == "" {
			t.Fatal("expected overspending advisory, 800 spent of 1000 earned")
		}
	})

	t.Run("missing monthly summary is 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/reports/months/2025/3", "7", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("months = %d, want 404 before the worker ran", rec.Code)
		}
	})
}

func TestSummary_MismatchedDateRange(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/reports/summary?start_date=2025-03-01", "7", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
