package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusSpent  TransactionStatus = "spent"
	StatusEarned TransactionStatus = "earned"
)

const (
	PlanMonthly PlanType = "monthly"
	PlanCustom  PlanType = "custom"
)

const (
	PlanActive    PlanStatus = "Active"
	PlanCompleted PlanStatus = "Completed"
	PlanFailed    PlanStatus = "Failed"
)

// DateLayout is the wire format for all dates.
const DateLayout = "2006-01-02"

// DefaultCurrency is the currency assumed when a transaction omits one.
const DefaultCurrency = "QAR"

// MaxCategoryNameLen bounds category names after trimming.
const MaxCategoryNameLen = 100

type (
	TransactionStatus string
	PlanType          string
	PlanStatus        string

	// Category is a per-user named bucket for transactions. Global
	// categories carry no owner and are visible to everyone.
	Category struct {
		ID       int64
		UserID   int64 // 0 for global categories
		Name     string
		IsGlobal bool
	}

	// Transaction is a single dated money movement owned by one user and
	// tied to exactly one category.
	Transaction struct {
		ID          int64
		UserID      int64
		Date        time.Time
		Status      TransactionStatus
		CategoryID  int64
		Category    string // resolved category name
		Amount      decimal.Decimal
		Currency    string
		Description string
	}

	// Plan is a budget envelope over a category set and a date window.
	// LeftMoney is the remaining allowance; Status is derived from the
	// calendar and LeftMoney, never authoritative on its own.
	Plan struct {
		ID          int64
		UserID      int64
		Type        PlanType
		Amount      decimal.Decimal
		Description string
		Categories  []Category
		FromDate    time.Time
		ToDate      time.Time
		LeftMoney   decimal.Decimal
		Status      PlanStatus
	}
)

var (
	ErrInvalidStatus   = errors.New("status must be 'spent' or 'earned'")
	ErrInvalidPlanType = errors.New("type must be 'monthly' or 'custom'")
	ErrEmptyCategory   = errors.New("category name is required")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidWindow   = errors.New("to_date must not be before from_date")
)

func (s TransactionStatus) Valid() bool {
	return s == StatusSpent || s == StatusEarned
}

func (t PlanType) Valid() bool {
	return t == PlanMonthly || t == PlanCustom
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Validate checks a transaction before any write. A malformed or negative
// amount must fail here, before plan compensation runs.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "date is required"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: ErrInvalidStatus.Error()}
	}
	if strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: "category", Reason: ErrEmptyCategory.Error()}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "amount must be non-negative"}
	}
	if len(t.Currency) != 3 {
		return &ValidationError{Field: "currency", Reason: "currency must be a 3-letter code"}
	}
	return nil
}

// Validate checks a plan before any write.
func (p Plan) Validate() error {
	if !p.Type.Valid() {
		return &ValidationError{Field: "type", Reason: ErrInvalidPlanType.Error()}
	}
	if p.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "amount must be non-negative"}
	}
	if p.FromDate.IsZero() || p.ToDate.IsZero() {
		return &ValidationError{Field: "from_date", Reason: "from_date and to_date are required"}
	}
	if p.ToDate.Before(p.FromDate) {
		return &ValidationError{Field: "to_date", Reason: ErrInvalidWindow.Error()}
	}
	return nil
}

// CategoryNames returns the plan's category names in declaration order.
func (p Plan) CategoryNames() []string {
	names := make([]string, len(p.Categories))
	for i, c := range p.Categories {
		names[i] = c.Name
	}
	return names
}
