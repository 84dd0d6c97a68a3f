package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/store"
)

// PlanInput is the untrusted form of a plan write.
type PlanInput struct {
	Type        string
	Amount      string
	Description string
	Categories  []string // names; "all" makes the plan match everything
	FromDate    string
	ToDate      string
}

// PlanService owns plan lifecycle. The stored status is refreshed from the
// calendar on every read so it never goes stale between requests.
type PlanService struct {
	repo store.Repository
	now  func() time.Time
}

func NewPlanService(repo store.Repository, now func() time.Time) *PlanService {
	if now == nil {
		now = time.Now
	}
	return &PlanService{repo: repo, now: now}
}

func (s *PlanService) parse(userID int64, in PlanInput) (core.Plan, []string, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Plan{}, nil, err
	}
	from, err := core.ParseDate(in.FromDate)
	if err != nil {
		return core.Plan{}, nil, &core.ValidationError{Field: "from_date", Reason: "expected YYYY-MM-DD"}
	}
	to, err := core.ParseDate(in.ToDate)
	if err != nil {
		return core.Plan{}, nil, &core.ValidationError{Field: "to_date", Reason: "expected YYYY-MM-DD"}
	}

	var names []string
	for _, raw := range in.Categories {
		if name := strings.TrimSpace(raw); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return core.Plan{}, nil, &core.ValidationError{Field: "categories", Reason: "at least one category is required"}
	}

	p := core.Plan{
		UserID:      userID,
		Type:        core.PlanType(strings.ToLower(strings.TrimSpace(in.Type))),
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		FromDate:    from,
		ToDate:      to,
	}
	if err := p.Validate(); err != nil {
		return core.Plan{}, nil, err
	}
	return p, names, nil
}

func (s *PlanService) Create(ctx context.Context, userID int64, in PlanInput) (core.Plan, error) {
	p, names, err := s.parse(userID, in)
	if err != nil {
		return core.Plan{}, err
	}
	p.LeftMoney = p.Amount
	p.Status = core.PlanActive

	var created core.Plan
	err = s.repo.WithinTx(ctx, func(st store.Store) error {
		created, err = st.CreatePlan(ctx, p)
		if err != nil {
			return err
		}
		ids, err := s.resolveCategoryIDs(ctx, st, userID, names)
		if err != nil {
			return err
		}
		return st.SetPlanCategories(ctx, userID, created.ID, ids)
	})
	if err != nil {
		return core.Plan{}, fmt.Errorf("create plan: %w", err)
	}
	return s.Get(ctx, userID, created.ID)
}

// Update replaces a plan's definition. The remaining allowance resets to
// the new total: already-recorded spending is not replayed against the
// edited plan.
func (s *PlanService) Update(ctx context.Context, userID, id int64, in PlanInput) (core.Plan, error) {
	p, names, err := s.parse(userID, in)
	if err != nil {
		return core.Plan{}, err
	}
	p.ID = id
	p.LeftMoney = p.Amount
	p.Status = p.StatusAt(s.now())

	err = s.repo.WithinTx(ctx, func(st store.Store) error {
		if _, err := st.GetPlan(ctx, userID, id); err != nil {
			return err
		}
		if err := st.UpdatePlan(ctx, p); err != nil {
			return err
		}
		ids, err := s.resolveCategoryIDs(ctx, st, userID, names)
		if err != nil {
			return err
		}
		return st.SetPlanCategories(ctx, userID, id, ids)
	})
	if err != nil {
		return core.Plan{}, fmt.Errorf("update plan: %w", err)
	}
	return s.Get(ctx, userID, id)
}

func (s *PlanService) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.DeletePlan(ctx, userID, id)
}

func (s *PlanService) Get(ctx context.Context, userID, id int64) (core.Plan, error) {
	p, err := s.repo.GetPlan(ctx, userID, id)
	if err != nil {
		return core.Plan{}, err
	}
	return s.refreshStatus(ctx, p)
}

func (s *PlanService) List(ctx context.Context, userID int64) ([]core.Plan, error) {
	plans, err := s.repo.ListPlans(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, p := range plans {
		if plans[i], err = s.refreshStatus(ctx, p); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// refreshStatus persists the calendar-derived status when it drifted from
// the stored one.
func (s *PlanService) refreshStatus(ctx context.Context, p core.Plan) (core.Plan, error) {
	derived := p.StatusAt(s.now())
	if derived == p.Status {
		return p, nil
	}
	if err := s.repo.UpdatePlanStatus(ctx, p.UserID, p.ID, derived); err != nil {
		return core.Plan{}, fmt.Errorf("refresh plan %d status: %w", p.ID, err)
	}
	p.Status = derived
	return p, nil
}

func (s *PlanService) resolveCategoryIDs(ctx context.Context, st store.Store, userID int64, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		cat, err := st.GetOrCreateCategory(ctx, userID, name)
		if err != nil {
			return nil, fmt.Errorf("resolve category %q: %w", name, err)
		}
		ids = append(ids, cat.ID)
	}
	return ids, nil
}
