package core

import (
	"strings"
	"time"
)

// WildcardCategory is the sentinel category name that makes a plan match
// every transaction category. The comparison is case-insensitive on the
// wildcard token itself.
const WildcardCategory = "all"

// StatusAt derives a plan's lifecycle status from the calendar and the
// remaining allowance. It is a pure function: while the window is open the
// plan is Active; once today passes to_date the plan is Completed when the
// allowance was fully consumed and Failed when money was left over. The
// counterintuitive Completed/Failed naming is the product's decision rule
// and is kept literally.
func (p Plan) StatusAt(today time.Time) PlanStatus {
	if dateAfter(today, p.ToDate) {
		if p.LeftMoney.Sign() <= 0 {
			return PlanCompleted
		}
		return PlanFailed
	}
	return PlanActive
}

// MatchesCategory reports whether the plan applies to a transaction in the
// named category: either the plan's category set contains that exact name,
// or it contains the "all" wildcard.
func (p Plan) MatchesCategory(name string) bool {
	for _, c := range p.Categories {
		if c.Name == name {
			return true
		}
		if strings.EqualFold(c.Name, WildcardCategory) {
			return true
		}
	}
	return false
}

// WindowContains reports whether today falls inside [from_date, to_date],
// boundaries included.
func (p Plan) WindowContains(today time.Time) bool {
	return !dateBefore(today, p.FromDate) && !dateAfter(today, p.ToDate)
}

// dateBefore and dateAfter compare calendar days, ignoring time of day.
func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

func dateAfter(a, b time.Time) bool {
	return dateBefore(b, a)
}
