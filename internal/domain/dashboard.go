package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dashboard is a role-dependent summary of challans.
type Dashboard struct {
	UserID      uuid.UUID
	Role        Role
	Scope       string // "own", "issued" or "all"
	ByStatus    map[ChallanStatus]StatusSummary
	Total       int64
	Outstanding decimal.Decimal // Sum of pending fines
	Collected   decimal.Decimal // Sum of paid fines
	Recent      []Challan
}

// NewDashboard folds per-status summaries into a dashboard. Missing
// statuses are reported as zero.
func NewDashboard(user *User, scope string, summaries []StatusSummary, recent []Challan) *Dashboard {
	d := &Dashboard{
		UserID:      user.ID,
		Role:        user.Role,
		Scope:       scope,
		ByStatus:    make(map[ChallanStatus]StatusSummary, len(ChallanStatuses)),
		Outstanding: decimal.Zero,
		Collected:   decimal.Zero,
		Recent:      recent,
	}
	for _, s := range ChallanStatuses {
		d.ByStatus[s] = StatusSummary{Status: s, Total: decimal.Zero}
	}
	for _, s := range summaries {
		d.ByStatus[s.Status] = s
		d.Total += s.Count
		switch s.Status {
		case ChallanStatusPending:
			d.Outstanding = d.Outstanding.Add(s.Total)
		case ChallanStatusPaid:
			d.Collected = d.Collected.Add(s.Total)
		}
	}
	return d
}
