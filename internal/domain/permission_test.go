package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCapabilities(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		user     *User
		disabled map[Capability]bool
		has      []Capability
		hasNot   []Capability
	}{
		{
			name:   "nil user has nothing",
			user:   nil,
			hasNot: []Capability{CapViewOwnChallans, CapCreateChallans},
		},
		{
			name:   "citizen",
			user:   &User{Role: RoleCitizen},
			has:    []Capability{CapViewOwnChallans, CapPayChallans, CapDisputeChallans},
			hasNot: []Capability{CapCreateChallans, CapRefundPayments},
		},
		{
			name:   "officer",
			user:   &User{Role: RoleOfficer},
			has:    []Capability{CapCreateChallans, CapViewIssuedChallans},
			hasNot: []Capability{CapViewAllChallans, CapRefundPayments},
		},
		{
			name: "officer with active supervisor grant",
			user: &User{Role: RoleOfficer, Grants: []Grant{
				{Capability: CapViewAllChallans, ExpiresAt: now.Add(time.Hour)},
			}},
			has: []Capability{CapCreateChallans, CapViewAllChallans},
		},
		{
			name: "expired grant is ignored",
			user: &User{Role: RoleOfficer, Grants: []Grant{
				{Capability: CapRefundPayments, ExpiresAt: now.Add(-time.Minute)},
			}},
			hasNot: []Capability{CapRefundPayments},
		},
		{
			name:     "feature flag removes a role capability",
			user:     &User{Role: RoleAdmin},
			disabled: map[Capability]bool{CapCreateChallans: true, CapRefundPayments: false},
			has:      []Capability{CapManageUsers, CapRefundPayments},
			hasNot:   []Capability{CapCreateChallans},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Capabilities(tt.user, now, tt.disabled)
			for _, c := range tt.has {
				assert.True(t, set.Has(c), "expected %s", c)
			}
			for _, c := range tt.hasNot {
				assert.False(t, set.Has(c), "unexpected %s", c)
			}
		})
	}
}

func TestCapabilitySet_List(t *testing.T) {
	set := Capabilities(&User{Role: RoleCitizen}, time.Now(), nil)
	assert.Equal(t, []Capability{CapDisputeChallans, CapPayChallans, CapViewOwnChallans}, set.List())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{"nil", nil, "", ""},
		{"not found", NotFound("challan.get", "challan", "abc"), ENOTFOUND, `challan with ID "abc" not found`},
		{"transition", IllegalTransition("op", ChallanStatusPaid, ChallanStatusDisputed), ETRANSITION, "cannot move challan from paid to disputed"},
		{"internal hides detail", Internal(errors.New("pq: boom"), "op", "failed"), EINTERNAL, "An internal error occurred. Please try again later."},
		{"plain error", errors.New("boom"), EINTERNAL, "An internal error occurred. Please try again later."},
		{"validation", &ValidationError{Op: "op", Fields: map[string]string{"pin": "must be 4 digits", "cvv": "is required"}}, EINVALID, "cvv is required; pin must be 4 digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, ErrorCode(tt.err))
			assert.Equal(t, tt.wantMsg, ErrorMessage(tt.err))
		})
	}
}

func TestNewDashboard(t *testing.T) {
	user := &User{ID: uuid.New(), Role: RoleCitizen}
	d := NewDashboard(user, "own", []StatusSummary{
		{Status: ChallanStatusPending, Count: 2, Total: decimal.NewFromInt(1500)},
		{Status: ChallanStatusPaid, Count: 1, Total: decimal.NewFromInt(1000)},
	}, nil)

	assert.Equal(t, int64(3), d.Total)
	assert.Equal(t, "1500", d.Outstanding.String())
	assert.Equal(t, "1000", d.Collected.String())
	assert.Equal(t, int64(0), d.ByStatus[ChallanStatusDisputed].Count)
	assert.Len(t, d.ByStatus, len(ChallanStatuses))
}
