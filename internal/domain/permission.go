// Package domain contains core business types and interfaces.
//
// This file computes the capability set a user holds for one request.
package domain

import (
	"sort"
	"time"
)

// Capability is a named permission to perform one action.
type Capability string

const (
	CapViewOwnChallans    Capability = "view_own_challans"
	CapPayChallans        Capability = "pay_challans"
	CapDisputeChallans    Capability = "dispute_challans"
	CapCreateChallans     Capability = "create_challans"
	CapViewIssuedChallans Capability = "view_issued_challans"
	CapViewAllChallans    Capability = "view_all_challans"
	CapRefundPayments     Capability = "refund_payments"
	CapManageUsers        Capability = "manage_users"
)

var roleCapabilities = map[Role][]Capability{
	RoleCitizen: {
		CapViewOwnChallans,
		CapPayChallans,
		CapDisputeChallans,
	},
	RoleOfficer: {
		CapCreateChallans,
		CapViewIssuedChallans,
	},
	RoleSupervisor: {
		CapCreateChallans,
		CapViewIssuedChallans,
		CapViewAllChallans,
		CapRefundPayments,
	},
	RoleAdmin: {
		CapCreateChallans,
		CapViewIssuedChallans,
		CapViewAllChallans,
		CapRefundPayments,
		CapManageUsers,
	},
}

// CapabilitySet is the flattened set of permissions for a user.
type CapabilitySet map[Capability]struct{}

// Has reports whether the set contains a capability.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in sorted order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Capabilities computes the set for a user from role, unexpired grants, and
// the capabilities switched off by feature flags.
func Capabilities(u *User, now time.Time, disabled map[Capability]bool) CapabilitySet {
	set := CapabilitySet{}
	if u == nil {
		return set
	}
	for _, c := range roleCapabilities[u.Role] {
		set[c] = struct{}{}
	}
	for _, g := range u.Grants {
		if g.IsActive(now) {
			set[g.Capability] = struct{}{}
		}
	}
	for c, off := range disabled {
		if off {
			delete(set, c)
		}
	}
	return set
}
