// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package sec

import "github.com/nvbach/mercato/internal/platform/constants"

// # Operator Roles

// Role represents the authorization level granted to a console account.
//
// Roles arrive verbatim from the platform API's user payload; the console
// never invents or upgrades them.
type Role string

const (
	// Unrestricted access to every console screen
	RoleAdmin Role = "admin"

	// Runs day-to-day marketplace operations (orders, zones, rates)
	RoleOperator Role = "operator"

	// Business owner managing their own storefront, products, and meals
	RoleVendor Role = "vendor"

	// Default role for standard platform accounts
	RoleMember Role = "user"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r Role) level() int {

	// Linear scale (10-40) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 40
	case RoleOperator:
		return 30
	case RoleVendor:
		return 20
	case RoleMember:
		return 10
	default:
		return 0
	}
}

// LandingPath returns the post-login destination for a role.
//
// Administrators land on the admin overview; everyone else gets the
// standard dashboard.
func (r Role) LandingPath() string {
	if r == RoleAdmin {
		return constants.AdminLandingPath
	}
	return constants.DashboardLandingPath
}
