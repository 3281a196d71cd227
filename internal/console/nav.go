// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console

import (
	"net/http"

	requestutil "github.com/nvbach/mercato/internal/platform/request"
	"github.com/nvbach/mercato/internal/platform/respond"
	"github.com/nvbach/mercato/internal/platform/sec"
)

// MenuEntry is one item of the dashboard navigation chrome.
type MenuEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon,omitempty"`

	// roles is the allow-list. Empty means "every authenticated operator" —
	// including roles this build has never heard of, so a platform-side role
	// addition degrades to the shared entries instead of an empty menu.
	roles []sec.Role
}

// visibleTo reports whether the entry is shown to the given role.
func (entry MenuEntry) visibleTo(role sec.Role) bool {
	if len(entry.roles) == 0 {
		return true
	}
	for _, allowed := range entry.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// menu is the console's navigation registry, in display order.
var menu = []MenuEntry{
	{Label: "Dashboard", Path: "/dashboard", Icon: "home"},
	{Label: "Analytics", Path: "/console/analytics", Icon: "chart", roles: []sec.Role{sec.RoleAdmin}},
	{Label: "Users", Path: "/console/users", Icon: "people", roles: []sec.Role{sec.RoleAdmin}},
	{Label: "Vendors", Path: "/console/vendors", Icon: "store"},
	{Label: "Products", Path: "/console/products", Icon: "box"},
	{Label: "Orders", Path: "/console/orders", Icon: "receipt"},
	{Label: "Groups", Path: "/console/groups", Icon: "group"},
	{Label: "Meals", Path: "/console/meals", Icon: "meal"},
	{Label: "Zones", Path: "/console/zones", Icon: "map", roles: []sec.Role{sec.RoleAdmin, sec.RoleOperator}},
	{Label: "Account", Path: "/console/account", Icon: "person"},
}

// navResponse is the chrome payload: the filtered menu plus the avatar and
// sign-out affordances every authenticated screen shows.
type navResponse struct {
	Menu []MenuEntry `json:"menu"`
	User navUser     `json:"user"`
}

type navUser struct {
	FullName       string `json:"fullname"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

/*
Nav serves the role-filtered navigation menu and session chrome.

GET /console/nav

Description: Runs behind the route guard, so a session is always present.
Entries with a role allow-list are filtered against the operator's role.
*/
func Nav(writer http.ResponseWriter, request *http.Request) {
	current, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	visible := make([]MenuEntry, 0, len(menu))
	for _, entry := range menu {
		if entry.visibleTo(current.User.Role) {
			visible = append(visible, entry)
		}
	}

	respond.OK(writer, navResponse{
		Menu: visible,
		User: navUser{
			FullName:       current.User.FullName,
			Email:          current.User.Email,
			Role:           string(current.User.Role),
			ProfilePicture: current.User.ProfilePicture,
		},
	})
}
