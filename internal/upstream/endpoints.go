// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package upstream

import (
	stdctx "context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nvbach/mercato/internal/platform/apperr"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
)

// # Platform Resources
//
// Field sets follow the platform API payloads; the console forwards them to
// the dashboard without reinterpretation.

// User is a platform account (customers and staff alike).
type User struct {
	ID             string   `json:"_id"`
	FullName       string   `json:"fullname"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone,omitempty"`
	Role           sec.Role `json:"role"`
	ProfilePicture string   `json:"profile_picture,omitempty"`
	Verified       bool     `json:"verified"`
	CreatedAt      string   `json:"createdAt,omitempty"`
}

// Vendor is a seller business registered on the platform.
type Vendor struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Address     string  `json:"address,omitempty"`
	Category    string  `json:"category,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	IsOpen      bool    `json:"is_open"`
	CoverImage  string  `json:"cover_image,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Product is one sellable item belonging to a vendor.
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	VendorID    string  `json:"business_id"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	Image       string  `json:"image,omitempty"`
	InStock     bool    `json:"in_stock"`
	Description string  `json:"description,omitempty"`
}

// Order is one placed order with its lifecycle status.
type Order struct {
	ID          string  `json:"_id"`
	UserID      string  `json:"user_id"`
	VendorID    string  `json:"business_id"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
	ZoneID      string  `json:"zone_id,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	DeliveredAt string  `json:"delivered_at,omitempty"`
}

// Group is a buying group (bulk-order collective).
type Group struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"member_count"`
	ZoneID      string `json:"zone_id,omitempty"`
}

// Meal is a scheduled meal-plan offering.
type Meal struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	VendorID string  `json:"business_id"`
	Price    float64 `json:"price"`
	Schedule string  `json:"schedule,omitempty"`
	Active   bool    `json:"active"`
}

// Zone is a delivery zone.
type Zone struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	City     string `json:"city,omitempty"`
	Active   bool   `json:"active"`
	Couriers int    `json:"couriers,omitempty"`
}

// AnalyticsReport is the aggregated order/revenue series for a date range.
type AnalyticsReport struct {
	TotalOrders  int              `json:"total_orders"`
	TotalRevenue float64          `json:"total_revenue"`
	NewUsers     int              `json:"new_users"`
	Series       []AnalyticsPoint `json:"series"`
}

// AnalyticsPoint is one bucket of the analytics series.
type AnalyticsPoint struct {
	Date    string  `json:"date"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// # Authentication

// loginRequest is the credential submission body for POST /users/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse tolerates both envelope shapes the platform emits for login:
// a bare {token, user} object and the wrapped {data: {token, user}} form.
type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
	Data  *struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	} `json:"data"`
}

/*
Authenticate submits operator credentials to POST /users/login.

Description: Implements [session.Authenticator]. A 2xx answer carrying a
token and a user yields a payload; everything else is an error for the
session manager to normalize.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *session.LoginPayload: Bearer token + user profile
  - error: Rejection, transport, or malformed-payload failures
*/
func (client *Client) Authenticate(context stdctx.Context, email, password string) (*session.LoginPayload, error) {
	var response loginResponse
	err := client.do(context, http.MethodPost, "/users/login", "", loginRequest{Email: email, Password: password}, &response)
	if err != nil {
		return nil, err
	}

	token, user := response.Token, response.User
	if response.Data != nil {
		token, user = response.Data.Token, response.Data.User
	}

	if token == "" || user == nil || user.ID == "" {
		return nil, apperr.Upstream("The platform API returned an incomplete login payload", nil)
	}

	return &session.LoginPayload{
		Token: token,
		User: &session.User{
			ID:             user.ID,
			Role:           user.Role,
			FullName:       user.FullName,
			Email:          user.Email,
			ProfilePicture: user.ProfilePicture,
		},
	}, nil
}

/*
UpdateProfile pushes a profile change for the signed-in operator.

Parameters:
  - context: context.Context
  - token: Bearer credential
  - user: The updated profile fields

Returns:
  - *User: The profile as the platform stored it
  - error: Client-safe failures
*/
func (client *Client) UpdateProfile(context stdctx.Context, token string, user User) (*User, error) {
	var raw json.RawMessage
	if err := client.do(context, http.MethodPut, "/users/profile", token, user, &raw); err != nil {
		return nil, err
	}
	return unwrapObject[User](raw, "user")
}

// # Collection Fetchers
//
// One fetcher per console screen. Each knows its endpoint's envelope quirk
// and hands back a plain slice.

// Users lists platform accounts. GET /users answers {users: [...]}.
func (client *Client) Users(context stdctx.Context, token string) ([]User, error) {
	return fetchList[User](client, context, "/users", token, "users")
}

// Vendors lists seller businesses. GET /business answers {businesses: [...]}.
func (client *Client) Vendors(context stdctx.Context, token string) ([]Vendor, error) {
	return fetchList[Vendor](client, context, "/business", token, "businesses")
}

// Products lists items across vendors. GET /products answers {data: [...]}.
func (client *Client) Products(context stdctx.Context, token string) ([]Product, error) {
	return fetchList[Product](client, context, "/products", token, "products")
}

// Orders lists placed orders. GET /orders answers a bare array.
func (client *Client) Orders(context stdctx.Context, token string) ([]Order, error) {
	return fetchList[Order](client, context, "/orders", token, "orders")
}

// Groups lists buying groups. GET /groups answers {groups: [...]}.
func (client *Client) Groups(context stdctx.Context, token string) ([]Group, error) {
	return fetchList[Group](client, context, "/groups", token, "groups")
}

// Meals lists meal-plan offerings. GET /meals answers {meals: [...]}.
func (client *Client) Meals(context stdctx.Context, token string) ([]Meal, error) {
	return fetchList[Meal](client, context, "/meals", token, "meals")
}

// Zones lists delivery zones. GET /zones answers {zones: [...]}.
func (client *Client) Zones(context stdctx.Context, token string) ([]Zone, error) {
	return fetchList[Zone](client, context, "/zones", token, "zones")
}

/*
Analytics fetches the aggregated report for an inclusive date range.

Parameters:
  - context: context.Context
  - token: Bearer credential
  - startDate: Range start, "YYYY-MM-DD"
  - endDate: Range end, "YYYY-MM-DD"

Returns:
  - *AnalyticsReport: Aggregates + per-day series
  - error: Client-safe failures
*/
func (client *Client) Analytics(context stdctx.Context, token, startDate, endDate string) (*AnalyticsReport, error) {
	query := url.Values{}
	query.Set("start", startDate)
	query.Set("end", endDate)

	var raw json.RawMessage
	if err := client.do(context, http.MethodGet, "/analytics/orders?"+query.Encode(), token, nil, &raw); err != nil {
		return nil, err
	}
	return unwrapObject[AnalyticsReport](raw, "report")
}

// # Envelope Adapters

// fetchList GETs path and unwraps whichever list envelope comes back.
func fetchList[T any](client *Client, context stdctx.Context, path, token, resourceKey string) ([]T, error) {
	var raw json.RawMessage
	if err := client.do(context, http.MethodGet, path, token, nil, &raw); err != nil {
		return nil, err
	}
	return unwrapList[T](raw, resourceKey)
}

// unwrapList normalizes the three list shapes the platform emits:
// a bare array, {data: [...]}, and {<resourceKey>: [...]}.
func unwrapList[T any](raw json.RawMessage, resourceKey string) ([]T, error) {
	var bare []T
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, apperr.Upstream("The platform API returned an unreadable response", err)
	}

	for _, key := range []string{"data", resourceKey} {
		inner, found := wrapped[key]
		if !found {
			continue
		}
		var items []T
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, apperr.Upstream("The platform API returned an unreadable response", err)
		}
		return items, nil
	}

	return nil, apperr.Upstream(fmt.Sprintf("The platform API returned no %s payload", resourceKey), nil)
}

// unwrapObject normalizes the two object shapes: bare and {data: {...}} /
// {<resourceKey>: {...}}.
func unwrapObject[T any](raw json.RawMessage, resourceKey string) (*T, error) {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		for _, key := range []string{"data", resourceKey} {
			if inner, found := wrapped[key]; found {
				var value T
				if err := json.Unmarshal(inner, &value); err != nil {
					return nil, apperr.Upstream("The platform API returned an unreadable response", err)
				}
				return &value, nil
			}
		}
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, apperr.Upstream("The platform API returned an unreadable response", err)
	}
	return &value, nil
}
