// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nvbach/mercato/internal/fetch"
	"github.com/nvbach/mercato/internal/platform/apperr"
	requestutil "github.com/nvbach/mercato/internal/platform/request"
	"github.com/nvbach/mercato/internal/platform/respond"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
	"github.com/nvbach/mercato/internal/upstream"
	"github.com/nvbach/mercato/pkg/pagination"
	"github.com/nvbach/mercato/pkg/query"
)

// Screens is the controller set for the remote-collection screens.
//
// Each screen is the same machine with different adapters: an upstream
// fetcher, a searchable-text projection for the filter box, and a CSV shape
// for exports.
type Screens struct {
	registry *Registry
	platform *upstream.Client
	manager  *session.Manager
	log      *slog.Logger
}

// NewScreens constructs the screen controller set.
func NewScreens(registry *Registry, platform *upstream.Client, manager *session.Manager, logger *slog.Logger) *Screens {
	return &Screens{
		registry: registry,
		platform: platform,
		manager:  manager,
		log:      logger,
	}
}

// Routes returns a [chi.Router] with every collection screen.
//
// All routes run behind the route guard. Shared query parameters:
// q (text filter), page/limit, refresh=1 (force re-fetch), format=csv.
func (screens *Screens) Routes() chi.Router {
	router := chi.NewRouter()

	router.With(requireRole(sec.RoleAdmin)).Get("/users", screens.users)
	router.Get("/vendors", screens.vendors)
	router.Get("/products", screens.products)
	router.Get("/orders", screens.orders)
	router.Get("/groups", screens.groups)
	router.Get("/meals", screens.meals)
	router.With(requireRole(sec.RoleOperator)).Get("/zones", screens.zones)
	router.With(requireRole(sec.RoleAdmin)).Get("/analytics", screens.analytics)
	router.Get("/account", screens.account)
	router.Put("/account/profile", screens.updateProfile)
	router.Get("/nav", Nav)

	return router
}

// requireRole rejects sessions below the minimum role with a 403. The route
// guard has already authenticated the request; this only enforces seniority.
func requireRole(minimum sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			current, err := requestutil.RequiredSession(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}
			if !current.User.Role.AtLeast(minimum) {
				respond.Error(writer, request, apperr.Forbidden("You do not have access to this screen"))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// listResponse is the uniform screen payload: rows plus the collection's
// observable state. Stale rows are served alongside an error by design of
// the state machine, never suppressed.
type listResponse[T any] struct {
	Rows    []T             `json:"rows"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
	Meta    pagination.Meta `json:"meta"`
}

// screenAdapter bundles what one list screen needs beyond the fetcher.
type screenAdapter[T any] struct {
	label      string
	searchText func(T) string
	csvHeader  []string
	csvRecord  func(T) []string
}

/*
serveList runs the shared list-screen flow.

Description: Resolves the session, obtains the per-session collection, loads
it keyed on the operator's bearer token, honors refresh=1, waits for the
load to settle, then filters/paginates/exports. A 401/403 from upstream
signs the session out through the manager.
*/
func serveList[T any](screens *Screens, writer http.ResponseWriter, request *http.Request, adapter screenAdapter[T], fetchFn func(stdctx.Context, string) ([]T, error)) {
	current, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID := current.ID
	collection := collectionFor(screens.registry, sessionID, adapter.label, func() *fetch.Collection[[]T] {
		return fetch.New(adapter.label,
			func(ctx stdctx.Context, deps []any) (*[]T, error) {
				token, _ := deps[0].(string)
				items, err := fetchFn(ctx, token)
				if err != nil {
					return nil, err
				}
				return &items, nil
			},
			fetch.WithLogger[[]T](screens.log),
			fetch.OnUnauthorized[[]T](func() {
				screens.manager.Logout(stdctx.Background(), sessionID)
			}),
		)
	})

	// The collection outlives this request, so its loads must not die with
	// the request context.
	loadCtx := stdctx.WithoutCancel(request.Context())
	if wantsRefresh(request) {
		collection.Refetch(loadCtx, current.Token)
	} else {
		collection.Load(loadCtx, current.Token)
	}

	state := awaitSettled(request.Context(), collection)

	var rows []T
	if state.Data != nil {
		rows = *state.Data
	}

	// The filter box accepts comma-separated terms; a row matching any of
	// them stays.
	filter := strings.TrimSpace(request.URL.Query().Get("q"))
	filtered := filterRows(rows, query.StringSlice(filter), adapter.searchText)

	if wantsCSV(request) {
		if err := writeCSV(writer, adapter.label, filter, adapter.csvHeader, filtered, adapter.csvRecord); err != nil {
			screens.log.Warn("csv_export_failed",
				slog.String("screen", adapter.label),
				slog.Any("error", err),
			)
		}
		return
	}

	page, meta := pageRows(filtered, pagination.FromRequest(request))
	respond.JSON(writer, http.StatusOK, listResponse[T]{
		Rows:    page,
		Loading: state.Loading,
		Error:   state.Err,
		Meta:    meta,
	})
}

// # Screen Adapters

// users handles GET /console/users.
func (screens *Screens) users(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.User]{
		label: "users",
		searchText: func(u upstream.User) string {
			return u.FullName + " " + u.Email + " " + u.Phone
		},
		csvHeader: []string{"id", "fullname", "email", "phone", "role", "verified"},
		csvRecord: func(u upstream.User) []string {
			return []string{u.ID, u.FullName, u.Email, u.Phone, string(u.Role), fmt.Sprintf("%t", u.Verified)}
		},
	}, screens.platform.Users)
}

// vendors handles GET /console/vendors.
func (screens *Screens) vendors(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.Vendor]{
		label: "vendors",
		searchText: func(v upstream.Vendor) string {
			return v.Name + " " + v.Email + " " + v.Category + " " + v.Address
		},
		csvHeader: []string{"id", "name", "email", "phone", "category", "rating", "open"},
		csvRecord: func(v upstream.Vendor) []string {
			return []string{v.ID, v.Name, v.Email, v.Phone, v.Category, fmt.Sprintf("%.1f", v.Rating), fmt.Sprintf("%t", v.IsOpen)}
		},
	}, screens.platform.Vendors)
}

// products handles GET /console/products.
func (screens *Screens) products(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.Product]{
		label: "products",
		searchText: func(p upstream.Product) string {
			return p.Name + " " + p.Category
		},
		csvHeader: []string{"id", "name", "vendor_id", "price", "category", "in_stock"},
		csvRecord: func(p upstream.Product) []string {
			return []string{p.ID, p.Name, p.VendorID, fmt.Sprintf("%.2f", p.Price), p.Category, fmt.Sprintf("%t", p.InStock)}
		},
	}, screens.platform.Products)
}

// orders handles GET /console/orders.
func (screens *Screens) orders(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.Order]{
		label: "orders",
		searchText: func(o upstream.Order) string {
			return o.ID + " " + o.Status + " " + o.UserID + " " + o.VendorID
		},
		csvHeader: []string{"id", "user_id", "vendor_id", "status", "total", "created_at"},
		csvRecord: func(o upstream.Order) []string {
			return []string{o.ID, o.UserID, o.VendorID, o.Status, fmt.Sprintf("%.2f", o.Total), o.CreatedAt}
		},
	}, screens.platform.Orders)
}

// groups handles GET /console/groups.
func (screens *Screens) groups(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.Group]{
		label: "groups",
		searchText: func(g upstream.Group) string {
			return g.Name + " " + g.OwnerID
		},
		csvHeader: []string{"id", "name", "owner_id", "member_count", "zone_id"},
		csvRecord: func(g upstream.Group) []string {
			return []string{g.ID, g.Name, g.OwnerID, fmt.Sprintf("%d", g.MemberCount), g.ZoneID}
		},
	}, screens.platform.Groups)
}

// meals handles GET /console/meals.
func (screens *Screens) meals(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.Meal]{
		label: "meals",
		searchText: func(m upstream.Meal) string {
			return m.Name + " " + m.Schedule
		},
		csvHeader: []string{"id", "name", "vendor_id", "price", "schedule", "active"},
		csvRecord: func(m upstream.Meal) []string {
			return []string{m.ID, m.Name, m.VendorID, fmt.Sprintf("%.2f", m.Price), m.Schedule, fmt.Sprintf("%t", m.Active)}
		},
	}, screens.platform.Meals)
}

// zones handles GET /console/zones.
func (screens *Screens) zones(writer http.ResponseWriter, request *http.Request) {
	serveList(screens, writer, request, screenAdapter[upstream.Zone]{
		label: "zones",
		searchText: func(z upstream.Zone) string {
			return z.Name + " " + z.City
		},
		csvHeader: []string{"id", "name", "city", "active", "couriers"},
		csvRecord: func(z upstream.Zone) []string {
			return []string{z.ID, z.Name, z.City, fmt.Sprintf("%t", z.Active), fmt.Sprintf("%d", z.Couriers)}
		},
	}, screens.platform.Zones)
}
