// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console

import (
	stdctx "context"
	"net/http"
	"time"

	"github.com/nvbach/mercato/internal/fetch"
	requestutil "github.com/nvbach/mercato/internal/platform/request"
	"github.com/nvbach/mercato/internal/platform/respond"
	"github.com/nvbach/mercato/internal/platform/validate"
	"github.com/nvbach/mercato/internal/upstream"
)

// dateLayout is the wire format for analytics range bounds.
const dateLayout = "2006-01-02"

// defaultRangeDays is the window served when no range is requested: the
// last 30 days ending today, computed per request.
const defaultRangeDays = 30

// analyticsView is the analytics screen payload: the requested period, the
// immediately preceding period of equal length, and the trend deltas
// between the two.
type analyticsView struct {
	Start    string                    `json:"start"`
	End      string                    `json:"end"`
	Report   *upstream.AnalyticsReport `json:"report"`
	Previous *upstream.AnalyticsReport `json:"previous"`
	Trends   analyticsTrends           `json:"trends"`
}

// analyticsTrends holds percentage deltas against the previous period.
// A nil delta means "undefined" (previous period was zero), which the
// dashboard renders as a dash instead of a misleading percentage.
type analyticsTrends struct {
	OrdersPct   *float64 `json:"orders_pct"`
	RevenuePct  *float64 `json:"revenue_pct"`
	NewUsersPct *float64 `json:"new_users_pct"`
}

/*
analytics handles GET /console/analytics.

Query:
  - start, end: Inclusive range bounds, "YYYY-MM-DD". Default: last 30 days.
  - refresh=1: Force a re-fetch of the current range.

Description: The date range is the collection's dependency key — changing
either bound issues a fresh load, re-requesting the same range serves the
cached snapshot. Trends always compare against the previous period of the
same series, never a fixed reference date.
*/
func (screens *Screens) analytics(writer http.ResponseWriter, request *http.Request) {
	current, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 1. Resolve & Validate the Range ───────────────────────────────────
	startRaw := request.URL.Query().Get("start")
	endRaw := request.URL.Query().Get("end")
	if startRaw == "" && endRaw == "" {
		end := time.Now().UTC()
		start := end.AddDate(0, 0, -(defaultRangeDays - 1))
		startRaw, endRaw = start.Format(dateLayout), end.Format(dateLayout)
	}

	start, startErr := time.Parse(dateLayout, startRaw)
	end, endErr := time.Parse(dateLayout, endRaw)

	validator := &validate.Validator{}
	validator.
		Custom("start", startErr != nil, "Must be a date in YYYY-MM-DD format").
		Custom("end", endErr != nil, "Must be a date in YYYY-MM-DD format")
	if !validator.HasErrors() {
		validator.Custom("start", start.After(end), "Must not be after end")
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Load the Collection ────────────────────────────────────────────
	sessionID := current.ID
	collection := collectionFor(screens.registry, sessionID, "analytics", func() *fetch.Collection[analyticsView] {
		return fetch.New("analytics",
			screens.fetchAnalytics,
			fetch.WithLogger[analyticsView](screens.log),
			fetch.OnUnauthorized[analyticsView](func() {
				screens.manager.Logout(stdctx.Background(), sessionID)
			}),
		)
	})

	loadCtx := stdctx.WithoutCancel(request.Context())
	if wantsRefresh(request) {
		collection.Refetch(loadCtx, current.Token, startRaw, endRaw)
	} else {
		collection.Load(loadCtx, current.Token, startRaw, endRaw)
	}

	state := awaitSettled(request.Context(), collection)
	respond.JSON(writer, http.StatusOK, state)
}

// fetchAnalytics loads the requested period and its predecessor, then
// derives the trend deltas.
func (screens *Screens) fetchAnalytics(ctx stdctx.Context, deps []any) (*analyticsView, error) {
	token, _ := deps[0].(string)
	startRaw, _ := deps[1].(string)
	endRaw, _ := deps[2].(string)

	start, _ := time.Parse(dateLayout, startRaw)
	end, _ := time.Parse(dateLayout, endRaw)

	// Previous period: same length, ending the day before this one starts.
	days := int(end.Sub(start).Hours()/24) + 1
	previousEnd := start.AddDate(0, 0, -1)
	previousStart := previousEnd.AddDate(0, 0, -(days - 1))

	report, err := screens.platform.Analytics(ctx, token, startRaw, endRaw)
	if err != nil {
		return nil, err
	}

	previous, err := screens.platform.Analytics(ctx, token, previousStart.Format(dateLayout), previousEnd.Format(dateLayout))
	if err != nil {
		return nil, err
	}

	return &analyticsView{
		Start:    startRaw,
		End:      endRaw,
		Report:   report,
		Previous: previous,
		Trends: analyticsTrends{
			OrdersPct:   trendDelta(float64(report.TotalOrders), float64(previous.TotalOrders)),
			RevenuePct:  trendDelta(report.TotalRevenue, previous.TotalRevenue),
			NewUsersPct: trendDelta(float64(report.NewUsers), float64(previous.NewUsers)),
		},
	}, nil
}

// trendDelta computes the percentage change current vs previous, or nil
// when the previous value is zero and the ratio is undefined.
func trendDelta(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	delta := (current - previous) / previous * 100
	return &delta
}
