package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
)

const (
	dashboardFetchLimit = 10
	dashboardRecentMax  = 5
)

type dashboardTemplateData struct {
	BaseTemplateData
	TotalCases     int
	TotalRecords   int
	PendingActions int
	RecentCases    []models.Case
}

// dashboard shows counts over the latest cases and records. A failing listing only zeroes its own figures
// unless the backend rejected the token.
func (app *application) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, c := caller(r)
	data := dashboardTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Dashboard"),
	}

	cases, err := app.cases.List(ctx, c, models.CaseFilter{Limit: dashboardFetchLimit})
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "dashboard could not list cases", errors.SlogError(err))
		cases = nil
	}
	data.TotalCases = len(cases)
	data.RecentCases = cases[:min(len(cases), dashboardRecentMax)]
	for _, cs := range cases {
		if cs.Status != models.CaseStatusClosed {
			data.PendingActions++
		}
	}

	records, err := app.records.List(ctx, c, models.RecordFilter{Limit: dashboardFetchLimit})
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "dashboard could not list records", errors.SlogError(err))
		records = nil
	}
	data.TotalRecords = len(records)

	app.render(w, r, http.StatusOK, "dashboard", data)
}
