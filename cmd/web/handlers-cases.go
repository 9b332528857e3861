package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
)

type casesTemplateData struct {
	BaseTemplateData
	Cases     []models.Case
	Filter    models.CaseFilter
	Statuses  []models.CaseStatus
	CanCreate bool
}

type caseFormTemplateData struct {
	BaseTemplateData
	Form     models.CaseInput
	Field    string
	Statuses []models.CaseStatus
	Policies []models.Policy
}

type caseTemplateData struct {
	BaseTemplateData
	Case      models.Case
	Records   []models.Record
	CanDelete bool
	CanUpload bool
}

func (app *application) listCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	query := r.URL.Query()
	filter := models.CaseFilter{
		Status:       models.CaseStatus(query.Get("status")),
		Jurisdiction: strings.TrimSpace(query.Get("jurisdiction")),
		Limit:        parseLimit(r),
	}
	data := casesTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Cases"),
		Filter:           filter,
		Statuses:         models.CaseStatuses,
		CanCreate:        identity.Role.Can(models.PermissionCreateCase),
	}

	cases, err := app.cases.List(ctx, c, filter)
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "list cases", errors.SlogError(err))
		data.Error = backend.Message(err, "Failed to load cases")
		cases = nil
	}
	data.Cases = cases
	app.render(w, r, http.StatusOK, "cases", data)
}

func (app *application) createCaseForm(w http.ResponseWriter, r *http.Request) {
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionCreateCase) {
		return
	}
	data := caseFormTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Create Case"),
		Form:             models.CaseInput{Status: models.CaseStatusOpen},
		Statuses:         models.CaseStatuses,
	}

	// Policies are only suggestions for the policy field.
	policies, err := app.policies.List(r.Context(), c, models.PolicyFilter{})
	if err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "could not load policies for case form",
			errors.SlogError(err))
	}
	data.Policies = policies
	app.render(w, r, http.StatusOK, "case-create", data)
}

func (app *application) createCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionCreateCase) {
		return
	}
	in := models.CaseInput{
		Title:        strings.TrimSpace(r.PostFormValue("title")),
		Description:  strings.TrimSpace(r.PostFormValue("description")),
		Status:       models.CaseStatus(r.PostFormValue("status")),
		Jurisdiction: strings.TrimSpace(r.PostFormValue("jurisdiction")),
		CaseType:     strings.TrimSpace(r.PostFormValue("caseType")),
		PolicyID:     strings.TrimSpace(r.PostFormValue("policyId")),
	}
	if err := in.Validate(); err != nil {
		validationErr, _ := validationError(err)
		data := caseFormTemplateData{
			BaseTemplateData: newBaseTemplateData(r, "Create Case"),
			Form:             in,
			Field:            validationErr.Field,
			Statuses:         models.CaseStatuses,
		}
		data.Error = validationErr.Message
		app.render(w, r, http.StatusUnprocessableEntity, "case-create", data)
		return
	}

	id, err := app.cases.Create(ctx, c, in)
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "create case", errors.SlogError(err))
		app.redirect(w, r, "/cases/create", "error", backend.Message(err, "Failed to create case"))
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "created case", slog.String("case_id", id))
	app.redirect(w, r, "/cases/"+id, "success", "Case created successfully")
}

func (app *application) caseDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	id := r.PathValue("id")

	cs, err := app.cases.Get(ctx, c, id)
	if err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "get case", slog.String("case_id", id)),
			"Case not found", "/cases", "Case not found")
		return
	}

	records, err := app.records.ListByCase(ctx, c, id)
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "could not list records of case",
			slog.String("case_id", id), errors.SlogError(err))
	}

	app.render(w, r, http.StatusOK, "case", caseTemplateData{
		BaseTemplateData: newBaseTemplateData(r, cs.Title),
		Case:             cs,
		Records:          records,
		CanDelete:        identity.Role.Can(models.PermissionDeleteCase),
		CanUpload:        identity.Role.Can(models.PermissionUploadRecord),
	})
}

func (app *application) deleteCaseForm(w http.ResponseWriter, r *http.Request) {
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionDeleteCase) {
		return
	}
	id := r.PathValue("id")
	cs, err := app.cases.Get(r.Context(), c, id)
	if err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "get case", slog.String("case_id", id)),
			"Case not found", "/cases", "Case not found")
		return
	}
	app.render(w, r, http.StatusOK, "delete", newDeleteTemplateData(r, "case", cs.Title, "/cases/"+id))
}

func (app *application) deleteCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionDeleteCase) {
		return
	}
	id := r.PathValue("id")
	if err := app.cases.Delete(ctx, c, id); err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "delete case", slog.String("case_id", id)),
			"Case not found", "/cases", "Failed to delete case")
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "deleted case", slog.String("case_id", id))
	app.redirect(w, r, "/cases", "success", "Case deleted successfully")
}

type deleteTemplateData struct {
	BaseTemplateData
	Kind  string
	Label string
	// Path is the resource path. The confirmation form posts to Path/delete.
	Path string
}

func newDeleteTemplateData(r *http.Request, kind, label, path string) deleteTemplateData {
	return deleteTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Delete "+kind),
		Kind:             kind,
		Label:            label,
		Path:             path,
	}
}
