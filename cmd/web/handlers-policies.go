package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/cdms/internal/auth"
	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories"
)

type policiesTemplateData struct {
	BaseTemplateData
	Policies []models.Policy
}

type policyFormTemplateData struct {
	BaseTemplateData
	Form          models.PolicyInput
	Field         string
	Categories    []models.RecordType
	Organizations []string
	Roles         []models.Role
}

type policyTemplateData struct {
	BaseTemplateData
	Policy models.Policy
}

// requireAdmin renders a 403 page and returns false for anyone but administrators. Policies are admin only.
func (app *application) requireAdmin(w http.ResponseWriter, r *http.Request) (repositories.Caller, bool) {
	identity, c := caller(r)
	if err := auth.RequireRole(identity, models.RoleAdmin); err != nil {
		app.forbidden(w, r, err, "Access Denied - Admin only")
		return c, false
	}
	return c, true
}

func newPolicyFormTemplateData(r *http.Request, form models.PolicyInput) policyFormTemplateData {
	return policyFormTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Create Policy"),
		Form:             form,
		Categories:       models.RecordTypes,
		Organizations:    models.Organizations,
		Roles:            models.Roles,
	}
}

func (app *application) listPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := app.requireAdmin(w, r)
	if !ok {
		return
	}
	data := policiesTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Policies"),
	}
	policies, err := app.policies.List(ctx, c, models.PolicyFilter{Limit: parseLimit(r)})
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "list policies", errors.SlogError(err))
		data.Error = backend.Message(err, "Failed to load policies")
		policies = nil
	}
	data.Policies = policies
	app.render(w, r, http.StatusOK, "policies", data)
}

func (app *application) createPolicyForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.requireAdmin(w, r); !ok {
		return
	}
	app.render(w, r, http.StatusOK, "policy-create", newPolicyFormTemplateData(r, models.PolicyInput{}))
}

func (app *application) createPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := app.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}
	in := models.PolicyInput{
		Categories:   r.PostForm["categories"],
		AllowedOrgs:  r.PostForm["allowedOrgs"],
		AllowedRoles: r.PostForm["allowedRoles"],
	}.Normalize()

	if err := in.Validate(); err != nil {
		validationErr, _ := validationError(err)
		data := newPolicyFormTemplateData(r, in)
		data.Field = validationErr.Field
		data.Error = validationErr.Message
		app.render(w, r, http.StatusUnprocessableEntity, "policy-create", data)
		return
	}

	id, err := app.policies.Create(ctx, c, in)
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "create policy", errors.SlogError(err))
		app.redirect(w, r, "/policies/create", "error", backend.Message(err, "Failed to create policy"))
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "created policy", slog.String("policy_id", id),
		slog.String("categories", strings.Join(in.Categories, ",")))
	app.redirect(w, r, "/policies/"+id, "success", "Policy created successfully")
}

func (app *application) policyDetail(w http.ResponseWriter, r *http.Request) {
	c, ok := app.requireAdmin(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	policy, err := app.policies.Get(r.Context(), c, id)
	if err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "get policy", slog.String("policy_id", id)),
			"Policy not found", "/policies", "Policy not found")
		return
	}
	app.render(w, r, http.StatusOK, "policy", policyTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Policy "+policy.PolicyID),
		Policy:           policy,
	})
}

func (app *application) deletePolicyForm(w http.ResponseWriter, r *http.Request) {
	c, ok := app.requireAdmin(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	policy, err := app.policies.Get(r.Context(), c, id)
	if err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "get policy", slog.String("policy_id", id)),
			"Policy not found", "/policies", "Policy not found")
		return
	}
	app.render(w, r, http.StatusOK, "delete",
		newDeleteTemplateData(r, "policy", policy.PolicyID, "/policies/"+id))
}

func (app *application) deletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := app.requireAdmin(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := app.policies.Delete(ctx, c, id); err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "delete policy", slog.String("policy_id", id)),
			"Policy not found", "/policies", "Failed to delete policy")
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "deleted policy", slog.String("policy_id", id))
	app.redirect(w, r, "/policies", "success", "Policy deleted successfully")
}
