package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/cdms/internal/auth"
	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/contexthelpers"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
)

type loginTemplateData struct {
	BaseTemplateData
	Username string
}

type registerTemplateData struct {
	BaseTemplateData
	Form          models.RegisterInput
	Roles         []models.Role
	Organizations []string
}

func (app *application) loginForm(w http.ResponseWriter, r *http.Request) {
	if contexthelpers.IsAuthenticated(r.Context()) {
		app.redirect(w, r, "/dashboard", "", "")
		return
	}
	app.render(w, r, http.StatusOK, "login", loginTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Login"),
	})
}

func (app *application) loginPost(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	_, err := app.gate.Login(r.Context(), username, r.PostFormValue("password"))
	if err == nil {
		app.redirect(w, r, "/dashboard", "success", "Logged in successfully")
		return
	}

	data := loginTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Login"),
		Username:         username,
	}
	data.Success = ""
	if validationErr, ok := validationError(err); ok {
		data.Error = validationErr.Message
		app.render(w, r, http.StatusBadRequest, "login", data)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "login failed",
		slog.String("username", username), errors.SlogError(err))
	data.Error = backend.Message(err, "Login failed")
	app.render(w, r, http.StatusUnauthorized, "login", data)
}

func (app *application) newRegisterTemplateData(r *http.Request, form models.RegisterInput) registerTemplateData {
	// Passwords are never echoed back.
	form.Password, form.ConfirmPassword = "", ""
	return registerTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Register"),
		Form:             form,
		Roles:            models.Roles,
		Organizations:    models.Organizations,
	}
}

func (app *application) registerForm(w http.ResponseWriter, r *http.Request) {
	if contexthelpers.IsAuthenticated(r.Context()) {
		app.redirect(w, r, "/dashboard", "", "")
		return
	}
	app.render(w, r, http.StatusOK, "register", app.newRegisterTemplateData(r, models.RegisterInput{}))
}

func (app *application) registerPost(w http.ResponseWriter, r *http.Request) {
	in := models.RegisterInput{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		FullName:        strings.TrimSpace(r.PostFormValue("fullName")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Role:            models.Role(r.PostFormValue("role")),
		Organization:    r.PostFormValue("organizationId"),
	}
	_, err := app.gate.Register(r.Context(), in)
	switch {
	case err == nil:
		app.redirect(w, r, "/dashboard", "success", "Registered and logged in")
		return
	case errors.Is(err, auth.ErrRegisteredNotLoggedIn):
		app.redirect(w, r, auth.LoginPath, "success", "Registration successful. Please log in.")
		return
	}

	data := app.newRegisterTemplateData(r, in)
	data.Success = ""
	if validationErr, ok := validationError(err); ok {
		data.Error = validationErr.Message
	} else {
		app.logger.LogAttrs(r.Context(), slog.LevelInfo, "registration failed",
			slog.String("username", in.Username), errors.SlogError(err))
		data.Error = backend.Message(err, "Registration failed")
	}
	app.render(w, r, http.StatusBadRequest, "register", data)
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	app.gate.Logout(r.Context())
	app.redirect(w, r, "/", "success", "Logged out successfully")
}
