package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/myrjola/cdms/internal/auth"
	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/contexthelpers"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories"
)

type errorTemplateData struct {
	BaseTemplateData
	Status  int
	Message string
}

// errorPage renders the error view. It falls back to plain text when the view itself fails.
func (app *application) errorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := errorTemplateData{
		BaseTemplateData: newBaseTemplateData(r, http.StatusText(status)),
		Status:           status,
		Message:          message,
	}
	// The error page has its own message, flashes from the query would only confuse.
	data.Success, data.Error = "", ""
	if err := app.renderPage(w, r, status, "error", data); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "render error page", errors.SlogError(err))
		http.Error(w, message, status)
	}
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", r.Method), slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
	app.errorPage(w, r, http.StatusInternalServerError, "Something went wrong")
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", r.Method), slog.String("uri", r.URL.RequestURI()), slog.String("message", message))
	app.errorPage(w, r, status, message)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, "Page not found")
}

func (app *application) forbidden(w http.ResponseWriter, r *http.Request, err error, message string) {
	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "forbidden",
		slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
	app.errorPage(w, r, http.StatusForbidden, message)
}

// redirect sends the user to target, adding a flash message under key when message is not empty.
func (app *application) redirect(w http.ResponseWriter, r *http.Request, target, key, message string) {
	if message != "" {
		target = fmt.Sprintf("%s?%s", target, url.Values{key: {message}}.Encode())
	}
	app.gate.Redirect(w, r, target)
}

// caller returns the identity loaded by the authentication middleware and the matching repository caller.
func caller(r *http.Request) (models.Identity, repositories.Caller) {
	identity, _ := contexthelpers.Identity(r.Context())
	return identity, repositories.CallerFrom(identity)
}

// authorize renders a 403 page and returns false when identity lacks permission.
func (app *application) authorize(
	w http.ResponseWriter,
	r *http.Request,
	identity models.Identity,
	permission models.Permission,
) bool {
	if err := auth.Authorize(identity, permission); err != nil {
		app.forbidden(w, r, err, "Access Denied - Insufficient permissions")
		return false
	}
	return true
}

// endSessionIfUnauthorized ends the session and sends the user to the login page when the backend rejected
// the access token. It reports whether the response has been written.
func (app *application) endSessionIfUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "backend rejected token, ending session",
		errors.SlogError(err))
	app.gate.Logout(r.Context())
	app.redirect(w, r, auth.LoginPath, "error", "Your session has expired. Please log in again.")
	return true
}

// gatewayFailure handles a failed lookup or deletion of a single resource.
//
// Missing resources get the not found view. An expired backend token ends the session. Everything else is
// reported on the fallback page as an error flash.
func (app *application) gatewayFailure(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	notFoundMessage string,
	fallbackPath string,
	fallbackMessage string,
) {
	switch {
	case app.endSessionIfUnauthorized(w, r, err):
	case errors.Is(err, backend.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, notFoundMessage)
	default:
		app.logger.LogAttrs(r.Context(), slog.LevelError, "gateway call failed",
			slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
		app.redirect(w, r, fallbackPath, "error", backend.Message(err, fallbackMessage))
	}
}

// parseLimit reads a positive limit from the query. Anything else means no limit.
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// validationError returns the validation error within err if there is one.
func validationError(err error) (*models.ValidationError, bool) {
	var validationErr *models.ValidationError
	ok := errors.As(err, &validationErr)
	return validationErr, ok
}
