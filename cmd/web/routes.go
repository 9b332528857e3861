package main

import (
	"io/fs"
	"net/http"

	htmxmiddleware "github.com/donseba/go-htmx/middleware"
	"github.com/justinas/alice"
	"github.com/myrjola/cdms/ui"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(ui.Files, "static")
	if err != nil {
		panic(err) // The static directory is embedded at compile time.
	}
	mux.Handle("GET /static/", cacheForeverHeaders(http.StripPrefix("/static", http.FileServerFS(static))))
	mux.HandleFunc("GET /api/healthy", app.healthy)

	// Downloads stream for as long as the file takes, the rest is bounded by the handler timeout.
	streaming := alice.New(
		htmxmiddleware.MiddleWare,
		app.sessionManager.LoadAndSave,
		app.gate.Authenticate,
		app.noSurf,
		commonContext,
	)
	session := alice.New(app.timeout).Extend(streaming)
	protected := session.Append(app.gate.RequireAuthentication)

	mux.Handle("GET /{$}", session.ThenFunc(app.home))

	mux.Handle("GET /auth/login", session.ThenFunc(app.loginForm))
	mux.Handle("POST /auth/login", session.ThenFunc(app.loginPost))
	mux.Handle("GET /auth/register", session.ThenFunc(app.registerForm))
	mux.Handle("POST /auth/register", session.ThenFunc(app.registerPost))
	mux.Handle("GET /auth/logout", session.ThenFunc(app.logout))
	mux.Handle("POST /auth/logout", session.ThenFunc(app.logout))

	mux.Handle("GET /dashboard", protected.ThenFunc(app.dashboard))
	mux.Handle("GET /profile", protected.ThenFunc(app.profile))

	mux.Handle("GET /cases", protected.ThenFunc(app.listCases))
	mux.Handle("GET /cases/create", protected.ThenFunc(app.createCaseForm))
	mux.Handle("POST /cases", protected.ThenFunc(app.createCase))
	mux.Handle("GET /cases/{id}", protected.ThenFunc(app.caseDetail))
	mux.Handle("GET /cases/{id}/delete", protected.ThenFunc(app.deleteCaseForm))
	mux.Handle("POST /cases/{id}/delete", protected.ThenFunc(app.deleteCase))

	mux.Handle("GET /records", protected.ThenFunc(app.listRecords))
	mux.Handle("GET /records/create", protected.ThenFunc(app.createRecordForm))
	mux.Handle("POST /records", alice.New(app.limitUpload).Extend(protected).ThenFunc(app.createRecord))
	mux.Handle("GET /records/{id}", protected.ThenFunc(app.recordDetail))
	mux.Handle("GET /records/{id}/download",
		streaming.Append(app.gate.RequireAuthentication).ThenFunc(app.downloadRecord))
	mux.Handle("GET /records/{id}/delete", protected.ThenFunc(app.deleteRecordForm))
	mux.Handle("POST /records/{id}/delete", protected.ThenFunc(app.deleteRecord))

	mux.Handle("GET /policies", protected.ThenFunc(app.listPolicies))
	mux.Handle("GET /policies/create", protected.ThenFunc(app.createPolicyForm))
	mux.Handle("POST /policies", protected.ThenFunc(app.createPolicy))
	mux.Handle("GET /policies/{id}", protected.ThenFunc(app.policyDetail))
	mux.Handle("GET /policies/{id}/delete", protected.ThenFunc(app.deletePolicyForm))
	mux.Handle("POST /policies/{id}/delete", protected.ThenFunc(app.deletePolicy))

	mux.Handle("/", session.ThenFunc(app.notFound))

	return app.recoverPanic(app.logRequest(app.secureHeaders(mux)))
}
