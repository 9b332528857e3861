package main

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/myrjola/cdms/internal/backend/backendtest"
	"github.com/myrjola/cdms/internal/e2etest"
	"github.com/myrjola/cdms/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Live(t *testing.T) {
	ctx, server, fake := startLiveServer(t, nil)
	client := server.Client()

	page, err := client.Login(ctx, "jane_smith", "pw123")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.Status)
	require.Equal(t, "/dashboard", page.URL.Path)
	require.Equal(t, "Logged in successfully", flash(page.Doc, "success"))
	require.Equal(t, "Jane Smith", page.Doc.Find(".user-name").Text())

	// The access token from the login response authenticates the following backend calls.
	requests := fake.Requests("GET /cases")
	require.NotEmpty(t, requests)
	require.Equal(t, "Bearer "+backendtest.Token("jane_smith"), requests[len(requests)-1].Authorization)
	require.Equal(t, "Org1MSP", requests[len(requests)-1].Query.Get("org"))

	doc, err := client.GetDoc(ctx, "/profile")
	require.NoError(t, err)
	profile := doc.Find("#profile").Text()
	assert.Contains(t, profile, "jane_smith")
	assert.Contains(t, profile, "jane@example.com")
	assert.Contains(t, profile, "Investigator")
}

func TestLogin_Failures(t *testing.T) {
	ctx, server, fake := startLiveServer(t, nil)
	client := server.Client()

	t.Run("missing fields", func(t *testing.T) {
		before := fake.TotalCalls()
		page, err := client.Submit(ctx, "/auth/login", "/auth/login", url.Values{"username": {"jane_smith"}})
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, page.Status)
		require.Equal(t, "Username and password are required", flash(page.Doc, "error"))
		require.Equal(t, before, fake.TotalCalls())
	})

	t.Run("bad credentials", func(t *testing.T) {
		page, err := client.Login(ctx, "jane_smith", "wrong")
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, page.Status)
		require.Equal(t, "Invalid credentials", flash(page.Doc, "error"))
		val, _ := page.Doc.Find("input[name=username]").Attr("value")
		require.Equal(t, "jane_smith", val)

		page, err = client.GetPage(ctx, "/dashboard")
		require.NoError(t, err)
		require.Equal(t, "/auth/login", page.URL.Path)
	})
}

func TestRequireAuthentication(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()

	for _, path := range []string{"/dashboard", "/profile", "/cases", "/cases/case-001", "/records", "/policies"} {
		page, err := client.GetPage(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "/auth/login", page.URL.Path, path)
	}

	// htmx requests get a client-side redirect instead of a 303.
	resp, err := client.Do(ctx, http.MethodGet, "/dashboard", http.Header{"HX-Request": {"true"}}, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/auth/login", resp.Header.Get("HX-Redirect"))
}

func TestLogout(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "john_doe", memory.DemoPassword)

	page, err := client.Logout(ctx)
	require.NoError(t, err)
	require.Equal(t, "/", page.URL.Path)
	require.Equal(t, "Logged out successfully", flash(page.Doc, "success"))
	require.Zero(t, page.Doc.Find("form[action='/auth/logout']").Length())

	page, err = client.GetPage(ctx, "/dashboard")
	require.NoError(t, err)
	require.Equal(t, "/auth/login", page.URL.Path)
}

func TestLoginForm_RedirectsAuthenticatedUsers(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "jane_smith", memory.DemoPassword)

	for _, path := range []string{"/auth/login", "/auth/register"} {
		page, err := client.GetPage(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "/dashboard", page.URL.Path)
	}
}

func TestRegister(t *testing.T) {
	form := url.Values{
		"username":        {"new_user"},
		"password":        {"secret"},
		"confirmPassword": {"secret"},
		"fullName":        {"New User"},
		"email":           {"new@example.com"},
		"role":            {"forensics"},
		"organizationId":  {"Org2MSP"},
	}

	t.Run("mismatched passwords never reach the backend", func(t *testing.T) {
		ctx, server, fake := startLiveServer(t, nil)
		values := url.Values{}
		for k, v := range form {
			values[k] = v
		}
		values.Set("confirmPassword", "other")

		page, err := server.Client().Submit(ctx, "/auth/register", "/auth/register", values)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, page.Status)
		require.Equal(t, "Passwords do not match", flash(page.Doc, "error"))
		require.Zero(t, fake.Calls("POST /users/register"))
		require.Zero(t, fake.Calls("POST /users/login"))
		password, _ := page.Doc.Find("input[name=password]").Attr("value")
		require.Empty(t, password)
	})

	t.Run("registers and logs in", func(t *testing.T) {
		ctx, server, fake := startLiveServer(t, nil)
		page, err := server.Client().Submit(ctx, "/auth/register", "/auth/register", form)
		require.NoError(t, err)
		require.Equal(t, "/dashboard", page.URL.Path)
		require.Equal(t, "Registered and logged in", flash(page.Doc, "success"))
		require.Equal(t, 1, fake.Calls("POST /users/register"))

		page, err = server.Client().GetPage(ctx, "/profile")
		require.NoError(t, err)
		require.Contains(t, page.Doc.Find("#profile").Text(), "Forensics Specialist")
	})

	t.Run("duplicate username", func(t *testing.T) {
		ctx, server, _ := startLiveServer(t, nil)
		values := url.Values{}
		for k, v := range form {
			values[k] = v
		}
		values.Set("username", "jane_smith")

		page, err := server.Client().Submit(ctx, "/auth/register", "/auth/register", values)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, page.Status)
		require.Equal(t, "Username already exists", flash(page.Doc, "error"))
	})

	t.Run("login after registration fails", func(t *testing.T) {
		ctx, server, fake := startLiveServer(t, nil)
		fake.Handle("POST /users/login", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		page, err := server.Client().Submit(ctx, "/auth/register", "/auth/register", form)
		require.NoError(t, err)
		require.Equal(t, "/auth/login", page.URL.Path)
		require.Equal(t, "Registration successful. Please log in.", flash(page.Doc, "success"))
	})
}

func TestCSRFProtection(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()

	page, err := client.Post(ctx, "/auth/login", url.Values{
		"username": {"john_doe"},
		"password": {memory.DemoPassword},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, page.Status)
	require.Equal(t, "Invalid CSRF token", errorMessage(page.Doc))
}

func TestExpiredToken_EndsSession(t *testing.T) {
	expired := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
	}
	caseForm := url.Values{
		"title":        {"Arson at the docks"},
		"status":       {"Open"},
		"jurisdiction": {"Harbor District"},
		"caseType":     {"Arson"},
	}

	tests := []struct {
		name    string
		pattern string
		visit   func(ctx context.Context, client *e2etest.Client) (*e2etest.Page, error)
	}{
		{name: "case listing", pattern: "GET /cases", visit: getPage("/cases")},
		{name: "record listing", pattern: "GET /records", visit: getPage("/records")},
		{name: "policy listing", pattern: "GET /policies", visit: getPage("/policies")},
		{name: "dashboard cases", pattern: "GET /cases", visit: getPage("/dashboard")},
		{name: "dashboard records", pattern: "GET /records", visit: getPage("/dashboard")},
		{name: "case creation", pattern: "POST /cases", visit: func(ctx context.Context, client *e2etest.Client) (*e2etest.Page, error) {
			return client.Submit(ctx, "/cases/create", "/cases", caseForm)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, server, fake := startLiveServer(t, nil)
			client := server.Client()
			login(ctx, t, client, "john_doe", "pw123")

			fake.Handle(tt.pattern, expired)
			page, err := tt.visit(ctx, client)
			require.NoError(t, err)
			require.Equal(t, "/auth/login", page.URL.Path)
			require.Equal(t, "Your session has expired. Please log in again.", flash(page.Doc, "error"))

			page, err = client.GetPage(ctx, "/profile")
			require.NoError(t, err)
			require.Equal(t, "/auth/login", page.URL.Path)
		})
	}
}

func getPage(path string) func(ctx context.Context, client *e2etest.Client) (*e2etest.Page, error) {
	return func(ctx context.Context, client *e2etest.Client) (*e2etest.Page, error) {
		return client.GetPage(ctx, path)
	}
}
