package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/cdms/internal/backend/backendtest"
	"github.com/myrjola/cdms/internal/e2etest"
	"github.com/myrjola/cdms/internal/models"
	"github.com/stretchr/testify/require"
)

// startServer starts the web server in mock mode with env overriding the defaults.
func startServer(t *testing.T, env map[string]string) (context.Context, *e2etest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lookupEnv := func(key string) (string, bool) {
		if v, ok := env[key]; ok {
			return v, true
		}
		switch key {
		case "PORT":
			return "0", true
		case "HOST":
			return "localhost", true
		case "BACKEND_MODE":
			return backendModeMock, true
		default:
			return "", false
		}
	}
	server, err := e2etest.StartServer(ctx, io.Discard, lookupEnv, run)
	require.NoError(t, err)
	return ctx, server
}

// startLiveServer starts the web server against a fake backend with jane_smith/pw123 as investigator and
// john_doe/pw123 as admin.
func startLiveServer(t *testing.T, env map[string]string) (context.Context, *e2etest.Server, *backendtest.Server) {
	t.Helper()
	fake := backendtest.New(t)
	fake.AddUser("jane_smith", "pw123", models.Profile{
		FullName:     "Jane Smith",
		Email:        "jane@example.com",
		Role:         "investigator",
		Organization: "Org1MSP",
	})
	fake.AddUser("john_doe", "pw123", models.Profile{FullName: "John Doe", Role: "admin", Organization: "Org1MSP"})

	merged := map[string]string{
		"BACKEND_MODE":    backendModeLive,
		"BACKEND_URL":     fake.URL,
		"BACKEND_TIMEOUT": "2s",
	}
	for k, v := range env {
		merged[k] = v
	}
	ctx, server := startServer(t, merged)
	return ctx, server, fake
}

// login signs the server's client in and requires the redirect to the dashboard.
func login(ctx context.Context, t *testing.T, client *e2etest.Client, username, password string) {
	t.Helper()
	page, err := client.Login(ctx, username, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.Status)
	require.Equal(t, "/dashboard", page.URL.Path)
}

// deleteTwice confirms the deletion at path from its confirmation page and posts the same form again.
func deleteTwice(ctx context.Context, t *testing.T, client *e2etest.Client, path string) (*e2etest.Page, *e2etest.Page) {
	t.Helper()
	doc, err := client.GetDoc(ctx, path+"/delete")
	require.NoError(t, err)
	token, ok := doc.Find("form[action='" + path + "/delete'] input[name=csrf_token]").Attr("value")
	require.True(t, ok)

	first, err := client.Post(ctx, path+"/delete", url.Values{"csrf_token": {token}})
	require.NoError(t, err)
	second, err := client.Post(ctx, path+"/delete", url.Values{"csrf_token": {token}})
	require.NoError(t, err)
	return first, second
}

func flash(doc *goquery.Document, kind string) string {
	return doc.Find(".alert-" + kind + " p").Text()
}

func errorMessage(doc *goquery.Document) string {
	return doc.Find(".error-message").Text()
}
