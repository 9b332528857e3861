package backend_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/backend/backendtest"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, fake *backendtest.Server) *backend.Client {
	t.Helper()
	client, err := backend.NewClient(fake.URL, time.Second, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := backend.NewClient("localhost:3000", time.Second, testhelpers.NewLogger(io.Discard))
	require.Error(t, err)
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.New(t)
	fake.AddUser("jane_smith", "pw123", models.Profile{FullName: "Jane Smith", Role: "investigator"})
	client := newClient(t, fake)

	token, err := client.Login(ctx, "jane_smith", "pw123")
	require.NoError(t, err)
	require.Equal(t, backendtest.Token("jane_smith"), token)

	profile, err := client.Profile(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "Jane Smith", profile.FullName)
	requests := fake.Requests("GET /users/profile")
	require.Len(t, requests, 1)
	require.Equal(t, "Bearer "+token, requests[0].Authorization)

	_, err = client.Login(ctx, "jane_smith", "wrong")
	require.ErrorIs(t, err, backend.ErrUnauthorized)
	require.Equal(t, "Invalid credentials", backend.Message(err, "Login failed"))
}

func TestClient_LoginWithoutToken(t *testing.T) {
	fake := backendtest.New(t)
	fake.Handle("POST /users/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Account locked"}`))
	})
	client := newClient(t, fake)

	_, err := client.Login(context.Background(), "jane_smith", "pw123")
	require.ErrorIs(t, err, backend.ErrUnauthorized)
	require.Equal(t, "Account locked", backend.Message(err, "Login failed"))
}

func TestClient_Register(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.New(t)
	client := newClient(t, fake)

	in := models.RegisterInput{
		Username: "new_user",
		Password: "secret",
		FullName: "New User",
		Email:    "new@example.com",
	}.WithDefaults()
	require.NoError(t, client.Register(ctx, in))

	err := client.Register(ctx, in)
	require.Equal(t, http.StatusConflict, backend.StatusCode(err))
	require.Equal(t, "Username already exists", backend.Message(err, "Registration failed"))
}

func TestClient_GetJSON(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.New(t)
	fake.AddUser("john_doe", "password", models.Profile{})
	client := newClient(t, fake)
	token, err := client.Login(ctx, "john_doe", "password")
	require.NoError(t, err)
	auth := backend.Auth{Token: token, Org: "Org1MSP"}

	t.Run("attaches org and drops empty query values", func(t *testing.T) {
		var cases []models.Case
		err = client.GetJSON(ctx, auth, "/cases", url.Values{"status": {"Open"}, "jurisdiction": {""}}, &cases)
		require.NoError(t, err)
		requests := fake.Requests("GET /cases")
		require.NotEmpty(t, requests)
		last := requests[len(requests)-1]
		assert.Equal(t, "Org1MSP", last.Query.Get("org"))
		assert.Equal(t, "Open", last.Query.Get("status"))
		assert.False(t, last.Query.Has("jurisdiction"))
	})

	t.Run("not found", func(t *testing.T) {
		var c models.Case
		err = client.GetJSON(ctx, auth, "/cases/unknown", nil, &c)
		require.ErrorIs(t, err, backend.ErrNotFound)
		require.Equal(t, "Case not found", backend.Message(err, "fallback"))
	})

	t.Run("empty body", func(t *testing.T) {
		fake.Handle("GET /records", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		var records []models.Record
		err = client.GetJSON(ctx, auth, "/records", nil, &records)
		require.ErrorIs(t, err, backend.ErrEmptyBody)
	})

	t.Run("unparseable body", func(t *testing.T) {
		fake.Handle("GET /records", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"id":`))
		})
		var records []models.Record
		err = client.GetJSON(ctx, auth, "/records", nil, &records)
		require.ErrorIs(t, err, backend.ErrEmptyBody)
	})

	t.Run("well-formed body of the wrong shape", func(t *testing.T) {
		for name, body := range map[string]string{
			"object instead of array": `{"message":"ok"}`,
			"field type mismatch":     `[{"id":"record-9","createdAt":1731196800}]`,
		} {
			fake.Handle("GET /records", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			var records []models.Record
			err = client.GetJSON(ctx, auth, "/records", nil, &records)
			require.Error(t, err, name)
			require.NotErrorIs(t, err, backend.ErrEmptyBody, name)
		}
	})

	t.Run("error without message", func(t *testing.T) {
		fake.Handle("GET /policies", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		var policies []models.Policy
		err = client.GetJSON(ctx, auth, "/policies", nil, &policies)
		require.Equal(t, http.StatusBadGateway, backend.StatusCode(err))
		require.Equal(t, "Failed to load policies", backend.Message(err, "Failed to load policies"))
	})
}

func TestClient_Timeout(t *testing.T) {
	fake := backendtest.New(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	fake.Handle("GET /cases", func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	client, err := backend.NewClient(fake.URL, 50*time.Millisecond, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)

	start := time.Now()
	var cases []models.Case
	err = client.GetJSON(context.Background(), backend.Auth{Token: "t"}, "/cases", nil, &cases)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
	var backendErr *backend.Error
	require.False(t, errors.As(err, &backendErr))
}

func TestClient_MultipartAndStream(t *testing.T) {
	ctx := context.Background()
	fake := backendtest.New(t)
	fake.AddUser("alice_forensics", "password", models.Profile{})
	client := newClient(t, fake)
	token, err := client.Login(ctx, "alice_forensics", "password")
	require.NoError(t, err)
	auth := backend.Auth{Token: token, Org: "Org1MSP"}

	var created struct {
		RecordID string `json:"recordId"`
	}
	err = client.PostMultipart(ctx, auth, "/records",
		[][2]string{{"caseId", "case-001"}, {"recordType", "Evidence"}, {"policyId", ""}},
		backend.File{
			FieldName:   "file",
			Filename:    `scene "1".png`,
			ContentType: "image/png",
			Content:     strings.NewReader("png bytes"),
		},
		&created)
	require.NoError(t, err)
	require.NotEmpty(t, created.RecordID)

	var record models.Record
	require.NoError(t, client.GetJSON(ctx, auth, "/records/"+created.RecordID, nil, &record))
	require.Equal(t, "case-001", record.CaseID)
	require.Equal(t, models.RecordTypeEvidence, record.RecordType)
	require.Empty(t, record.PolicyID)

	stream, err := client.GetStream(ctx, auth, "/records/"+created.RecordID)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, stream.Body.Close())
	}()
	content, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	require.Equal(t, "png bytes", string(content))
	require.Equal(t, "image/png", stream.ContentType)
	require.Empty(t, stream.ContentDisposition)

	_, err = client.GetStream(ctx, auth, "/records/record-missing")
	require.ErrorIs(t, err, backend.ErrNotFound)

	require.NoError(t, client.Delete(ctx, auth, "/records/"+created.RecordID))
	require.ErrorIs(t, client.Delete(ctx, auth, "/records/"+created.RecordID), backend.ErrNotFound)
}
