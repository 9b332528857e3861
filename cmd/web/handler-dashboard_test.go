package main

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories/memory"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "jane_smith", memory.DemoPassword)

	doc, err := client.GetDoc(ctx, "/dashboard")
	require.NoError(t, err)
	require.Equal(t, "3", doc.Find("#total-cases").Text())
	require.Equal(t, "2", doc.Find("#total-records").Text())
	require.Equal(t, "2", doc.Find("#pending-actions").Text())
	require.Equal(t, 3, doc.Find("#recent-cases tbody tr").Length())
}

func TestDashboard_Live(t *testing.T) {
	ctx, server, fake := startLiveServer(t, nil)
	client := server.Client()
	for i := range 12 {
		status := models.CaseStatusOpen
		if i%3 == 0 {
			status = models.CaseStatusClosed
		}
		fake.AddCase(models.Case{
			ID:        fmt.Sprintf("case-%03d", i),
			Title:     fmt.Sprintf("Case %d", i),
			Status:    status,
			CreatedAt: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	fake.Handle("GET /records", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	login(ctx, t, client, "jane_smith", "pw123")

	doc, err := client.GetDoc(ctx, "/dashboard")
	require.NoError(t, err)
	// Only the latest ten cases are fetched and four of them are closed.
	require.Equal(t, "10", doc.Find("#total-cases").Text())
	require.Equal(t, "6", doc.Find("#pending-actions").Text())
	require.Equal(t, 5, doc.Find("#recent-cases tbody tr").Length())
	// The failed records listing only zeroes its own counter.
	require.Equal(t, "0", doc.Find("#total-records").Text())
	require.Zero(t, doc.Find(".alert-error").Length())

	requests := fake.Requests("GET /cases")
	require.Equal(t, "10", requests[len(requests)-1].Query.Get("limit"))
}
