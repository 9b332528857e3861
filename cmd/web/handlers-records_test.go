package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/cdms/internal/e2etest"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find("#records .record-row td:first-child a").Each(func(_ int, s *goquery.Selection) {
		ids = append(ids, s.Text())
	})
	return ids
}

func TestListRecords(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "alice_forensics", memory.DemoPassword)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all", query: "", want: []string{"record-001", "record-002"}},
		{name: "type", query: "?recordType=Report", want: []string{"record-002"}},
		{name: "date range is inclusive", query: "?dateFrom=2025-11-10&dateTo=2025-11-10", want: []string{"record-001"}},
		{name: "case", query: "?caseId=case-002", want: nil},
		{name: "unparseable dates are ignored", query: "?dateFrom=yesterday", want: []string{"record-001", "record-002"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := client.GetDoc(ctx, "/records"+tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.want, recordIDs(doc))
		})
	}
}

func TestListRecords_EmptyBackendBody(t *testing.T) {
	ctx, server, fake := startLiveServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "jane_smith", "pw123")

	for name, h := range map[string]http.HandlerFunc{
		"empty": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		"unparseable": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		},
	} {
		t.Run(name, func(t *testing.T) {
			fake.Handle("GET /records", h)
			doc, err := client.GetDoc(ctx, "/records?dateFrom=2025-11-01")
			require.NoError(t, err)
			require.Empty(t, recordIDs(doc))
			require.Zero(t, doc.Find(".alert-error").Length())
			require.Equal(t, "No records found.", doc.Find(".empty").Text())

			requests := fake.Requests("GET /records")
			require.Equal(t, "2025-11-01", requests[len(requests)-1].Query.Get("dateFrom"))
		})
	}
}

func TestUploadRecord(t *testing.T) {
	file := &e2etest.FormFile{
		FieldName:   "file",
		Filename:    "scene.png",
		ContentType: "image/png",
		Content:     []byte("png bytes"),
	}
	values := url.Values{
		"caseId":      {"case-001"},
		"recordType":  {string(models.RecordTypeEvidence)},
		"description": {"Fingerprints on the vault door"},
	}

	t.Run("mock", func(t *testing.T) {
		ctx, server := startServer(t, nil)
		client := server.Client()
		login(ctx, t, client, "alice_forensics", memory.DemoPassword)

		doc, err := client.GetDoc(ctx, "/records/create?caseId=case-001")
		require.NoError(t, err)
		prefilled, _ := doc.Find("input[name=caseId]").Attr("value")
		require.Equal(t, "case-001", prefilled)
		require.Equal(t, 3, doc.Find("#case-options option").Length())

		page, err := client.SubmitMultipart(ctx, "/records/create", "/records", values, file)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, page.Status)
		require.True(t, strings.HasPrefix(page.URL.Path, "/records/record-"), page.URL.Path)
		require.Equal(t, "Record uploaded successfully", flash(page.Doc, "success"))
		details := page.Doc.Find("#record").Text()
		assert.Contains(t, details, "Fingerprints on the vault door")
		assert.Contains(t, details, "sha256:")
		assert.Contains(t, details, "minio://bucket/record-")

		resp, err := client.Get(ctx, page.URL.Path+"/download")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
		require.Contains(t, string(body), "Description: Fingerprints on the vault door")
	})

	t.Run("live relays the file", func(t *testing.T) {
		ctx, server, fake := startLiveServer(t, nil)
		client := server.Client()
		login(ctx, t, client, "jane_smith", "pw123")

		page, err := client.SubmitMultipart(ctx, "/records/create", "/records", values, file)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, page.Status)
		require.Equal(t, 1, fake.Calls("POST /records"))
		id := strings.TrimPrefix(page.URL.Path, "/records/")

		resp, err := client.Get(ctx, "/records/"+id+"/download")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "png bytes", string(body))
		require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		require.Equal(t, `attachment; filename="record-`+id+`"`, resp.Header.Get("Content-Disposition"))
	})

	t.Run("missing file makes no backend calls", func(t *testing.T) {
		ctx, server, fake := startLiveServer(t, nil)
		client := server.Client()
		login(ctx, t, client, "jane_smith", "pw123")

		page, err := client.SubmitMultipart(ctx, "/records/create", "/records", values, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnprocessableEntity, page.Status)
		require.Equal(t, "No file uploaded", flash(page.Doc, "error"))
		require.Zero(t, fake.Calls("POST /records"))
		caseID, _ := page.Doc.Find("input[name=caseId]").Attr("value")
		require.Equal(t, "case-001", caseID)
	})

	t.Run("missing case", func(t *testing.T) {
		ctx, server := startServer(t, nil)
		client := server.Client()
		login(ctx, t, client, "jane_smith", memory.DemoPassword)

		page, err := client.SubmitMultipart(ctx, "/records/create", "/records",
			url.Values{"recordType": {string(models.RecordTypeFIR)}}, file)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnprocessableEntity, page.Status)
		require.Equal(t, "Case is required", flash(page.Doc, "error"))
	})

	t.Run("too large", func(t *testing.T) {
		ctx, server := startServer(t, map[string]string{"MAX_UPLOAD_BYTES": "1024"})
		client := server.Client()
		login(ctx, t, client, "jane_smith", memory.DemoPassword)

		large := *file
		large.Content = bytes.Repeat([]byte("x"), 4096)
		page, err := client.SubmitMultipart(ctx, "/records/create", "/records", values, &large)
		require.NoError(t, err)
		require.Equal(t, http.StatusRequestEntityTooLarge, page.Status)
		require.Equal(t, "File too large", errorMessage(page.Doc))
	})

	t.Run("too large without declared length", func(t *testing.T) {
		ctx, server := startServer(t, map[string]string{"MAX_UPLOAD_BYTES": "1024"})
		client := server.Client()
		login(ctx, t, client, "jane_smith", memory.DemoPassword)

		doc, err := client.GetDoc(ctx, "/records/create")
		require.NoError(t, err)
		csrfToken, ok := doc.Find("form[action='/records'] input[name=csrf_token]").Attr("value")
		require.True(t, ok)

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("csrf_token", csrfToken))
		for key, vs := range values {
			require.NoError(t, writer.WriteField(key, vs[0]))
		}
		part, err := writer.CreateFormFile("file", "large.bin")
		require.NoError(t, err)
		// Past the limit including the multipart allowance, small enough for the server to drain the rest.
		_, err = part.Write(bytes.Repeat([]byte("x"), 1<<20+4096))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		// Hiding the length makes the client send the body chunked.
		header := http.Header{"Content-Type": {writer.FormDataContentType()}}
		resp, err := client.Do(ctx, http.MethodPost, "/records", header, io.MultiReader(&body))
		require.NoError(t, err)
		defer func() {
			require.NoError(t, resp.Body.Close())
		}()
		require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		page, err := goquery.NewDocumentFromReader(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "File too large", errorMessage(page))
	})

	t.Run("forbidden for judges", func(t *testing.T) {
		ctx, server := startServer(t, nil)
		client := server.Client()
		login(ctx, t, client, "judge_judy", memory.DemoPassword)

		page, err := client.GetPage(ctx, "/records/create")
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, page.Status)
	})
}

func TestRecordDetail(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "john_doe", memory.DemoPassword)

	doc, err := client.GetDoc(ctx, "/records/record-001")
	require.NoError(t, err)
	require.Equal(t, "Record Evidence", doc.Find("h1").First().Text())
	require.Equal(t, 1, doc.Find("a[href='/records/record-001/delete']").Length())

	page, err := client.GetPage(ctx, "/records/record-404")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, page.Status)
	require.Equal(t, "Record not found", errorMessage(page.Doc))

	page, err = client.GetPage(ctx, "/records/record-404/download")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, page.Status)
	require.Equal(t, "Record not found", errorMessage(page.Doc))
}

func TestDownloadRecord_BackendFailure(t *testing.T) {
	ctx, server, fake := startLiveServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "jane_smith", "pw123")
	fake.AddRecord(models.Record{ID: "record-100", CaseID: "case-001", CreatedAt: time.Now()}, "", []byte("raw"))

	resp, err := client.Get(ctx, "/records/record-100/download")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	fake.Handle("GET /records/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	page, err := client.GetPage(ctx, "/records/record-100/download")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, page.Status)
	require.Equal(t, "Failed to download record", errorMessage(page.Doc))
}

func TestDeleteRecord(t *testing.T) {
	ctx, server := startServer(t, nil)
	client := server.Client()
	login(ctx, t, client, "john_doe", memory.DemoPassword)

	first, second := deleteTwice(ctx, t, client, "/records/record-002")
	require.Equal(t, "/records", first.URL.Path)
	require.Equal(t, "Record deleted successfully", flash(first.Doc, "success"))
	require.Equal(t, []string{"record-001"}, recordIDs(first.Doc))
	require.Equal(t, http.StatusNotFound, second.Status)
	require.Equal(t, "Record not found", errorMessage(second.Doc))

	other, err := e2etest.NewClient(server.URL())
	require.NoError(t, err)
	login(ctx, t, other, "alice_forensics", memory.DemoPassword)
	page, err := other.GetPage(ctx, "/records/record-001/delete")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, page.Status)
}
