package e2etest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/cdms/internal/errors"
)

// Client drives the HTML front end like a browser: it keeps cookies and submits forms with their CSRF token.
type Client struct {
	client *http.Client
	url    string
}

// Page is a response after following redirects.
type Page struct {
	Status int
	// URL is the final URL after redirects.
	URL    *neturl.URL
	Header http.Header
	Doc    *goquery.Document
}

// FormFile is a file attached to a multipart form submission.
type FormFile struct {
	FieldName   string
	Filename    string
	ContentType string
	Content     []byte
}

// NewClient creates a cookie-aware HTTP client for the server at url.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar, Timeout: 10 * time.Second}, //nolint:mnd // 10s
		url:    strings.TrimRight(url, "/"),
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	for {
		resp, err := c.Get(ctx, urlPath)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready", slog.String("path", urlPath))
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Do sends a request with optional extra headers and returns the raw response. The caller closes the body.
func (c *Client) Do(
	ctx context.Context,
	method, urlPath string,
	header http.Header,
	body io.Reader,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request", slog.String("path", urlPath))
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	return resp, nil
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, urlPath, nil, nil)
}

// GetPage fetches a URL and parses the response regardless of its status.
func (c *Client) GetPage(ctx context.Context, urlPath string) (*Page, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return nil, err
	}
	return readPage(resp)
}

// GetDoc fetches a URL and returns a goquery document. Statuses other than 200 are errors.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	page, err := c.GetPage(ctx, urlPath)
	if err != nil {
		return nil, errors.Wrap(err, "get page")
	}
	if page.Status != http.StatusOK {
		return nil, errors.New("unexpected status code",
			slog.Int("status", page.Status), slog.String("path", urlPath))
	}
	return page.Doc, nil
}

// Post sends an urlencoded form without looking up a CSRF token.
func (c *Client) Post(ctx context.Context, urlPath string, values neturl.Values) (*Page, error) {
	header := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	resp, err := c.Do(ctx, http.MethodPost, urlPath, header, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	return readPage(resp)
}

// Submit fills the form with action formActionURLPath found on the page at formURLPath and posts it.
func (c *Client) Submit(
	ctx context.Context,
	formURLPath string,
	formActionURLPath string,
	values neturl.Values,
) (*Page, error) {
	csrfToken, err := c.csrfToken(ctx, formURLPath, formActionURLPath)
	if err != nil {
		return nil, err
	}
	data := neturl.Values{}
	for key, v := range values {
		data[key] = v
	}
	data.Set("csrf_token", csrfToken)
	return c.Post(ctx, formActionURLPath, data)
}

// SubmitMultipart is [Client.Submit] for multipart forms with a file attached.
func (c *Client) SubmitMultipart(
	ctx context.Context,
	formURLPath string,
	formActionURLPath string,
	values neturl.Values,
	file *FormFile,
) (*Page, error) {
	csrfToken, err := c.csrfToken(ctx, formURLPath, formActionURLPath)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err = writer.WriteField("csrf_token", csrfToken); err != nil {
		return nil, errors.Wrap(err, "write csrf field")
	}
	for key, vs := range values {
		for _, v := range vs {
			if err = writer.WriteField(key, v); err != nil {
				return nil, errors.Wrap(err, "write field", slog.String("field", key))
			}
		}
	}
	if file != nil {
		var part io.Writer
		if part, err = writer.CreatePart(fileHeader(file)); err != nil {
			return nil, errors.Wrap(err, "create file part")
		}
		if _, err = part.Write(file.Content); err != nil {
			return nil, errors.Wrap(err, "write file part")
		}
	}
	if err = writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	header := http.Header{"Content-Type": {writer.FormDataContentType()}}
	resp, err := c.Do(ctx, http.MethodPost, formActionURLPath, header, &body)
	if err != nil {
		return nil, err
	}
	return readPage(resp)
}

// Login submits the login form.
func (c *Client) Login(ctx context.Context, username, password string) (*Page, error) {
	page, err := c.Submit(ctx, "/auth/login", "/auth/login", neturl.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return nil, errors.Wrap(err, "submit login form", slog.String("username", username))
	}
	return page, nil
}

// Logout submits the logout form rendered on the dashboard.
func (c *Client) Logout(ctx context.Context) (*Page, error) {
	page, err := c.Submit(ctx, "/dashboard", "/auth/logout", nil)
	if err != nil {
		return nil, errors.Wrap(err, "submit logout form")
	}
	return page, nil
}

func (c *Client) csrfToken(ctx context.Context, formURLPath, formActionURLPath string) (string, error) {
	page, err := c.GetPage(ctx, formURLPath)
	if err != nil {
		return "", errors.Wrap(err, "get form page", slog.String("path", formURLPath))
	}
	return extractCSRFToken(page.Doc, formActionURLPath)
}

func extractCSRFToken(doc *goquery.Document, formActionURLPath string) (string, error) {
	formSelector := fmt.Sprintf("form[action='%s']", formActionURLPath)
	csrfToken, ok := doc.Find(formSelector).Find("input[name=csrf_token]").Attr("value")
	if !ok {
		return "", errors.New("csrf_token not found in form", slog.String("action", formActionURLPath))
	}
	return csrfToken, nil
}

func fileHeader(file *FormFile) map[string][]string {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	escape := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escape.Replace(file.FieldName), escape.Replace(file.Filename))},
		"Content-Type": {contentType},
	}
}

func readPage(resp *http.Response) (*Page, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return &Page{
		Status: resp.StatusCode,
		URL:    resp.Request.URL,
		Header: resp.Header,
		Doc:    doc,
	}, nil
}
