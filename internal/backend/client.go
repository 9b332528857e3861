// Package backend is a thin HTTP client for the CDMS backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/myrjola/cdms/internal/errors"
)

// Auth identifies the caller of a backend request.
type Auth struct {
	// Token is sent as a bearer token when not empty.
	Token string
	// Org is sent as the org query parameter when not empty.
	Org string
}

type Client struct {
	baseURL *url.URL
	// client is used for requests whose responses are read fully. Its timeout covers the whole exchange.
	client *http.Client
	// streamClient is used for downloads. Only the wait for the response headers is bounded.
	streamClient *http.Client
	timeout      time.Duration
	logger       *slog.Logger
}

// NewClient creates a client for the backend at baseURL. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse backend URL", slog.String("url", baseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("backend URL must be http or https", slog.String("url", baseURL))
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // always a transport
	transport.ResponseHeaderTimeout = timeout
	return &Client{
		baseURL:      u,
		client:       &http.Client{Timeout: timeout},
		streamClient: &http.Client{Transport: transport},
		timeout:      timeout,
		logger:       logger,
	}, nil
}

// Stream is a response body relayed to the user as is.
type Stream struct {
	Body               io.ReadCloser
	ContentType        string
	ContentDisposition string
}

func (c *Client) endpoint(path string, auth Auth, query url.Values) string {
	u := *c.baseURL
	u.Path += path
	q := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	if auth.Org != "" {
		q.Set("org", auth.Org)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	auth Auth,
	query url.Values,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, auth, query), body)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}
	return req, nil
}

// do sends req and reads the response body fully. Non-2xx responses are returned as [*Error].
func (c *Client) do(req *http.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
	defer cancel()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("method", req.Method), slog.String("path", req.URL.Path))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	c.logger.LogAttrs(ctx, slog.LevelDebug, "backend request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newErrorFromBody(resp.StatusCode, body)
	}
	return body, nil
}

func newErrorFromBody(statusCode int, body []byte) *Error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return NewError(statusCode, payload.Message)
}

// decode unmarshals a successful response body into out.
func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyBody
	}
	err := json.Unmarshal(body, out)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return errors.Wrap(errors.Join(ErrEmptyBody, err), "unmarshal response body")
	}
	if err != nil {
		// Well-formed JSON of the wrong shape is a backend failure, not an empty listing.
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// GetJSON fetches path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, auth Auth, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, auth, query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// SendJSON sends in as a JSON body with method and decodes the response into out unless out is nil.
func (c *Client) SendJSON(ctx context.Context, auth Auth, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request body")
	}
	req, err := c.newRequest(ctx, method, path, auth, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Delete deletes the resource at path.
func (c *Client) Delete(ctx context.Context, auth Auth, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, auth, nil, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// File is the file part of a multipart request.
type File struct {
	FieldName   string
	Filename    string
	ContentType string
	Content     io.Reader
}

// PostMultipart posts fields and file as multipart/form-data and decodes the JSON response into out.
//
// Fields with empty values are left out. The file content is streamed to the backend without buffering.
func (c *Client) PostMultipart(
	ctx context.Context,
	auth Auth,
	path string,
	fields [][2]string,
	file File,
	out any,
) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, fields, file))
	}()
	defer func() {
		_ = pr.Close()
	}()

	req, err := c.newRequest(ctx, http.MethodPost, path, auth, nil, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func writeMultipart(mw *multipart.Writer, fields [][2]string, file File) error {
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return errors.Wrap(err, "write field", slog.String("field", field[0]))
		}
	}
	filename := file.Filename
	if filename == "" {
		filename = "upload"
	}
	header := make(textproto.MIMEHeader)
	header["Content-Disposition"] = []string{
		`form-data; name="` + escapeQuotes(file.FieldName) + `"; filename="` + escapeQuotes(filename) + `"`,
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	if err != nil {
		return errors.Wrap(err, "create file part")
	}
	if _, err = io.Copy(part, file.Content); err != nil {
		return errors.Wrap(err, "copy file content")
	}
	return errors.Wrap(mw.Close(), "close multipart writer")
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// GetStream fetches path without asking for JSON and returns the body for relaying.
//
// The caller must close the returned body.
func (c *Client) GetStream(ctx context.Context, auth Auth, path string) (*Stream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, auth, nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", req.URL.Path))
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "backend stream",
		slog.String("path", req.URL.Path), slog.Int("status", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)) //nolint:mnd // error bodies are small
		_ = resp.Body.Close()
		return nil, newErrorFromBody(resp.StatusCode, body)
	}
	return &Stream{
		Body:               resp.Body,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}
