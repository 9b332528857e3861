// Package backendtest provides an in-process fake of the CDMS backend API for tests.
package backendtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/myrjola/cdms/internal/models"
)

// RecordedRequest is a request the fake backend received.
type RecordedRequest struct {
	Pattern       string
	Path          string
	Query         url.Values
	Authorization string
}

type user struct {
	password string
	profile  models.Profile
}

type upload struct {
	contentType string
	content     []byte
}

// Server is a fake backend with the routes the front end consumes.
//
// Every route can be overridden with [Server.Handle] and calls are counted per route pattern.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]user
	tokens    map[string]string
	cases     []models.Case
	records   []models.Record
	policies  []models.Policy
	uploads   map[string]upload
	overrides map[string]http.HandlerFunc
	requests  []RecordedRequest
	nextID    int
}

// New starts a fake backend that is closed when the test finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     make(map[string]user),
		tokens:    make(map[string]string),
		uploads:   make(map[string]upload),
		overrides: make(map[string]http.HandlerFunc),
	}
	mux := http.NewServeMux()
	s.route(mux, "POST /users/login", s.login)
	s.route(mux, "POST /users/register", s.register)
	s.route(mux, "GET /users/profile", s.authenticated(s.profile))
	s.route(mux, "GET /cases", s.authenticated(s.listCases))
	s.route(mux, "POST /cases", s.authenticated(s.createCase))
	s.route(mux, "GET /cases/{id}", s.authenticated(s.getCase))
	s.route(mux, "DELETE /cases/{id}", s.authenticated(s.deleteCase))
	s.route(mux, "GET /records", s.authenticated(s.listRecords))
	s.route(mux, "POST /records", s.authenticated(s.createRecord))
	s.route(mux, "GET /records/case/{caseId}", s.authenticated(s.listRecordsByCase))
	s.route(mux, "GET /records/{id}", s.authenticated(s.getRecord))
	s.route(mux, "DELETE /records/{id}", s.authenticated(s.deleteRecord))
	s.route(mux, "GET /policies", s.authenticated(s.listPolicies))
	s.route(mux, "POST /policies", s.authenticated(s.createPolicy))
	s.route(mux, "GET /policies/{id}", s.authenticated(s.getPolicy))
	s.route(mux, "DELETE /policies/{id}", s.authenticated(s.deletePolicy))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Pattern:       pattern,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
		})
		override := s.overrides[pattern]
		s.mu.Unlock()
		if override != nil {
			override(w, r)
			return
		}
		h(w, r)
	})
}

// Handle overrides the route pattern, e.g. "GET /records", with h.
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[pattern] = h
}

// Calls returns the number of requests received on the route pattern.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if req.Pattern == pattern {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of requests received on any route.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the requests received on the route pattern in arrival order.
func (s *Server) Requests(pattern string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedRequest
	for _, req := range s.requests {
		if req.Pattern == pattern {
			out = append(out, req)
		}
	}
	return out
}

// AddUser adds a user that can log in with password.
func (s *Server) AddUser(username, password string, profile models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile.Username == "" {
		profile.Username = username
	}
	s.users[username] = user{password: password, profile: profile}
}

// Token returns the access token the fake issues to username.
func Token(username string) string {
	return "token-" + username
}

// AddCase stores c as if it was created through the API.
func (s *Server) AddCase(c models.Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, c)
}

// AddRecord stores r as if it was uploaded with content.
func (s *Server) AddRecord(r models.Record, contentType string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	s.uploads[r.ID] = upload{contentType: contentType, content: content}
}

// AddPolicy stores p as if it was created through the API.
func (s *Server) AddPolicy(p models.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append(s.policies, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func (s *Server) authenticated(next func(w http.ResponseWriter, r *http.Request, username string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		username, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, username)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[in.Username]
	if !ok || u.password != in.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := Token(in.Username)
	s.tokens[token] = in.Username
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username       string `json:"username"`
		Password       string `json:"password"`
		FullName       string `json:"fullName"`
		Email          string `json:"email"`
		Role           string `json:"role"`
		OrganizationID string `json:"organizationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[in.Username]; exists {
		writeMessage(w, http.StatusConflict, "Username already exists")
		return
	}
	s.users[in.Username] = user{password: in.Password, profile: models.Profile{
		Username:       in.Username,
		FullName:       in.FullName,
		Email:          in.Email,
		Role:           in.Role,
		OrganizationID: in.OrganizationID,
	}}
	writeJSON(w, http.StatusCreated, map[string]string{"username": in.Username})
}

func (s *Server) profile(w http.ResponseWriter, _ *http.Request, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.users[username].profile)
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%03d", prefix, 100+s.nextID) //nolint:mnd // keep clear of seeded ids
}

func limit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	filter := models.CaseFilter{
		Status:       models.CaseStatus(q.Get("status")),
		Jurisdiction: q.Get("jurisdiction"),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	if n := limit(r); n > 0 && len(out) > n {
		out = out[:n]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCase(w http.ResponseWriter, r *http.Request, username string) {
	var in models.CaseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Case{
		ID:           s.newID("case"),
		Title:        in.Title,
		Status:       in.Status,
		Jurisdiction: in.Jurisdiction,
		CaseType:     in.CaseType,
		Description:  in.Description,
		CreatedBy:    username,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Organization: r.URL.Query().Get("org"),
		PolicyID:     in.PolicyID,
	}
	s.cases = append(s.cases, c)
	writeJSON(w, http.StatusCreated, map[string]string{"caseId": c.ID})
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cases {
		if c.ID == r.PathValue("id") {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Case not found")
}

func (s *Server) deleteCase(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cases {
		if c.ID == r.PathValue("id") {
			s.cases = append(s.cases[:i], s.cases[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Case not found")
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	filter := models.RecordFilter{
		CaseID:     q.Get("caseId"),
		RecordType: models.RecordType(q.Get("recordType")),
		DateFrom:   parseDate(q.Get("dateFrom")),
		DateTo:     parseDate(q.Get("dateTo")),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	if n := limit(r); n > 0 && len(out) > n {
		out = out[:n]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listRecordsByCase(w http.ResponseWriter, r *http.Request, _ string) {
	caseID := r.PathValue("caseId")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.CaseID == caseID {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request, _ string) {
	if err := r.ParseMultipartForm(1 << 20); err != nil { //nolint:mnd // 1 MiB in memory
		writeMessage(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "File is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	var buf bytes.Buffer
	if _, err = io.Copy(&buf, file); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid file")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := models.Record{
		ID:          s.newID("record"),
		CaseID:      r.FormValue("caseId"),
		RecordType:  models.RecordType(r.FormValue("recordType")),
		Description: r.FormValue("description"),
		OwnerOrg:    r.FormValue("ownerOrg"),
		PolicyID:    r.FormValue("policyId"),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	rec.FileHash = fmt.Sprintf("sha256:%d-bytes", buf.Len())
	rec.OffChainURI = "minio://bucket/" + rec.ID
	s.records = append(s.records, rec)
	s.uploads[rec.ID] = upload{contentType: header.Header.Get("Content-Type"), content: buf.Bytes()}
	writeJSON(w, http.StatusCreated, map[string]string{"recordId": rec.ID})
}

// getRecord responds with the metadata when JSON is accepted and with the file content otherwise.
func (s *Server) getRecord(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	for _, rec := range s.records {
		if rec.ID != id {
			continue
		}
		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			writeJSON(w, http.StatusOK, rec)
			return
		}
		u := s.uploads[id]
		contentType := u.contentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(u.content)
		return
	}
	writeMessage(w, http.StatusNotFound, "Record not found")
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.records {
		if rec.ID == r.PathValue("id") {
			s.records = append(s.records[:i], s.records[i+1:]...)
			delete(s.uploads, rec.ID)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Record not found")
}

func (s *Server) listPolicies(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append(make([]models.Policy, 0, len(s.policies)), s.policies...)
	if n := limit(r); n > 0 && len(out) > n {
		out = out[:n]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPolicy(w http.ResponseWriter, r *http.Request, _ string) {
	var in models.PolicyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Policy{
		PolicyID:     s.newID("policy"),
		Categories:   in.Categories,
		AllowedOrgs:  in.AllowedOrgs,
		AllowedRoles: in.AllowedRoles,
		CreatedBy:    r.URL.Query().Get("org"),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	s.policies = append(s.policies, p)
	writeJSON(w, http.StatusCreated, map[string]string{"policyId": p.PolicyID})
}

func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.policies {
		if p.PolicyID == r.PathValue("id") {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Policy not found")
}

func (s *Server) deletePolicy(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.policies {
		if p.PolicyID == r.PathValue("id") {
			s.policies = append(s.policies[:i], s.policies[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Policy not found")
}
