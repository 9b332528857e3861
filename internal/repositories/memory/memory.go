package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories"
)

// NewSet returns seeded in-memory repositories.
func NewSet(logger *slog.Logger) repositories.Set {
	return repositories.Set{
		Cases:    NewCaseRepository(),
		Records:  NewRecordRepository(logger),
		Policies: NewPolicyRepository(),
		Users:    NewUserDirectory(),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

type CaseRepository struct {
	cases *arena[models.Case]
}

func NewCaseRepository() *CaseRepository {
	r := &CaseRepository{cases: newArena[models.Case]("Case not found")}
	for _, c := range seedCases {
		r.cases.put(c.ID, c)
	}
	return r
}

func (r *CaseRepository) List(_ context.Context, _ repositories.Caller, filter models.CaseFilter) ([]models.Case, error) {
	return r.cases.filter(filter.Matches, filter.Limit), nil
}

func (r *CaseRepository) Create(_ context.Context, caller repositories.Caller, in models.CaseInput) (string, error) {
	c := models.Case{
		ID:           newID("case"),
		Title:        in.Title,
		Status:       in.Status,
		Jurisdiction: in.Jurisdiction,
		CaseType:     in.CaseType,
		Description:  in.Description,
		CreatedBy:    caller.Username,
		CreatedAt:    now(),
		Organization: caller.Org,
		PolicyID:     in.PolicyID,
	}
	r.cases.put(c.ID, c)
	return c.ID, nil
}

func (r *CaseRepository) Get(_ context.Context, _ repositories.Caller, id string) (models.Case, error) {
	return r.cases.get(id)
}

func (r *CaseRepository) Delete(_ context.Context, _ repositories.Caller, id string) error {
	return r.cases.remove(id)
}

type RecordRepository struct {
	records *arena[models.Record]
	logger  *slog.Logger
}

func NewRecordRepository(logger *slog.Logger) *RecordRepository {
	r := &RecordRepository{
		records: newArena[models.Record]("Record not found"),
		logger:  logger.With("source", "memory.RecordRepository"),
	}
	for _, rec := range seedRecords {
		r.records.put(rec.ID, rec)
	}
	return r
}

func (r *RecordRepository) List(
	_ context.Context,
	_ repositories.Caller,
	filter models.RecordFilter,
) ([]models.Record, error) {
	return r.records.filter(filter.Matches, filter.Limit), nil
}

func (r *RecordRepository) ListByCase(
	ctx context.Context,
	caller repositories.Caller,
	caseID string,
) ([]models.Record, error) {
	return r.List(ctx, caller, models.RecordFilter{CaseID: caseID})
}

// Create hashes the uploaded file and discards its content.
func (r *RecordRepository) Create(ctx context.Context, caller repositories.Caller, in models.RecordInput) (string, error) {
	if in.File == nil || in.File.Content == nil {
		return "", errors.New("record has no file")
	}
	hash := sha256.New()
	n, err := io.Copy(hash, in.File.Content)
	if err != nil {
		return "", errors.Wrap(err, "hash uploaded file")
	}
	rec := models.Record{
		ID:          newID("record"),
		CaseID:      in.CaseID,
		RecordType:  in.RecordType,
		Description: in.Description,
		FileHash:    "sha256:" + hex.EncodeToString(hash.Sum(nil)),
		OwnerOrg:    caller.Org,
		CreatedAt:   now(),
		PolicyID:    in.PolicyID,
	}
	rec.OffChainURI = "minio://bucket/" + rec.ID
	r.records.put(rec.ID, rec)
	r.logger.LogAttrs(ctx, slog.LevelDebug, "stored record",
		slog.String("id", rec.ID), slog.Int64("bytes", n), slog.String("filename", in.File.Filename))
	return rec.ID, nil
}

func (r *RecordRepository) Get(_ context.Context, _ repositories.Caller, id string) (models.Record, error) {
	return r.records.get(id)
}

func (r *RecordRepository) Delete(_ context.Context, _ repositories.Caller, id string) error {
	return r.records.remove(id)
}

// Download returns a plain text placeholder describing the record.
func (r *RecordRepository) Download(_ context.Context, _ repositories.Caller, id string) (*backend.Stream, error) {
	rec, err := r.records.get(id)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("This is a mock record file.\nRecord ID: %s\nType: %s\nDescription: %s",
		rec.ID, rec.RecordType, rec.Description)
	return &backend.Stream{
		Body:               io.NopCloser(strings.NewReader(body)),
		ContentType:        "text/plain; charset=utf-8",
		ContentDisposition: fmt.Sprintf(`attachment; filename="record-%s.txt"`, rec.ID),
	}, nil
}

type PolicyRepository struct {
	policies *arena[models.Policy]
}

func NewPolicyRepository() *PolicyRepository {
	r := &PolicyRepository{policies: newArena[models.Policy]("Policy not found")}
	for _, p := range seedPolicies {
		r.policies.put(p.PolicyID, p)
	}
	return r
}

func (r *PolicyRepository) List(
	_ context.Context,
	_ repositories.Caller,
	filter models.PolicyFilter,
) ([]models.Policy, error) {
	return r.policies.filter(func(models.Policy) bool { return true }, filter.Limit), nil
}

// Create records the caller's organization as the creator.
func (r *PolicyRepository) Create(_ context.Context, caller repositories.Caller, in models.PolicyInput) (string, error) {
	in = in.Normalize()
	p := models.Policy{
		PolicyID:     newID("policy"),
		Categories:   in.Categories,
		AllowedOrgs:  in.AllowedOrgs,
		AllowedRoles: in.AllowedRoles,
		CreatedBy:    caller.Org,
		CreatedAt:    now(),
	}
	r.policies.put(p.PolicyID, p)
	return p.PolicyID, nil
}

func (r *PolicyRepository) Get(_ context.Context, _ repositories.Caller, id string) (models.Policy, error) {
	return r.policies.get(id)
}

func (r *PolicyRepository) Delete(_ context.Context, _ repositories.Caller, id string) error {
	return r.policies.remove(id)
}

type user struct {
	password string
	profile  models.Profile
}

// UserDirectory authenticates the seeded demo users and users registered during the process lifetime.
//
// Each user holds at most one token, so the token table is bounded by the number of users.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]user
	// tokens maps a token to its username and issued maps a username to its token.
	tokens map[string]string
	issued map[string]string
}

func NewUserDirectory() *UserDirectory {
	d := &UserDirectory{
		users:  make(map[string]user),
		tokens: make(map[string]string),
		issued: make(map[string]string),
	}
	for _, profile := range seedUsers {
		d.users[profile.Username] = user{password: DemoPassword, profile: profile}
	}
	return d
}

func (d *UserDirectory) Login(_ context.Context, username, password string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[username]
	if !ok || u.password != password {
		return "", backend.NewError(http.StatusUnauthorized, "Invalid credentials")
	}
	if token, issued := d.issued[username]; issued {
		return token, nil
	}
	token := "mock-" + uuid.NewString()
	d.tokens[token] = username
	d.issued[username] = token
	return token, nil
}

// Revoke invalidates token. Unknown tokens are ignored.
func (d *UserDirectory) Revoke(_ context.Context, token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if username, ok := d.tokens[token]; ok {
		delete(d.tokens, token)
		delete(d.issued, username)
	}
}

// Tokens returns the number of live tokens.
func (d *UserDirectory) Tokens() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tokens)
}

func (d *UserDirectory) Profile(_ context.Context, token string) (models.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	username, ok := d.tokens[token]
	if !ok {
		return models.Profile{}, backend.NewError(http.StatusUnauthorized, "Invalid token")
	}
	return d.users[username].profile, nil
}

func (d *UserDirectory) Register(_ context.Context, in models.RegisterInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[in.Username]; exists {
		return backend.NewError(http.StatusConflict, "Username already exists")
	}
	d.users[in.Username] = user{password: in.Password, profile: models.Profile{
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		Role:         string(in.Role),
		Organization: in.Organization,
	}}
	return nil
}
