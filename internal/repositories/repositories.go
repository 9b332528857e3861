// Package repositories defines the data access contract of the front end and its live implementation over the
// backend API. The in-memory implementation lives in the memory subpackage.
package repositories

import (
	"context"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/models"
)

// Caller is the signed-in user on whose behalf the backend is called.
type Caller struct {
	Token    string
	Org      string
	Username string
}

// CallerFrom builds a caller from the session identity.
func CallerFrom(identity models.Identity) Caller {
	return Caller{Token: identity.Token, Org: identity.Organization, Username: identity.Username}
}

func (c Caller) auth() backend.Auth {
	return backend.Auth{Token: c.Token, Org: c.Org}
}

// Not found errors of every implementation match [backend.ErrNotFound].

type CaseRepository interface {
	List(ctx context.Context, caller Caller, filter models.CaseFilter) ([]models.Case, error)
	Create(ctx context.Context, caller Caller, in models.CaseInput) (string, error)
	Get(ctx context.Context, caller Caller, id string) (models.Case, error)
	Delete(ctx context.Context, caller Caller, id string) error
}

type RecordRepository interface {
	List(ctx context.Context, caller Caller, filter models.RecordFilter) ([]models.Record, error)
	// ListByCase returns the records attached to the case.
	ListByCase(ctx context.Context, caller Caller, caseID string) ([]models.Record, error)
	Create(ctx context.Context, caller Caller, in models.RecordInput) (string, error)
	Get(ctx context.Context, caller Caller, id string) (models.Record, error)
	Delete(ctx context.Context, caller Caller, id string) error
	// Download returns the file of the record. The caller must close the body.
	Download(ctx context.Context, caller Caller, id string) (*backend.Stream, error)
}

type PolicyRepository interface {
	List(ctx context.Context, caller Caller, filter models.PolicyFilter) ([]models.Policy, error)
	Create(ctx context.Context, caller Caller, in models.PolicyInput) (string, error)
	Get(ctx context.Context, caller Caller, id string) (models.Policy, error)
	Delete(ctx context.Context, caller Caller, id string) error
}

// UserDirectory authenticates and registers users.
//
// Unknown credentials are reported as [backend.ErrUnauthorized].
type UserDirectory interface {
	Login(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, token string) (models.Profile, error)
	Register(ctx context.Context, in models.RegisterInput) error
}

// Set bundles the repositories of one backend mode.
type Set struct {
	Cases    CaseRepository
	Records  RecordRepository
	Policies PolicyRepository
	Users    UserDirectory
}
