package repositories

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
)

type LiveCaseRepository struct {
	client *backend.Client
	logger *slog.Logger
}

func NewCaseRepository(client *backend.Client, logger *slog.Logger) *LiveCaseRepository {
	return &LiveCaseRepository{
		client: client,
		logger: logger.With("source", "CaseRepository"),
	}
}

func (r *LiveCaseRepository) List(ctx context.Context, caller Caller, filter models.CaseFilter) ([]models.Case, error) {
	query := url.Values{
		"status":       {string(filter.Status)},
		"jurisdiction": {filter.Jurisdiction},
		"limit":        {limitParam(filter.Limit)},
	}
	return listOrEmpty[models.Case](ctx, r.client, r.logger, caller, "/cases", query)
}

func (r *LiveCaseRepository) Create(ctx context.Context, caller Caller, in models.CaseInput) (string, error) {
	var out struct {
		CaseID string `json:"caseId"`
	}
	if err := r.client.SendJSON(ctx, caller.auth(), http.MethodPost, "/cases", in, &out); err != nil {
		return "", errors.Wrap(err, "create case")
	}
	if out.CaseID == "" {
		return "", errors.New("backend returned no case id")
	}
	return out.CaseID, nil
}

func (r *LiveCaseRepository) Get(ctx context.Context, caller Caller, id string) (models.Case, error) {
	var c models.Case
	if err := r.client.GetJSON(ctx, caller.auth(), "/cases/"+url.PathEscape(id), nil, &c); err != nil {
		return models.Case{}, errors.Wrap(err, "get case", slog.String("id", id))
	}
	return c, nil
}

func (r *LiveCaseRepository) Delete(ctx context.Context, caller Caller, id string) error {
	return errors.Wrap(r.client.Delete(ctx, caller.auth(), "/cases/"+url.PathEscape(id)),
		"delete case", slog.String("id", id))
}
