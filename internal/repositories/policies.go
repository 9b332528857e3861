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

type LivePolicyRepository struct {
	client *backend.Client
	logger *slog.Logger
}

func NewPolicyRepository(client *backend.Client, logger *slog.Logger) *LivePolicyRepository {
	return &LivePolicyRepository{
		client: client,
		logger: logger.With("source", "PolicyRepository"),
	}
}

func (r *LivePolicyRepository) List(
	ctx context.Context,
	caller Caller,
	filter models.PolicyFilter,
) ([]models.Policy, error) {
	query := url.Values{"limit": {limitParam(filter.Limit)}}
	return listOrEmpty[models.Policy](ctx, r.client, r.logger, caller, "/policies", query)
}

func (r *LivePolicyRepository) Create(ctx context.Context, caller Caller, in models.PolicyInput) (string, error) {
	var out struct {
		PolicyID string `json:"policyId"`
	}
	in = in.Normalize()
	if err := r.client.SendJSON(ctx, caller.auth(), http.MethodPost, "/policies", in, &out); err != nil {
		return "", errors.Wrap(err, "create policy")
	}
	if out.PolicyID == "" {
		return "", errors.New("backend returned no policy id")
	}
	return out.PolicyID, nil
}

func (r *LivePolicyRepository) Get(ctx context.Context, caller Caller, id string) (models.Policy, error) {
	var p models.Policy
	if err := r.client.GetJSON(ctx, caller.auth(), "/policies/"+url.PathEscape(id), nil, &p); err != nil {
		return models.Policy{}, errors.Wrap(err, "get policy", slog.String("id", id))
	}
	return p, nil
}

func (r *LivePolicyRepository) Delete(ctx context.Context, caller Caller, id string) error {
	return errors.Wrap(r.client.Delete(ctx, caller.auth(), "/policies/"+url.PathEscape(id)),
		"delete policy", slog.String("id", id))
}
