package repositories

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
)

// NewLiveSet returns repositories that forward every call to the backend.
func NewLiveSet(client *backend.Client, logger *slog.Logger) Set {
	return Set{
		Cases:    NewCaseRepository(client, logger),
		Records:  NewRecordRepository(client, logger),
		Policies: NewPolicyRepository(client, logger),
		Users:    client,
	}
}

// listOrEmpty fetches a listing. An empty or unparseable body counts as zero results and is only logged.
func listOrEmpty[T any](
	ctx context.Context,
	client *backend.Client,
	logger *slog.Logger,
	caller Caller,
	path string,
	query url.Values,
) ([]T, error) {
	var items []T
	err := client.GetJSON(ctx, caller.auth(), path, query, &items)
	if errors.Is(err, backend.ErrEmptyBody) {
		logger.LogAttrs(ctx, slog.LevelWarn, "treating empty listing as no results",
			slog.String("path", path), errors.SlogError(err))
		return []T{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list", slog.String("path", path))
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func limitParam(limit int) string {
	if limit <= 0 {
		return ""
	}
	return strconv.Itoa(limit)
}
