package repositories

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
)

type LiveRecordRepository struct {
	client *backend.Client
	logger *slog.Logger
}

func NewRecordRepository(client *backend.Client, logger *slog.Logger) *LiveRecordRepository {
	return &LiveRecordRepository{
		client: client,
		logger: logger.With("source", "RecordRepository"),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func (r *LiveRecordRepository) List(
	ctx context.Context,
	caller Caller,
	filter models.RecordFilter,
) ([]models.Record, error) {
	query := url.Values{
		"caseId":     {filter.CaseID},
		"recordType": {string(filter.RecordType)},
		"dateFrom":   {formatDate(filter.DateFrom)},
		"dateTo":     {formatDate(filter.DateTo)},
		"limit":      {limitParam(filter.Limit)},
	}
	return listOrEmpty[models.Record](ctx, r.client, r.logger, caller, "/records", query)
}

func (r *LiveRecordRepository) ListByCase(ctx context.Context, caller Caller, caseID string) ([]models.Record, error) {
	return listOrEmpty[models.Record](ctx, r.client, r.logger, caller, "/records/case/"+url.PathEscape(caseID), nil)
}

// Create relays the uploaded file together with the record metadata. The owner is always the caller's org.
func (r *LiveRecordRepository) Create(ctx context.Context, caller Caller, in models.RecordInput) (string, error) {
	if in.File == nil {
		return "", errors.New("record has no file")
	}
	var out struct {
		RecordID string `json:"recordId"`
	}
	fields := [][2]string{
		{"caseId", in.CaseID},
		{"recordType", string(in.RecordType)},
		{"description", in.Description},
		{"ownerOrg", caller.Org},
		{"policyId", in.PolicyID},
	}
	file := backend.File{
		FieldName:   "file",
		Filename:    in.File.Filename,
		ContentType: in.File.ContentType,
		Content:     in.File.Content,
	}
	if err := r.client.PostMultipart(ctx, caller.auth(), "/records", fields, file, &out); err != nil {
		return "", errors.Wrap(err, "create record")
	}
	if out.RecordID == "" {
		return "", errors.New("backend returned no record id")
	}
	return out.RecordID, nil
}

func (r *LiveRecordRepository) Get(ctx context.Context, caller Caller, id string) (models.Record, error) {
	var rec models.Record
	if err := r.client.GetJSON(ctx, caller.auth(), "/records/"+url.PathEscape(id), nil, &rec); err != nil {
		return models.Record{}, errors.Wrap(err, "get record", slog.String("id", id))
	}
	return rec, nil
}

func (r *LiveRecordRepository) Delete(ctx context.Context, caller Caller, id string) error {
	return errors.Wrap(r.client.Delete(ctx, caller.auth(), "/records/"+url.PathEscape(id)),
		"delete record", slog.String("id", id))
}

func (r *LiveRecordRepository) Download(ctx context.Context, caller Caller, id string) (*backend.Stream, error) {
	stream, err := r.client.GetStream(ctx, caller.auth(), "/records/"+url.PathEscape(id))
	if err != nil {
		return nil, errors.Wrap(err, "download record", slog.String("id", id))
	}
	return stream, nil
}
