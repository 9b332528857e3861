package main

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/cdms/internal/backend"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories"
)

const dateLayout = "2006-01-02"

type recordFilterForm struct {
	CaseID     string
	RecordType models.RecordType
	DateFrom   string
	DateTo     string
}

type recordsTemplateData struct {
	BaseTemplateData
	Records     []models.Record
	Filter      recordFilterForm
	RecordTypes []models.RecordType
	CanUpload   bool
}

type recordFormTemplateData struct {
	BaseTemplateData
	Form        models.RecordInput
	Field       string
	RecordTypes []models.RecordType
	Cases       []models.Case
	Policies    []models.Policy
}

type recordTemplateData struct {
	BaseTemplateData
	Record    models.Record
	CanDelete bool
}

// parseRecordFilter reads the listing filters. Dates that don't parse are ignored.
func parseRecordFilter(r *http.Request) (models.RecordFilter, recordFilterForm) {
	query := r.URL.Query()
	form := recordFilterForm{
		CaseID:     strings.TrimSpace(query.Get("caseId")),
		RecordType: models.RecordType(query.Get("recordType")),
		DateFrom:   query.Get("dateFrom"),
		DateTo:     query.Get("dateTo"),
	}
	filter := models.RecordFilter{
		CaseID:     form.CaseID,
		RecordType: form.RecordType,
		Limit:      parseLimit(r),
	}
	if t, err := time.Parse(dateLayout, form.DateFrom); err == nil {
		filter.DateFrom = t
	} else {
		form.DateFrom = ""
	}
	if t, err := time.Parse(dateLayout, form.DateTo); err == nil {
		// Inclusive of the whole day.
		filter.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	} else {
		form.DateTo = ""
	}
	return filter, form
}

func (app *application) listRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	filter, form := parseRecordFilter(r)
	data := recordsTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Records"),
		Filter:           form,
		RecordTypes:      models.RecordTypes,
		CanUpload:        identity.Role.Can(models.PermissionUploadRecord),
	}

	records, err := app.records.List(ctx, c, filter)
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "list records", errors.SlogError(err))
		data.Error = backend.Message(err, "Failed to load records")
		records = nil
	}
	data.Records = records
	app.render(w, r, http.StatusOK, "records", data)
}

// newRecordFormTemplateData loads the suggestions for the case and policy fields. Failures leave them empty.
func (app *application) newRecordFormTemplateData(
	r *http.Request,
	c repositories.Caller,
	form models.RecordInput,
) recordFormTemplateData {
	ctx := r.Context()
	data := recordFormTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Upload Record"),
		Form:             form,
		RecordTypes:      models.RecordTypes,
	}
	cases, err := app.cases.List(ctx, c, models.CaseFilter{})
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "could not load cases for record form", errors.SlogError(err))
	}
	policies, err := app.policies.List(ctx, c, models.PolicyFilter{})
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "could not load policies for record form",
			errors.SlogError(err))
	}
	data.Cases, data.Policies = cases, policies
	return data
}

func (app *application) createRecordForm(w http.ResponseWriter, r *http.Request) {
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionUploadRecord) {
		return
	}
	form := models.RecordInput{
		CaseID:     r.URL.Query().Get("caseId"),
		RecordType: models.RecordTypeEvidence,
	}
	app.render(w, r, http.StatusOK, "record-create", app.newRecordFormTemplateData(r, c, form))
}

func (app *application) createRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionUploadRecord) {
		return
	}

	// nosurf has already parsed the multipart form within the upload limit.
	if err := r.ParseMultipartForm(app.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			app.clientError(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		app.clientError(w, r, http.StatusBadRequest, "Invalid upload")
		return
	}

	in := models.RecordInput{
		CaseID:      strings.TrimSpace(r.PostFormValue("caseId")),
		RecordType:  models.RecordType(r.PostFormValue("recordType")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		PolicyID:    strings.TrimSpace(r.PostFormValue("policyId")),
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer func() {
			_ = file.Close()
		}()
		in.File = &models.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		app.serverError(w, r, errors.Wrap(err, "read uploaded file"))
		return
	}

	if err = in.Validate(); err != nil {
		validationErr, _ := validationError(err)
		form := in
		form.File = nil
		// The form is re-rendered without suggestions to keep validation free of gateway calls.
		data := recordFormTemplateData{
			BaseTemplateData: newBaseTemplateData(r, "Upload Record"),
			Form:             form,
			Field:            validationErr.Field,
			RecordTypes:      models.RecordTypes,
		}
		data.Error = validationErr.Message
		app.render(w, r, http.StatusUnprocessableEntity, "record-create", data)
		return
	}

	id, err := app.records.Create(ctx, c, in)
	if app.endSessionIfUnauthorized(w, r, err) {
		return
	}
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "create record", errors.SlogError(err))
		app.redirect(w, r, "/records/create", "error", backend.Message(err, "Failed to upload record"))
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "uploaded record",
		slog.String("record_id", id), slog.String("case_id", in.CaseID), slog.String("filename", in.File.Filename))
	app.redirect(w, r, "/records/"+id, "success", "Record uploaded successfully")
}

func (app *application) recordDetail(w http.ResponseWriter, r *http.Request) {
	identity, c := caller(r)
	id := r.PathValue("id")

	record, err := app.records.Get(r.Context(), c, id)
	if err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "get record", slog.String("record_id", id)),
			"Record not found", "/records", "Record not found")
		return
	}
	app.render(w, r, http.StatusOK, "record", recordTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "Record "+string(record.RecordType)),
		Record:           record,
		CanDelete:        identity.Role.Can(models.PermissionDeleteRecord),
	})
}

// downloadRecord relays the file of the record. The route runs without the handler timeout.
func (app *application) downloadRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, c := caller(r)
	id := r.PathValue("id")

	stream, err := app.records.Download(ctx, c, id)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrNotFound):
			app.clientError(w, r, http.StatusNotFound, "Record not found")
		case errors.Is(err, backend.ErrUnauthorized):
			app.gatewayFailure(w, r, err, "Record not found", "/records/"+id, "")
		default:
			app.logger.LogAttrs(ctx, slog.LevelError, "download record",
				slog.String("record_id", id), errors.SlogError(err))
			app.errorPage(w, r, backend.StatusCode(err), backend.Message(err, "Failed to download record"))
		}
		return
	}
	defer func() {
		_ = stream.Body.Close()
	}()

	// Large files outlive the server write timeout.
	if err = http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "could not clear write deadline", errors.SlogError(err))
	}

	contentType := stream.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := stream.ContentDisposition
	if disposition == "" {
		disposition = `attachment; filename="record-` + id + `"`
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, stream.Body)
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "download interrupted",
			slog.String("record_id", id), slog.Int64("written", written), errors.SlogError(err))
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelDebug, "downloaded record",
		slog.String("record_id", id), slog.Int64("written", written))
}

func (app *application) deleteRecordForm(w http.ResponseWriter, r *http.Request) {
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionDeleteRecord) {
		return
	}
	id := r.PathValue("id")
	record, err := app.records.Get(r.Context(), c, id)
	if err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "get record", slog.String("record_id", id)),
			"Record not found", "/records", "Record not found")
		return
	}
	label := string(record.RecordType) + " " + record.ID
	app.render(w, r, http.StatusOK, "delete", newDeleteTemplateData(r, "record", label, "/records/"+id))
}

func (app *application) deleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, c := caller(r)
	if !app.authorize(w, r, identity, models.PermissionDeleteRecord) {
		return
	}
	id := r.PathValue("id")
	if err := app.records.Delete(ctx, c, id); err != nil {
		app.gatewayFailure(w, r, errors.Wrap(err, "delete record", slog.String("record_id", id)),
			"Record not found", "/records", "Failed to delete record")
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "deleted record", slog.String("record_id", id))
	app.redirect(w, r, "/records", "success", "Record deleted successfully")
}
