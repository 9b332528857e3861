package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/stretchr/testify/require"
)

func requireValidationError(t *testing.T, err error, message string) {
	t.Helper()
	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr), "expected validation error, got %v", err)
	require.Equal(t, message, validationErr.Message)
}

func TestCaseInput_Validate(t *testing.T) {
	valid := models.CaseInput{
		Title:        "Robbery",
		Status:       models.CaseStatusOpen,
		Jurisdiction: "North District",
		CaseType:     "Robbery",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(in *models.CaseInput)
		message string
	}{
		{"missing title", func(in *models.CaseInput) { in.Title = " " }, "Title is required"},
		{"missing status", func(in *models.CaseInput) { in.Status = "" }, "Status is required"},
		{"unknown status", func(in *models.CaseInput) { in.Status = "Pending" }, "Invalid status"},
		{"missing jurisdiction", func(in *models.CaseInput) { in.Jurisdiction = "" }, "Jurisdiction is required"},
		{"missing case type", func(in *models.CaseInput) { in.CaseType = "" }, "Case type is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			requireValidationError(t, in.Validate(), tt.message)
		})
	}
}

func TestRecordInput_Validate(t *testing.T) {
	file := &models.Upload{Filename: "photo.jpg", Content: strings.NewReader("jpeg")}
	requireValidationError(t, models.RecordInput{CaseID: "case-001", RecordType: models.RecordTypeEvidence}.Validate(),
		"No file uploaded")
	requireValidationError(t, models.RecordInput{RecordType: models.RecordTypeEvidence, File: file}.Validate(),
		"Case is required")
	requireValidationError(t, models.RecordInput{CaseID: "case-001", RecordType: "Photo", File: file}.Validate(),
		"Invalid record type")
	require.NoError(t, models.RecordInput{CaseID: "case-001", RecordType: models.RecordTypeFIR, File: file}.Validate())
}

func TestPolicyInput(t *testing.T) {
	in := models.PolicyInput{
		Categories:   []string{"Evidence", " Evidence", "FIR", ""},
		AllowedOrgs:  []string{"Org1MSP"},
		AllowedRoles: []string{"admin", "admin"},
	}
	require.NoError(t, in.Validate())
	require.Equal(t, models.PolicyInput{
		Categories:   []string{"Evidence", "FIR"},
		AllowedOrgs:  []string{"Org1MSP"},
		AllowedRoles: []string{"admin"},
	}, in.Normalize())

	requireValidationError(t, models.PolicyInput{AllowedOrgs: []string{"Org1MSP"}, AllowedRoles: []string{"admin"}}.Validate(),
		"Please select at least one category")
	requireValidationError(t, models.PolicyInput{Categories: []string{"FIR"}, AllowedRoles: []string{"admin"}}.Validate(),
		"Please select at least one organization")
	requireValidationError(t, models.PolicyInput{
		Categories:   []string{"FIR"},
		AllowedOrgs:  []string{"Org1MSP"},
		AllowedRoles: []string{" "},
	}.Validate(), "Please select at least one role")
}

func TestRegisterInput_Validate(t *testing.T) {
	in := models.RegisterInput{
		Username:        "new_user",
		Password:        "secret",
		ConfirmPassword: "secret",
		FullName:        "New User",
		Email:           "new@example.com",
	}
	require.NoError(t, in.Validate())

	missing := in
	missing.Email = ""
	requireValidationError(t, missing.Validate(), "All fields are required")

	mismatch := in
	mismatch.ConfirmPassword = "other"
	requireValidationError(t, mismatch.Validate(), "Passwords do not match")

	withDefaults := in.WithDefaults()
	require.Equal(t, models.RoleInvestigator, withDefaults.Role)
	require.Equal(t, "Org1MSP", withDefaults.Organization)
}

func TestFilters(t *testing.T) {
	c := models.Case{Status: models.CaseStatusOpen, Jurisdiction: "North District"}
	require.True(t, models.CaseFilter{Status: models.CaseStatusOpen, Jurisdiction: "north"}.Matches(c))
	require.False(t, models.CaseFilter{Status: models.CaseStatusClosed, Jurisdiction: "north"}.Matches(c))
	require.False(t, models.CaseFilter{Status: models.CaseStatusOpen, Jurisdiction: "south"}.Matches(c))

	createdAt := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	r := models.Record{CaseID: "case-001", RecordType: models.RecordTypeEvidence, CreatedAt: createdAt}
	require.True(t, models.RecordFilter{DateFrom: createdAt, DateTo: createdAt}.Matches(r))
	require.False(t, models.RecordFilter{DateFrom: createdAt.Add(time.Hour)}.Matches(r))
	require.False(t, models.RecordFilter{DateTo: createdAt.Add(-time.Hour)}.Matches(r))
	require.False(t, models.RecordFilter{CaseID: "case-002"}.Matches(r))
	require.False(t, models.RecordFilter{RecordType: models.RecordTypeFIR}.Matches(r))
}
