package models

import (
	"io"
	"time"
)

type RecordType string

const (
	RecordTypeFIR              RecordType = "FIR"
	RecordTypeEvidence         RecordType = "Evidence"
	RecordTypeReport           RecordType = "Report"
	RecordTypeWitnessStatement RecordType = "WitnessStatement"
)

var RecordTypes = []RecordType{RecordTypeFIR, RecordTypeEvidence, RecordTypeReport, RecordTypeWitnessStatement}

func (t RecordType) Valid() bool {
	for _, recordType := range RecordTypes {
		if t == recordType {
			return true
		}
	}
	return false
}

type Record struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"caseId"`
	RecordType  RecordType `json:"recordType"`
	Description string     `json:"description"`
	FileHash    string     `json:"fileHash"`
	OffChainURI string     `json:"offChainUri"`
	OwnerOrg    string     `json:"ownerOrg"`
	CreatedAt   time.Time  `json:"createdAt"`
	PolicyID    string     `json:"policyId,omitempty"`
}

// RecordFilter narrows a record listing. Zero values do not filter. The date range is inclusive.
type RecordFilter struct {
	CaseID     string
	RecordType RecordType
	DateFrom   time.Time
	DateTo     time.Time
	Limit      int
}

// Matches reports whether r satisfies every predicate of the filter. Limit is not considered.
func (f RecordFilter) Matches(r Record) bool {
	if f.CaseID != "" && r.CaseID != f.CaseID {
		return false
	}
	if f.RecordType != "" && r.RecordType != f.RecordType {
		return false
	}
	if !f.DateFrom.IsZero() && r.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && r.CreatedAt.After(f.DateTo) {
		return false
	}
	return true
}

// Upload is a file attached to the record creation form. The content is relayed without inspection.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// RecordInput holds the fields of the record upload form.
type RecordInput struct {
	CaseID      string
	RecordType  RecordType
	Description string
	PolicyID    string
	File        *Upload
}

func (in RecordInput) Validate() error {
	switch {
	case in.File == nil || in.File.Content == nil:
		return invalid("file", "No file uploaded")
	case blank(in.CaseID):
		return invalid("caseId", "Case is required")
	case blank(string(in.RecordType)):
		return invalid("recordType", "Record type is required")
	case !in.RecordType.Valid():
		return invalid("recordType", "Invalid record type")
	}
	return nil
}
