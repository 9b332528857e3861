package models

import (
	"strings"
	"time"
)

type CaseStatus string

const (
	CaseStatusOpen               CaseStatus = "Open"
	CaseStatusUnderInvestigation CaseStatus = "Under Investigation"
	CaseStatusClosed             CaseStatus = "Closed"
)

// CaseStatuses lists the statuses in the order they are offered in forms.
var CaseStatuses = []CaseStatus{CaseStatusOpen, CaseStatusUnderInvestigation, CaseStatusClosed}

func (s CaseStatus) Valid() bool {
	for _, status := range CaseStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Case struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Status       CaseStatus `json:"status"`
	Jurisdiction string     `json:"jurisdiction"`
	CaseType     string     `json:"caseType"`
	Description  string     `json:"description"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	Organization string     `json:"organization"`
	PolicyID     string     `json:"policyId,omitempty"`
}

// CaseFilter narrows a case listing. Zero values do not filter.
type CaseFilter struct {
	Status       CaseStatus
	Jurisdiction string
	Limit        int
}

// Matches reports whether c satisfies every predicate of the filter. Limit is not considered.
func (f CaseFilter) Matches(c Case) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Jurisdiction != "" &&
		!strings.Contains(strings.ToLower(c.Jurisdiction), strings.ToLower(f.Jurisdiction)) {
		return false
	}
	return true
}

// CaseInput holds the fields of the case creation form.
type CaseInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       CaseStatus `json:"status"`
	Jurisdiction string     `json:"jurisdiction"`
	CaseType     string     `json:"caseType"`
	PolicyID     string     `json:"policyId,omitempty"`
}

func (in CaseInput) Validate() error {
	switch {
	case blank(in.Title):
		return invalid("title", "Title is required")
	case blank(string(in.Status)):
		return invalid("status", "Status is required")
	case !in.Status.Valid():
		return invalid("status", "Invalid status")
	case blank(in.Jurisdiction):
		return invalid("jurisdiction", "Jurisdiction is required")
	case blank(in.CaseType):
		return invalid("caseType", "Case type is required")
	}
	return nil
}
