package memory

import (
	"time"

	"github.com/myrjola/cdms/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

var seedCases = []models.Case{
	{
		ID:           "case-001",
		Title:        "Robbery at Downtown Bank",
		Status:       models.CaseStatusOpen,
		Jurisdiction: "Downtown District",
		CaseType:     "Robbery",
		Description:  "Armed robbery occurred at First National Bank on Main Street",
		CreatedBy:    "john_doe",
		CreatedAt:    day("2025-11-10"),
		Organization: "Org1MSP",
	},
	{
		ID:           "case-002",
		Title:        "Vehicle Theft Investigation",
		Status:       models.CaseStatusUnderInvestigation,
		Jurisdiction: "Central District",
		CaseType:     "Theft",
		Description:  "Multiple vehicle thefts reported in the central area",
		CreatedBy:    "jane_smith",
		CreatedAt:    day("2025-11-09"),
		Organization: "Org1MSP",
	},
	{
		ID:           "case-003",
		Title:        "Document Forgery Case",
		Status:       models.CaseStatusClosed,
		Jurisdiction: "North District",
		CaseType:     "Forgery",
		Description:  "Investigation into forged government documents",
		CreatedBy:    "john_doe",
		CreatedAt:    day("2025-11-08"),
		Organization: "Org1MSP",
	},
}

var seedRecords = []models.Record{
	{
		ID:          "record-001",
		CaseID:      "case-001",
		RecordType:  models.RecordTypeEvidence,
		Description: "Crime scene photos",
		FileHash:    "sha256:abc123def456",
		OffChainURI: "minio://bucket/record-001",
		OwnerOrg:    "Org1MSP",
		CreatedAt:   day("2025-11-10"),
	},
	{
		ID:          "record-002",
		CaseID:      "case-001",
		RecordType:  models.RecordTypeReport,
		Description: "Initial investigation report",
		FileHash:    "sha256:xyz789uvw012",
		OffChainURI: "minio://bucket/record-002",
		OwnerOrg:    "Org1MSP",
		CreatedAt:   day("2025-11-09"),
	},
}

var seedPolicies = []models.Policy{
	{
		PolicyID:     "policy-001",
		Categories:   []string{"Evidence", "FIR"},
		AllowedOrgs:  []string{"Org1MSP"},
		AllowedRoles: []string{"investigator", "forensics", "admin"},
		CreatedBy:    "Org1MSP",
		CreatedAt:    day("2025-11-10"),
	},
	{
		PolicyID:     "policy-002",
		Categories:   []string{"Report"},
		AllowedOrgs:  []string{"Org1MSP", "Org2MSP"},
		AllowedRoles: []string{"admin", "judge"},
		CreatedBy:    "Org1MSP",
		CreatedAt:    day("2025-11-09"),
	},
}

// DemoPassword is the password of every seeded user.
const DemoPassword = "password"

var seedUsers = []models.Profile{
	{Username: "john_doe", FullName: "John Doe", Role: "admin", Organization: "Org1MSP"},
	{Username: "jane_smith", FullName: "Jane Smith", Role: "investigator", Organization: "Org1MSP"},
	{Username: "alice_forensics", FullName: "Alice Forensics", Role: "forensics", Organization: "Org1MSP"},
	{Username: "judge_judy", FullName: "Judy Sheindlin", Role: "judge", Organization: "Org2MSP"},
}
