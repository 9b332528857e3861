package models

import "time"

type Policy struct {
	PolicyID     string    `json:"policyId"`
	Categories   []string  `json:"categories"`
	AllowedOrgs  []string  `json:"allowedOrgs"`
	AllowedRoles []string  `json:"allowedRoles"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

type PolicyFilter struct {
	Limit int
}

// PolicyInput holds the fields of the policy creation form.
type PolicyInput struct {
	Categories   []string `json:"categories"`
	AllowedOrgs  []string `json:"allowedOrgs"`
	AllowedRoles []string `json:"allowedRoles"`
}

// Normalize returns the input with every set trimmed and de-duplicated.
func (in PolicyInput) Normalize() PolicyInput {
	return PolicyInput{
		Categories:   normalizeSet(in.Categories),
		AllowedOrgs:  normalizeSet(in.AllowedOrgs),
		AllowedRoles: normalizeSet(in.AllowedRoles),
	}
}

func (in PolicyInput) Validate() error {
	in = in.Normalize()
	switch {
	case len(in.Categories) == 0:
		return invalid("categories", "Please select at least one category")
	case len(in.AllowedOrgs) == 0:
		return invalid("allowedOrgs", "Please select at least one organization")
	case len(in.AllowedRoles) == 0:
		return invalid("allowedRoles", "Please select at least one role")
	}
	return nil
}
