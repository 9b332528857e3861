package models

// Role is the function a user has inside their organization.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleInvestigator Role = "investigator"
	RoleForensics    Role = "forensics"
	RoleJudge        Role = "judge"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleInvestigator, RoleForensics, RoleJudge}

// DefaultRole is assigned when the backend profile does not provide one.
const DefaultRole = RoleInvestigator

// DefaultOrganization is the tenant assigned when the backend profile does not provide one.
const DefaultOrganization = "Org1MSP"

var roleDisplayNames = map[Role]string{
	RoleAdmin:        "Administrator",
	RoleInvestigator: "Investigator",
	RoleForensics:    "Forensics Specialist",
	RoleJudge:        "Judge",
}

// DisplayName returns the human readable name of the role.
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleDisplayNames[r]
	return ok
}

// Identity is the authenticated user stored in the session.
type Identity struct {
	Username     string
	FullName     string
	Email        string
	Role         Role
	Organization string
	// Token is the bearer token issued by the backend on login.
	Token string
}

// Profile is the user profile as returned by the backend. The backend is inconsistent with the naming of
// some fields, so alternatives are accepted.
type Profile struct {
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	FullNameLower  string `json:"fullname"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Organization   string `json:"organization"`
	OrganizationID string `json:"organizationId"`
}

// NewIdentity merges the backend profile with defaults so that no field of the identity is left empty.
//
// username is the name the user logged in with and is used whenever the profile lacks one.
func NewIdentity(username string, token string, profile Profile) Identity {
	identity := Identity{
		Username:     firstNonEmpty(profile.Username, username),
		FullName:     firstNonEmpty(profile.FullName, profile.FullNameLower, profile.Name, profile.Username, username),
		Email:        profile.Email,
		Role:         Role(firstNonEmpty(profile.Role, string(DefaultRole))),
		Organization: firstNonEmpty(profile.Organization, profile.OrganizationID, DefaultOrganization),
		Token:        token,
	}
	return identity
}

// ContactEmail returns the e-mail address of the user, falling back to the agency address scheme.
func (i Identity) ContactEmail() string {
	if i.Email != "" {
		return i.Email
	}
	return i.Username + "@cdms.gov"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
