package models

// Permission is an action that is gated by the role of the user.
type Permission string

const (
	PermissionCreateCase     Permission = "case:create"
	PermissionDeleteCase     Permission = "case:delete"
	PermissionUploadRecord   Permission = "record:upload"
	PermissionDeleteRecord   Permission = "record:delete"
	PermissionManagePolicies Permission = "policy:manage"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionCreateCase, PermissionDeleteCase,
		PermissionUploadRecord, PermissionDeleteRecord,
		PermissionManagePolicies,
	},
	RoleInvestigator: {PermissionCreateCase, PermissionUploadRecord},
	RoleForensics:    {PermissionUploadRecord},
	RoleJudge:        {},
}

// Can reports whether the role grants the permission.
func (r Role) Can(p Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

var capabilities = map[Role][]string{
	RoleAdmin: {
		"View all cases",
		"Create cases",
		"Delete cases",
		"View all records",
		"Upload records",
		"Delete records",
		"Manage policies",
		"Manage users",
		"View reports",
	},
	RoleInvestigator: {
		"View assigned cases",
		"Create cases",
		"View assigned records",
		"Upload records",
		"Search records",
		"Generate reports",
	},
	RoleForensics: {
		"View case evidence",
		"Upload evidence",
		"Analyze evidence",
		"Generate forensic reports",
	},
	RoleJudge: {
		"View cases",
		"View court-approved records",
		"Access sealed evidence",
	},
}

// Capabilities returns the human readable capabilities of the role shown on the profile page.
func (r Role) Capabilities() []string {
	return capabilities[r]
}
