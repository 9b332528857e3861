package models

// RegisterInput holds the fields of the registration form.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	FullName        string
	Email           string
	Role            Role
	Organization    string
}

// Validate checks the form before the backend is contacted.
func (in RegisterInput) Validate() error {
	if blank(in.Username) || in.Password == "" || in.ConfirmPassword == "" || blank(in.FullName) || blank(in.Email) {
		return invalid("", "All fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return invalid("confirmPassword", "Passwords do not match")
	}
	if in.Role != "" && !in.Role.Valid() {
		return invalid("role", "Invalid role")
	}
	return nil
}

// WithDefaults fills in the role and organization when the form leaves them out.
func (in RegisterInput) WithDefaults() RegisterInput {
	if in.Role == "" {
		in.Role = DefaultRole
	}
	if in.Organization == "" {
		in.Organization = DefaultOrganization
	}
	return in
}
