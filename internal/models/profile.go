package models

// ProfileView is the profile page of the signed-in user.
type ProfileView struct {
	Username         string
	FullName         string
	Email            string
	Role             Role
	Organization     string
	OrganizationName string
	Status           string
	Permissions      []string
}

func NewProfileView(identity Identity) ProfileView {
	return ProfileView{
		Username:         identity.Username,
		FullName:         identity.FullName,
		Email:            identity.ContactEmail(),
		Role:             identity.Role,
		Organization:     identity.Organization,
		OrganizationName: OrganizationName(identity.Organization),
		Status:           "Active",
		Permissions:      identity.Role.Capabilities(),
	}
}
