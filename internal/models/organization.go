package models

// Organizations lists the tenants known to the front end.
var Organizations = []string{"Org1MSP", "Org2MSP"}

var organizationNames = map[string]string{
	"Org1MSP": "Police Department",
	"Org2MSP": "Judiciary",
}

// OrganizationName returns the display name of the organization identifier.
func OrganizationName(org string) string {
	if name, ok := organizationNames[org]; ok {
		return name
	}
	return org
}
