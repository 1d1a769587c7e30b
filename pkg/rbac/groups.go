package rbac

import "fmt"

// MaxGroupNameLength is the width of auth_groups.name
const MaxGroupNameLength = 150

const (
	organizersSuffix = " Organizers"
	membersSuffix    = " Members"
	applicantsSuffix = " Applicants"
)

// MaxLocationNameLength is the longest location name whose derived group
// names fit MaxGroupNameLength
const MaxLocationNameLength = MaxGroupNameLength - len(organizersSuffix)

// GroupNames holds the authorization group names derived from a location name
type GroupNames struct {
	Organizers string
	Members    string
	Applicants string
}

// GroupNamesFor derives the group names for a location
func GroupNamesFor(locationName string) GroupNames {
	return GroupNames{
		Organizers: fmt.Sprintf("%s%s", locationName, organizersSuffix),
		Members:    fmt.Sprintf("%s%s", locationName, membersSuffix),
		Applicants: fmt.Sprintf("%s%s", locationName, applicantsSuffix),
	}
}

// For returns the group name backing role
func (g GroupNames) For(role Role) string {
	switch role {
	case RoleOrganizer:
		return g.Organizers
	case RoleMember:
		return g.Members
	case RoleApplicant:
		return g.Applicants
	}
	return ""
}

// All returns the group names in provisioning order
func (g GroupNames) All() []string {
	return []string{g.Organizers, g.Members, g.Applicants}
}
