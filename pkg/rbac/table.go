package rbac

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// PermissionTable maps each location role to the capabilities its group
// holds on that location. It is immutable once constructed.
type PermissionTable struct {
	grants map[Role][]Capability
}

// NewPermissionTable builds a table from grants. Capabilities are copied,
// deduplicated and sorted. Unknown roles, unknown capabilities and
// model-level capabilities are rejected.
func NewPermissionTable(grants map[Role][]Capability) (*PermissionTable, error) {
	table := &PermissionTable{grants: make(map[Role][]Capability, len(AllRoles))}

	for role, caps := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", role)
		}

		seen := make(map[Capability]bool, len(caps))
		list := make([]Capability, 0, len(caps))
		for _, c := range caps {
			if !c.Valid() {
				return nil, fmt.Errorf("unknown capability %q for role %s", c, role)
			}
			if !c.IsObjectLevel() {
				return nil, fmt.Errorf("capability %q cannot be scoped to a location", c)
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			list = append(list, c)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		table.grants[role] = list
	}

	return table, nil
}

// DefaultPermissionTable returns the built-in role grants
func DefaultPermissionTable() *PermissionTable {
	table, err := NewPermissionTable(map[Role][]Capability{
		RoleOrganizer: {
			CapAddMeetup, CapChangeMeetup, CapDeleteMeetup,
			CapAddMember, CapDeleteMember,
			CapAddOrganizer, CapDeleteOrganizer,
			CapApproveJoinRequest, CapRejectJoinRequest,
			CapApproveSupportRequest, CapRejectSupportRequest, CapDeleteSupportRequest,
			CapChangeLocation, CapApproveComment, CapDeleteComment,
		},
		RoleMember: {
			CapAddRsvp, CapAddSupportRequest, CapAddComment,
		},
		RoleApplicant: {
			CapWithdrawJoinRequest,
		},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// Capabilities returns a copy of the capabilities granted to role
func (t *PermissionTable) Capabilities(role Role) []Capability {
	caps := t.grants[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Grants reports whether role holds capability
func (t *PermissionTable) Grants(role Role, capability Capability) bool {
	for _, c := range t.grants[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// permissionTableFile is the on-disk form of a PermissionTable
type permissionTableFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPermissionTable reads a YAML permission table:
//
//	roles:
//	  organizer: [add_meetup, change_meetup]
//	  member: [add_meetup_rsvp]
func LoadPermissionTable(path string) (*PermissionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permission table: %w", err)
	}

	var file permissionTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse permission table: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("permission table %s defines no roles", path)
	}

	grants := make(map[Role][]Capability, len(file.Roles))
	for role, caps := range file.Roles {
		for _, c := range caps {
			grants[Role(role)] = append(grants[Role(role)], Capability(c))
		}
		if _, ok := grants[Role(role)]; !ok {
			grants[Role(role)] = nil
		}
	}

	return NewPermissionTable(grants)
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}
