package rbac

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPermissionTable(t *testing.T) {
	table := DefaultPermissionTable()

	tests := []struct {
		role       Role
		capability Capability
		want       bool
	}{
		{RoleOrganizer, CapApproveJoinRequest, true},
		{RoleOrganizer, CapDeleteOrganizer, true},
		{RoleOrganizer, CapAddRsvp, false},
		{RoleMember, CapAddRsvp, true},
		{RoleMember, CapAddSupportRequest, true},
		{RoleMember, CapAddMeetup, false},
		{RoleApplicant, CapWithdrawJoinRequest, true},
		{RoleApplicant, CapAddComment, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.want, table.Grants(tt.role, tt.capability))
		})
	}

	assert.Len(t, table.Capabilities(RoleOrganizer), 15)
	assert.Len(t, table.Capabilities(RoleMember), 3)
	assert.Len(t, table.Capabilities(RoleApplicant), 1)
}

func TestPermissionTable_IsImmutable(t *testing.T) {
	input := map[Role][]Capability{RoleMember: {CapAddRsvp}}
	table, err := NewPermissionTable(input)
	require.NoError(t, err)

	input[RoleMember][0] = CapDeleteMeetup
	caps := table.Capabilities(RoleMember)
	caps[0] = CapDeleteMeetup

	assert.Equal(t, []Capability{CapAddRsvp}, table.Capabilities(RoleMember))
}

func TestNewPermissionTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		grants  map[Role][]Capability
		wantErr string
	}{
		{
			name:    "unknown role",
			grants:  map[Role][]Capability{"owner": {CapAddMeetup}},
			wantErr: "unknown role",
		},
		{
			name:    "unknown capability",
			grants:  map[Role][]Capability{RoleMember: {"fly"}},
			wantErr: "unknown capability",
		},
		{
			name:    "model level capability",
			grants:  map[Role][]Capability{RoleOrganizer: {CapAddLocation}},
			wantErr: "cannot be scoped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPermissionTable(tt.grants)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPermissionTable_Deduplicates(t *testing.T) {
	table, err := NewPermissionTable(map[Role][]Capability{
		RoleMember: {CapAddRsvp, CapAddComment, CapAddRsvp},
	})
	require.NoError(t, err)
	assert.Equal(t, []Capability{CapAddComment, CapAddRsvp}, table.Capabilities(RoleMember))
}

func TestLoadPermissionTable(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "permissions.yaml")
		content := `roles:
  organizer: [add_meetup, change_meetup]
  member: [add_meetup_rsvp]
  applicant: []
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		table, err := LoadPermissionTable(path)
		require.NoError(t, err)
		assert.True(t, table.Grants(RoleOrganizer, CapChangeMeetup))
		assert.False(t, table.Grants(RoleOrganizer, CapDeleteMeetup))
		assert.Empty(t, table.Capabilities(RoleApplicant))
	})

	t.Run("unknown capability", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("roles:\n  member: [juggle]\n"), 0o600))

		_, err := LoadPermissionTable(path)
		assert.Error(t, err)
	})

	t.Run("no roles", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("roles: {}\n"), 0o600))

		_, err := LoadPermissionTable(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPermissionTable(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestGroupNamesFor(t *testing.T) {
	names := GroupNamesFor("Foo Systers")
	assert.Equal(t, "Foo Systers Organizers", names.Organizers)
	assert.Equal(t, "Foo Systers Members", names.Members)
	assert.Equal(t, "Foo Systers Applicants", names.Applicants)
	assert.Equal(t, names.Members, names.For(RoleMember))
	assert.Equal(t, "", names.For("owner"))
	assert.Len(t, names.All(), 3)
}

func TestGroupNamesFor_LongestLocationNameFits(t *testing.T) {
	assert.Equal(t, 139, MaxLocationNameLength)

	for _, name := range []string{
		strings.Repeat("a", MaxLocationNameLength),
		strings.Repeat("é", MaxLocationNameLength),
	} {
		for _, group := range GroupNamesFor(name).All() {
			assert.LessOrEqual(t, utf8.RuneCountInString(group), MaxGroupNameLength, group)
		}
	}

	over := GroupNamesFor(strings.Repeat("a", MaxLocationNameLength+1))
	assert.Greater(t, len(over.Organizers), MaxGroupNameLength)
}
