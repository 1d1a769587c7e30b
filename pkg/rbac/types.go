package rbac

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/meetup/pkg/auth"
)

// Capability is a named permission grant, optionally scoped to a location
type Capability string

// Object-level capabilities, granted to location groups
const (
	CapAddMeetup             Capability = "add_meetup"
	CapChangeMeetup          Capability = "change_meetup"
	CapDeleteMeetup          Capability = "delete_meetup"
	CapAddMember             Capability = "add_meetup_location_member"
	CapDeleteMember          Capability = "delete_meetup_location_member"
	CapAddOrganizer          Capability = "add_meetup_location_organizer"
	CapDeleteOrganizer       Capability = "delete_meetup_location_organizer"
	CapApproveJoinRequest    Capability = "approve_meetup_location_joinrequest"
	CapRejectJoinRequest     Capability = "reject_meetup_location_joinrequest"
	CapWithdrawJoinRequest   Capability = "withdraw_meetup_location_joinrequest"
	CapApproveSupportRequest Capability = "approve_support_request"
	CapRejectSupportRequest  Capability = "reject_support_request"
	CapDeleteSupportRequest  Capability = "delete_support_request"
	CapChangeLocation        Capability = "change_meetup_location"
	CapApproveComment        Capability = "approve_comment"
	CapDeleteComment         Capability = "delete_comment"
	CapAddRsvp               Capability = "add_meetup_rsvp"
	CapAddSupportRequest     Capability = "add_support_request"
	CapAddComment            Capability = "add_comment"
)

// Model-level capabilities, granted to individual users
const (
	CapAddLocation    Capability = "add_meetup_location"
	CapDeleteLocation Capability = "delete_meetup_location"
)

var objectCapabilities = map[Capability]bool{
	CapAddMeetup: true, CapChangeMeetup: true, CapDeleteMeetup: true,
	CapAddMember: true, CapDeleteMember: true,
	CapAddOrganizer: true, CapDeleteOrganizer: true,
	CapApproveJoinRequest: true, CapRejectJoinRequest: true, CapWithdrawJoinRequest: true,
	CapApproveSupportRequest: true, CapRejectSupportRequest: true, CapDeleteSupportRequest: true,
	CapChangeLocation: true, CapApproveComment: true, CapDeleteComment: true,
	CapAddRsvp: true, CapAddSupportRequest: true, CapAddComment: true,
}

var modelCapabilities = map[Capability]bool{
	CapAddLocation:    true,
	CapDeleteLocation: true,
}

// IsObjectLevel reports whether c can be scoped to a location
func (c Capability) IsObjectLevel() bool {
	return objectCapabilities[c]
}

// IsModelLevel reports whether c is granted without a location scope
func (c Capability) IsModelLevel() bool {
	return modelCapabilities[c]
}

// Valid reports whether c is a known capability
func (c Capability) Valid() bool {
	return c.IsObjectLevel() || c.IsModelLevel()
}

// Role is a location-scoped role backed by an authorization group
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleMember    Role = "member"
	RoleApplicant Role = "applicant"
)

// AllRoles lists roles in provisioning order
var AllRoles = []Role{RoleOrganizer, RoleMember, RoleApplicant}

// LocationRef identifies a location for group provisioning
type LocationRef struct {
	ID   int64
	Name string
}

// PermissionCheck is a single guard question
type PermissionCheck struct {
	Actor      *auth.User
	Capability Capability
	LocationID *int64 // nil for model-level checks
}

// PermissionCheckResult is the answer to a PermissionCheck
type PermissionCheckResult struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Cached    bool      `json:"cached"`
	CheckedAt time.Time `json:"checked_at"`
}

// ErrAccessDenied is the parent of every guard denial
var ErrAccessDenied = errors.New("access denied")

var (
	// ErrForbidden means the actor lacks the required capability
	ErrForbidden = fmt.Errorf("forbidden: %w", ErrAccessDenied)

	// ErrAuthenticationRequired means the operation needs an authenticated actor
	ErrAuthenticationRequired = fmt.Errorf("authentication required: %w", ErrAccessDenied)
)
