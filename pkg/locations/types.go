package locations

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"

	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// PageSize is the number of locations per listing page
const PageSize = 20

const (
	maxNameLength = rbac.MaxLocationNameLength
	maxSlugLength = 150
)

// Location is a meetup location
type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	Description string    `json:"description,omitempty"`
	Email       string    `json:"email,omitempty"`
	Sponsors    string    `json:"sponsors,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref returns the reference used for group provisioning
func (l *Location) Ref() rbac.LocationRef {
	return rbac.LocationRef{ID: l.ID, Name: l.Name}
}

// Groups returns the location's derived group names
func (l *Location) Groups() rbac.GroupNames {
	return rbac.GroupNamesFor(l.Name)
}

// MembershipState is a user's standing in one location
type MembershipState string

const (
	StateNone      MembershipState = "NONE"
	StatePending   MembershipState = "PENDING"
	StateMember    MembershipState = "MEMBER"
	StateOrganizer MembershipState = "ORGANIZER"
)

// IsMember reports whether the state counts as membership. Organizers are
// members for listing purposes.
func (s MembershipState) IsMember() bool {
	return s == StateMember || s == StateOrganizer
}

// Member is a row of a location's member listing
type Member struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name,omitempty"`
	IsOrganizer bool      `json:"is_organizer"`
	JoinedAt    time.Time `json:"joined_at"`
}

// JoinRequest is a pending application to join a location
type JoinRequest struct {
	ID          int64     `json:"id"`
	LocationID  int64     `json:"location_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"requested_at"`
}

// Page is one page of the location listing
type Page struct {
	Locations  []*Location `json:"locations"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	Total      int         `json:"total"`
}

// LocationInput holds the editable fields of a location
type LocationInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty"`
	Sponsors    string `json:"sponsors,omitempty"`
}

// Normalize trims the input and derives the slug from the name when unset
func (in *LocationInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Email = strings.TrimSpace(in.Email)
	if in.Slug == "" && in.Name != "" {
		in.Slug = slug.Make(in.Name)
	}
}

// Validate checks field constraints. Call Normalize first.
func (in *LocationInput) Validate() error {
	verr := outcome.NewValidationError()

	switch {
	case in.Name == "":
		verr.Add("name", "This field is required.")
	case utf8.RuneCountInString(in.Name) > maxNameLength:
		verr.Add("name", fmt.Sprintf("Ensure this value has at most %d characters.", maxNameLength))
	}

	switch {
	case in.Slug == "":
		verr.Add("slug", "This field is required.")
	case len(in.Slug) > maxSlugLength:
		verr.Add("slug", "Ensure this value has at most 150 characters.")
	case !slug.IsSlug(in.Slug):
		verr.Add("slug", "Enter a valid slug consisting of lowercase letters, numbers, and hyphens.")
	}

	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			verr.Add("email", "Enter a valid email address.")
		}
	}

	return verr.OrNil()
}

// apply copies the input onto loc
func (in *LocationInput) apply(loc *Location) {
	loc.Name = in.Name
	loc.Slug = in.Slug
	loc.City = in.City
	loc.Country = in.Country
	loc.Description = in.Description
	loc.Email = in.Email
	loc.Sponsors = in.Sponsors
}
