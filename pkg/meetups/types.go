package meetups

import (
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/platinummonkey/meetup/pkg/outcome"
)

const (
	// DateLayout is the wire and storage format of a meetup date
	DateLayout = "2006-01-02"
	// TimeLayout is the wire and storage format of a meetup start time
	TimeLayout = "15:04"

	maxTitleLength = 50
	maxSlugLength  = 50
)

// Meetup is a single event held by a location
type Meetup struct {
	ID          int64     `json:"id"`
	LocationID  int64     `json:"location_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Date        string    `json:"date"`
	Time        string    `json:"time,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MeetupInput is the editable part of a meetup
type MeetupInput struct {
	Title       string `json:"title"`
	Slug        string `json:"slug,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Description string `json:"description,omitempty"`
}

// Normalize trims input and derives the slug from the title when absent
func (in *MeetupInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	if t, err := time.Parse(TimeLayout, in.Time); err == nil {
		in.Time = t.Format(TimeLayout)
	}
	if in.Slug == "" && in.Title != "" {
		in.Slug = strings.Trim(truncate(slug.Make(in.Title), maxSlugLength), "-")
	}
}

// Validate checks field constraints. A meetup may not be scheduled in the
// past: the date must not be before today and, for today, the time must
// not have passed already.
func (in *MeetupInput) Validate(now time.Time) error {
	verr := outcome.NewValidationError()

	switch {
	case in.Title == "":
		verr.Add("title", "This field is required.")
	case len(in.Title) > maxTitleLength:
		verr.Add("title", "Ensure this value has at most 50 characters.")
	}

	switch {
	case in.Slug == "":
		verr.Add("slug", "This field is required.")
	case len(in.Slug) > maxSlugLength:
		verr.Add("slug", "Ensure this value has at most 50 characters.")
	case !slug.IsSlug(in.Slug):
		verr.Add("slug", "Enter a valid slug consisting of lowercase letters, numbers, and hyphens.")
	}

	if in.Time != "" {
		if _, err := time.Parse(TimeLayout, in.Time); err != nil {
			verr.Add("time", "Enter a valid time.")
		}
	}

	today := now.Format(DateLayout)
	switch {
	case in.Date == "":
		verr.Add("date", "This field is required.")
	case !validDate(in.Date):
		verr.Add("date", "Enter a valid date.")
	case in.Date < today:
		verr.Add("date", "Date should not be less than today's date.")
	case in.Date == today && in.Time != "" && in.Time < now.Format(TimeLayout):
		verr.Add("time", "Time should not be a time that has already passed.")
	}

	return verr.OrNil()
}

func (in *MeetupInput) apply(m *Meetup) {
	m.Title = in.Title
	m.Slug = in.Slug
	m.Date = in.Date
	m.Time = in.Time
	m.Venue = in.Venue
	m.Description = in.Description
}

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Rsvp is a user's answer for a meetup
type Rsvp struct {
	ID        int64     `json:"id"`
	MeetupID  int64     `json:"meetup_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Coming    bool      `json:"coming"`
	PlusOne   bool      `json:"plus_one"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RsvpInput is a submitted RSVP. Omitted fields default to coming without
// a plus one.
type RsvpInput struct {
	Coming  *bool `json:"coming,omitempty"`
	PlusOne *bool `json:"plus_one,omitempty"`
}

func (in RsvpInput) values() (coming, plusOne bool) {
	coming = true
	if in.Coming != nil {
		coming = *in.Coming
	}
	if in.PlusOne != nil {
		plusOne = *in.PlusOne
	}
	return coming, plusOne
}

// RsvpSummary counts the answers for a meetup
type RsvpSummary struct {
	Coming    int `json:"coming"`
	NotComing int `json:"not_coming"`
	PlusOnes  int `json:"plus_ones"`
	Attendees int `json:"attendees"`
}

func summarize(rsvps []Rsvp) RsvpSummary {
	var s RsvpSummary
	for _, r := range rsvps {
		if !r.Coming {
			s.NotComing++
			continue
		}
		s.Coming++
		if r.PlusOne {
			s.PlusOnes++
		}
	}
	s.Attendees = s.Coming + s.PlusOnes
	return s
}

// SupportRequest is a member's offer to help at a meetup
type SupportRequest struct {
	ID                int64     `json:"id"`
	MeetupID          int64     `json:"meetup_id"`
	VolunteerID       *int64    `json:"volunteer_id,omitempty"`
	VolunteerUsername string    `json:"volunteer,omitempty"`
	Description       string    `json:"description"`
	IsApproved        bool      `json:"is_approved"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func validateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		verr := outcome.NewValidationError()
		verr.Add("description", "This field is required.")
		return verr
	}
	return nil
}

// TargetKind tags what a comment is attached to
type TargetKind string

const (
	TargetMeetup         TargetKind = "meetup"
	TargetSupportRequest TargetKind = "support_request"
)

// Target identifies the object a comment belongs to
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   int64      `json:"id"`
}

// MeetupTarget targets a meetup
func MeetupTarget(id int64) Target {
	return Target{Kind: TargetMeetup, ID: id}
}

// SupportRequestTarget targets a support request
func SupportRequestTarget(id int64) Target {
	return Target{Kind: TargetSupportRequest, ID: id}
}

// Comment is a note on a meetup or a support request
type Comment struct {
	ID             int64     `json:"id"`
	LocationID     int64     `json:"location_id"`
	Target         Target    `json:"target"`
	AuthorID       *int64    `json:"author_id,omitempty"`
	AuthorUsername string    `json:"author,omitempty"`
	Body           string    `json:"body"`
	IsApproved     bool      `json:"is_approved"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		verr := outcome.NewValidationError()
		verr.Add("body", "This field is required.")
		return verr
	}
	return nil
}
