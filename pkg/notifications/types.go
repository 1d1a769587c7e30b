package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoticeType names a kind of notice understood by the delivery worker
type NoticeType string

const (
	NoticeNewJoinRequest         NoticeType = "new_join_request"
	NoticeJoinedLocation         NoticeType = "joined_meetup_location"
	NoticeMadeOrganizer          NoticeType = "made_organizer"
	NoticeNewMeetup              NoticeType = "new_meetup"
	NoticeNewSupportRequest      NoticeType = "new_support_request"
	NoticeSupportRequestApproved NoticeType = "support_request_approved"
	NoticeSupportRequestComment  NoticeType = "support_request_comment"
	NoticeJoinRequestReminder    NoticeType = "join_request_reminder"
)

// Label returns the human-readable title of the notice type
func (t NoticeType) Label() string {
	switch t {
	case NoticeNewJoinRequest:
		return "New Join Request"
	case NoticeJoinedLocation:
		return "Joined Meetup Location"
	case NoticeMadeOrganizer:
		return "Made Organizer"
	case NoticeNewMeetup:
		return "New Meetup"
	case NoticeNewSupportRequest:
		return "New Support Request"
	case NoticeSupportRequestApproved:
		return "Support Request Approved"
	case NoticeSupportRequestComment:
		return "Comment on Support Request"
	case NoticeJoinRequestReminder:
		return "Pending Join Requests"
	}
	return string(t)
}

// Notice is a message for one or more users
type Notice struct {
	ID           string                 `json:"id"`
	Type         NoticeType             `json:"type"`
	Recipients   []int64                `json:"recipients"`
	ActorID      *int64                 `json:"actor_id,omitempty"`
	LocationSlug string                 `json:"location_slug,omitempty"`
	Message      string                 `json:"message"`
	Data         map[string]interface{} `json:"data,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewNotice creates a notice with a fresh ID
func NewNotice(noticeType NoticeType, recipients []int64, message string) *Notice {
	return &Notice{
		ID:         uuid.New().String(),
		Type:       noticeType,
		Recipients: recipients,
		Message:    message,
		Data:       make(map[string]interface{}),
		CreatedAt:  time.Now().UTC(),
	}
}

// Publisher hands notices to the delivery worker
type Publisher interface {
	Publish(ctx context.Context, notice *Notice) error
}

// NoopPublisher drops every notice
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(ctx context.Context, notice *Notice) error {
	return nil
}
