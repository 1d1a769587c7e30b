package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Membership transitions
	EventTypeJoinRequested    EventType = "membership.join_requested"
	EventTypeJoinApproved     EventType = "membership.join_approved"
	EventTypeJoinRejected     EventType = "membership.join_rejected"
	EventTypeJoinWithdrawn    EventType = "membership.join_withdrawn"
	EventTypeMemberAdded      EventType = "membership.member_added"
	EventTypeMemberRemoved    EventType = "membership.member_removed"
	EventTypeOrganizerAdded   EventType = "membership.organizer_added"
	EventTypeOrganizerRemoved EventType = "membership.organizer_removed"

	// Location lifecycle
	EventTypeLocationCreated EventType = "location.created"
	EventTypeLocationUpdated EventType = "location.updated"
	EventTypeLocationDeleted EventType = "location.deleted"

	// Meetup content
	EventTypeMeetupCreated          EventType = "meetup.created"
	EventTypeMeetupUpdated          EventType = "meetup.updated"
	EventTypeMeetupDeleted          EventType = "meetup.deleted"
	EventTypeSupportRequestApproved EventType = "meetup.support_request_approved"
	EventTypeSupportRequestRejected EventType = "meetup.support_request_rejected"
	EventTypeCommentApproved        EventType = "meetup.comment_approved"
	EventTypeCommentDeleted         EventType = "meetup.comment_deleted"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	// EventStatusSuccess means state changed
	EventStatusSuccess EventStatus = "success"
	// EventStatusNoOp means the request was valid but a business rule kept state unchanged
	EventStatusNoOp EventStatus = "noop"
	// EventStatusDenied means the guard rejected the actor
	EventStatusDenied EventStatus = "denied"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	ActorID       *int64 `json:"actor_id,omitempty"`
	ActorUsername string `json:"actor_username,omitempty"`

	// Location and target
	LocationID     *int64 `json:"location_id,omitempty"`
	LocationSlug   string `json:"location_slug,omitempty"`
	TargetUserID   *int64 `json:"target_user_id,omitempty"`
	TargetUsername string `json:"target_username,omitempty"`

	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	ActorID      *int64
	LocationSlug string
	EventTypes   []EventType
	Status       *EventStatus

	Limit  int
	Offset int
}
