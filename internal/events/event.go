package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published to the message bus
const (
	EventUserRegistered       = "user.registered"
	EventCourseCreated        = "course.created"
	EventCourseMemberJoined   = "course.member_joined"
	EventNoteCreated          = "note.created"
	EventNoteUpdated          = "note.updated"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationReviewed  = "application.reviewed"
)

const (
	eventSource  = "knowledge-forum-service"
	eventVersion = "1.0"
)

// Event is the envelope every published message shares
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope around a payload
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Timestamp: time.Now().UTC(),
		Version:   eventVersion,
		Data:      data,
	}
}

// ===== EVENT PAYLOADS =====

type CourseMemberJoinedEvent struct {
	CourseID    uuid.UUID `json:"course_id"`
	UserID      uuid.UUID `json:"user_id"`
	MemberCount int       `json:"member_count"`
	JoinedAt    time.Time `json:"joined_at"`
}

type NoteCreatedEvent struct {
	NoteID       uuid.UUID  `json:"note_id"`
	CourseID     uuid.UUID  `json:"course_id"`
	AuthorID     uuid.UUID  `json:"author_id"`
	NoteType     string     `json:"note_type"`
	ParentNoteID *uuid.UUID `json:"parent_note_id,omitempty"`
}

type ApplicationReviewedEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	ApplicantID   uuid.UUID `json:"applicant_id"`
	ReviewerID    uuid.UUID `json:"reviewer_id"`
	Status        string    `json:"status"`
	ReviewedAt    time.Time `json:"reviewed_at"`
}
