package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NoteType string

const (
	NoteStandard  NoteType = "standard"
	NoteResponse  NoteType = "response"
	NoteSynthesis NoteType = "synthesis"
)

// Note is a single entry in a course's build-on graph. Content is an opaque
// rich-document payload: stored and returned as-is, never parsed here.
//
// Invariants:
//   - response notes always carry parent_note_id, root types never do
//   - parent_note_id, when set, references a note in the same course
//   - note_type and parent_note_id are immutable after creation
type Note struct {
	ID      uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title   string         `json:"title" gorm:"not null;size:255"`
	Content datatypes.JSON `json:"content" gorm:"type:jsonb;not null"`

	AuthorID uuid.UUID `json:"author_id" gorm:"type:uuid;not null;index"`
	CourseID uuid.UUID `json:"course_id" gorm:"type:uuid;not null;index"`

	NoteType     NoteType   `json:"note_type" gorm:"not null;default:standard;size:20"`
	ParentNoteID *uuid.UUID `json:"parent_note_id" gorm:"type:uuid;index"`

	Tags datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`

	VersionNumber int `json:"version_number" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}

func (Note) TableName() string {
	return "notes"
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// IsRoot reports whether the note can head a thread.
func (n *Note) IsRoot() bool {
	return n.ParentNoteID == nil
}
