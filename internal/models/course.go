package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseStatus string

const (
	CourseActive   CourseStatus = "active"
	CourseArchived CourseStatus = "archived"
)

type MemberRole string

const (
	MemberRegular   MemberRole = "member"
	MemberAssistant MemberRole = "assistant"
)

type Course struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:255"`
	Description *string   `json:"description" gorm:"type:text"`

	// Shared secret required to join. Unique among active courses; the
	// partial index enforces it at the store level, the service checks it
	// up front for a friendlier error.
	AccessCode string `json:"access_code" gorm:"not null;size:50;uniqueIndex:uq_courses_active_access_code,where:is_active"`

	CreatedBy uuid.UUID    `json:"created_by" gorm:"type:uuid;not null;index"`
	IsActive  bool         `json:"is_active" gorm:"not null;default:true"`
	Status    CourseStatus `json:"status" gorm:"not null;default:active;size:20"`

	SemesterStart *time.Time `json:"semester_start"`
	SemesterEnd   *time.Time `json:"semester_end"`
	MaxMembers    int        `json:"max_members" gorm:"not null;default:50"`

	// Stored counters, maintained in the same transaction as the row
	// changes they track.
	MemberCount int `json:"member_count" gorm:"not null;default:0"`
	NoteCount   int `json:"note_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Creator *User          `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Members []CourseMember `json:"members,omitempty" gorm:"foreignKey:CourseID"`
}

type CourseMember struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID uuid.UUID  `json:"course_id" gorm:"type:uuid;not null;uniqueIndex:uq_course_user"`
	UserID   uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:uq_course_user"`
	Role     MemberRole `json:"role" gorm:"not null;default:member;size:20"`
	JoinedAt time.Time  `json:"joined_at" gorm:"not null;index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Course) TableName() string {
	return "courses"
}

func (CourseMember) TableName() string {
	return "course_members"
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (m *CourseMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
