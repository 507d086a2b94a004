package validator

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
)

// RegisterRequest represents the request structure for account registration
type RegisterRequest struct {
	Email            string                 `json:"email" validate:"required,email,max=255"`
	Password         string                 `json:"password" validate:"required,min=8,max=128"`
	ChineseName      string                 `json:"chinese_name" validate:"required,max=100"`
	PinyinFirstName  string                 `json:"pinyin_first_name" validate:"required,max=100"`
	PinyinFamilyName string                 `json:"pinyin_family_name" validate:"required,max=100"`
	Phone            string                 `json:"phone" validate:"required,max=32"`
	Gender           models.Gender          `json:"gender" validate:"required,gender"`
	School           string                 `json:"school" validate:"required,max=255"`
	Major            string                 `json:"major" validate:"required,max=255"`
	Role             models.UserRole        `json:"role" validate:"required,user_role"`
	AvatarURL        *string                `json:"avatar_url" validate:"omitempty,url,max=512"`
	AdditionalInfo   map[string]interface{} `json:"additional_info"`
}

// LoginRequest represents the request structure for credential login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token to exchange for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CourseCreateRequest represents the request structure for creating courses
type CourseCreateRequest struct {
	Name          string     `json:"name" validate:"required,min=1,max=255"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	AccessCode    string     `json:"access_code" validate:"required,access_code"`
	SemesterStart *time.Time `json:"semester_start"`
	SemesterEnd   *time.Time `json:"semester_end"`
	MaxMembers    *int       `json:"max_members" validate:"omitempty,min=1,max=500"`
}

// CourseJoinRequest carries the code a student presents to enter a course
type CourseJoinRequest struct {
	AccessCode string `json:"access_code" validate:"required"`
}

// NoteCreateRequest represents the request structure for creating notes
type NoteCreateRequest struct {
	Title        string                 `json:"title" validate:"required,min=1,max=255"`
	Content      map[string]interface{} `json:"content" validate:"required"`
	CourseID     uuid.UUID              `json:"course_id" validate:"required"`
	NoteType     models.NoteType        `json:"note_type" validate:"required,note_type"`
	ParentNoteID *uuid.UUID             `json:"parent_note_id"`
	Tags         []string               `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// NoteUpdateRequest represents the request structure for updating notes.
// Type, parent, author and course are immutable after creation; the
// immutable fields are bound here only so a payload carrying them fails
// validation instead of being silently dropped.
type NoteUpdateRequest struct {
	Title   *string                `json:"title" validate:"omitempty,min=1,max=255"`
	Content map[string]interface{} `json:"content"`
	Tags    []string               `json:"tags" validate:"omitempty,max=10,dive,max=50"`

	NoteType     *models.NoteType `json:"note_type" validate:"isdefault"`
	ParentNoteID *uuid.UUID       `json:"parent_note_id" validate:"isdefault"`
	CourseID     *uuid.UUID       `json:"course_id" validate:"isdefault"`
}

// ApplicationReviewRequest represents the request structure for reviewing
// teacher applications
type ApplicationReviewRequest struct {
	Action  models.ApplicationStatus `json:"action" validate:"required,review_action"`
	Comment *string                  `json:"comment" validate:"omitempty,max=1000"`
}
