package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type CourseFilters struct {
	CreatedBy  *uuid.UUID           `json:"created_by"`
	IsActive   *bool                `json:"is_active"`
	Status     *models.CourseStatus `json:"status"`
	MemberID   *uuid.UUID           `json:"member_id"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
	SortBy     string               `json:"sort_by"`    // "created_at", "name"
	SortOrder  string               `json:"sort_order"` // "asc", "desc"
}

type NoteFilters struct {
	AuthorID *uuid.UUID       `json:"author_id"`
	NoteType *models.NoteType `json:"note_type"`
	Tag      *string          `json:"tag"`
	DateFrom *time.Time       `json:"date_from"`
	DateTo   *time.Time       `json:"date_to"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type ApplicationFilters struct {
	Status *models.ApplicationStatus `json:"status"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

type UserFilters struct {
	Query  string // Search query for name or email
	Limit  int
	Offset int
}

// ===== NOT FOUND DETECTION =====

// IsNotFoundError reports whether err stems from a missing row.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err stems from a unique constraint
// violation. Requires the gorm error translator to be enabled on the
// connection.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// ===== REPOSITORY INTERFACES =====

// UserRepository owns identity records. Role is mutated only by the
// admission workflow (teacher elevation).
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error)
	UpdateRole(ctx context.Context, tx *gorm.DB, id uuid.UUID, role models.UserRole) error

	// InvalidateCache drops the cached row for id. Called by services
	// after the mutating transaction commits.
	InvalidateCache(ctx context.Context, id uuid.UUID)
}

type CourseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, course *models.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Course, error)
	List(ctx context.Context, tx *gorm.DB, filters CourseFilters) ([]*models.Course, int64, error)

	// ExistsActiveAccessCode reports whether an active course already holds
	// the code.
	ExistsActiveAccessCode(ctx context.Context, tx *gorm.DB, code string) (bool, error)

	// AddMember inserts the membership and bumps member_count in one shot.
	// Returns false with no error when the membership already exists
	// (idempotent join).
	AddMember(ctx context.Context, tx *gorm.DB, member *models.CourseMember) (bool, error)
	IsMember(ctx context.Context, tx *gorm.DB, courseID, userID uuid.UUID) (bool, error)
	GetMembers(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*models.CourseMember, error)

	// IncrementNoteCount bumps the stored note counter; called in the same
	// transaction as the note insert.
	IncrementNoteCount(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error

	// InvalidateCache drops the cached row for id. Called by services
	// after the mutating transaction commits.
	InvalidateCache(ctx context.Context, id uuid.UUID)
}

type NoteRepository interface {
	Create(ctx context.Context, tx *gorm.DB, note *models.Note) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Note, error)
	Update(ctx context.Context, tx *gorm.DB, note *models.Note) error
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, filters NoteFilters) ([]*models.Note, int64, error)

	// GetChildren returns the direct build-on children of a note, ordered
	// by created_at ascending.
	GetChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*models.Note, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, app *models.TeacherApplication) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TeacherApplication, error)
	List(ctx context.Context, tx *gorm.DB, filters ApplicationFilters) ([]*models.TeacherApplication, int64, error)

	// MarkReviewed performs the guarded transition pending -> status.
	// Returns false when the application was not pending anymore, leaving
	// the row untouched; the caller maps that to a state error.
	MarkReviewed(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.ApplicationStatus, reviewerID uuid.UUID, comment *string, reviewedAt time.Time) (bool, error)
}
