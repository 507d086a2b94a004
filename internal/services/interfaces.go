package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type RegisterRequest = validator.RegisterRequest
type LoginRequest = validator.LoginRequest
type RefreshRequest = validator.RefreshRequest
type CreateCourseRequest = validator.CourseCreateRequest
type JoinCourseRequest = validator.CourseJoinRequest
type CreateNoteRequest = validator.NoteCreateRequest
type UpdateNoteRequest = validator.NoteUpdateRequest
type ReviewApplicationRequest = validator.ApplicationReviewRequest

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

type AuthResponse struct {
	*TokenPair
	User *models.User `json:"user"`
}

type CourseResponse struct {
	*models.Course
	IsMember bool `json:"is_member"`
	CanEdit  bool `json:"can_edit"`
}

type CourseListResponse struct {
	Courses []*CourseResponse `json:"courses"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Size    int               `json:"size"`
}

type JoinCourseResponse struct {
	Course        *models.Course `json:"course"`
	AlreadyMember bool           `json:"already_member"`
}

type NoteResponse struct {
	*models.Note
	CanEdit bool `json:"can_edit"`
}

type NoteListResponse struct {
	Notes []*NoteResponse `json:"notes"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// NoteThreadNode is a note plus its build-on children, depth-first
type NoteThreadNode struct {
	*models.Note
	Children []*NoteThreadNode `json:"children"`
}

type ApplicationResponse struct {
	*models.TeacherApplication
}

type ApplicationListResponse struct {
	Applications []*ApplicationResponse `json:"applications"`
	Total        int64                  `json:"total"`
	Page         int                    `json:"page"`
	Size         int                    `json:"size"`
}

// ===== SERVICE INTERFACES =====

type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, req *RefreshRequest) (*TokenPair, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// VerifyAccessToken parses and validates a bearer token, returning the
	// authenticated user.
	VerifyAccessToken(ctx context.Context, token string) (*models.User, error)
}

type CourseService interface {
	Create(ctx context.Context, req *CreateCourseRequest, actorID uuid.UUID) (*CourseResponse, error)
	GetByID(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*CourseResponse, error)
	List(ctx context.Context, filters repositories.CourseFilters, actorID uuid.UUID) (*CourseListResponse, error)

	// Join is idempotent: joining a course twice returns AlreadyMember
	// without touching the member count.
	Join(ctx context.Context, courseID uuid.UUID, req *JoinCourseRequest, actorID uuid.UUID) (*JoinCourseResponse, error)

	GetMembers(ctx context.Context, courseID uuid.UUID, actorID uuid.UUID) ([]*models.CourseMember, error)
}

type NoteService interface {
	Create(ctx context.Context, req *CreateNoteRequest, actorID uuid.UUID) (*NoteResponse, error)
	GetByID(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*NoteResponse, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateNoteRequest, actorID uuid.UUID) (*NoteResponse, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID, filters repositories.NoteFilters, actorID uuid.UUID) (*NoteListResponse, error)

	// GetThread returns the note and its full build-on subtree, children
	// ordered oldest first at every level.
	GetThread(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*NoteThreadNode, error)
}

type AdmissionService interface {
	List(ctx context.Context, filters repositories.ApplicationFilters, actorID uuid.UUID) (*ApplicationListResponse, error)
	GetByID(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*ApplicationResponse, error)

	// Review performs the pending -> approved/rejected transition.
	// Approval elevates the applicant to the teacher role in the same
	// transaction.
	Review(ctx context.Context, id uuid.UUID, req *ReviewApplicationRequest, actorID uuid.UUID) (*ApplicationResponse, error)
}

type ExportService interface {
	// ExportCourse builds an xlsx workbook with the course roster and
	// note index. Returns the serialized file.
	ExportCourse(ctx context.Context, courseID uuid.UUID, actorID uuid.UUID) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Auth() AuthService
	Course() CourseService
	Note() NoteService
	Admission() AdmissionService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
