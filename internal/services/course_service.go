package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/events"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/policy"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

type courseService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewCourseService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) CourseService {
	return &courseService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
	}
}

// ===== CORE OPERATIONS =====

func (s *courseService) Create(ctx context.Context, req *CreateCourseRequest, actorID uuid.UUID) (*CourseResponse, error) {
	s.logger.Info("Creating course", "creator_id", actorID, "name", req.Name)

	if errs := s.validator.ValidateCourseCreate(req); len(errs) > 0 {
		return nil, errs
	}

	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.CreateCourse, policy.Request{Actor: actor}); err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:          req.Name,
		Description:   req.Description,
		AccessCode:    req.AccessCode,
		CreatedBy:     actorID,
		IsActive:      true,
		Status:        models.CourseActive,
		SemesterStart: req.SemesterStart,
		SemesterEnd:   req.SemesterEnd,
	}
	if req.MaxMembers != nil {
		course.MaxMembers = *req.MaxMembers
	}

	// The pre-check catches most duplicates early; two creators racing on
	// the same code under READ COMMITTED can both pass it, so the partial
	// unique index on active access codes is the actual guarantee.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		taken, err := txRepo.Course().ExistsActiveAccessCode(ctx, nil, req.AccessCode)
		if err != nil {
			return fmt.Errorf("failed to check access code: %w", err)
		}
		if taken {
			return ErrDuplicateAccessCode
		}
		if err := txRepo.Course().Create(ctx, nil, course); err != nil {
			if repositories.IsDuplicateError(err) {
				return ErrDuplicateAccessCode
			}
			return fmt.Errorf("failed to create course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventCourseCreated, map[string]interface{}{
		"course_id":  course.ID,
		"created_by": actorID,
	}))

	s.logger.Info("Course created", "course_id", course.ID)

	return &CourseResponse{Course: course, IsMember: false, CanEdit: true}, nil
}

func (s *courseService) GetByID(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*CourseResponse, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return s.buildCourseResponse(ctx, course, actorID)
}

// List scopes the result by role: students browse active courses plus the
// ones they joined, teachers see the courses they run, admins see all.
func (s *courseService) List(ctx context.Context, filters repositories.CourseFilters, actorID uuid.UUID) (*CourseListResponse, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleStudent:
		active := true
		filters.IsActive = &active
	case models.RoleTeacher:
		filters.CreatedBy = &actorID
	case models.RoleAdmin:
		// unrestricted
	}

	courses, total, err := s.repo.Course().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	responses := make([]*CourseResponse, 0, len(courses))
	for _, course := range courses {
		resp, err := s.buildCourseResponse(ctx, course, actorID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}

	return &CourseListResponse{
		Courses: responses,
		Total:   total,
		Page:    pageFromOffset(filters.Offset, filters.Limit),
		Size:    filters.Limit,
	}, nil
}

func (s *courseService) Join(ctx context.Context, courseID uuid.UUID, req *JoinCourseRequest, actorID uuid.UUID) (*JoinCourseResponse, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var resp *JoinCourseResponse
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		course, err := txRepo.Course().GetByID(ctx, nil, courseID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrCourseNotFound
			}
			return fmt.Errorf("failed to get course: %w", err)
		}

		// An inactive course is not joinable and not discoverable through
		// this path, so it answers exactly like a missing one.
		if !course.IsActive || course.Status != models.CourseActive {
			return ErrCourseNotFound
		}

		// Byte-for-byte comparison, no trimming or case folding.
		if req.AccessCode != course.AccessCode {
			return ErrAccessCodeMismatch
		}

		if err := policy.Authorize(policy.JoinCourse, policy.Request{
			Actor:        actor,
			Course:       course,
			SuppliedCode: req.AccessCode,
		}); err != nil {
			return err
		}

		if course.MaxMembers > 0 && course.MemberCount >= course.MaxMembers {
			return ErrCourseFull
		}

		member := &models.CourseMember{
			CourseID: courseID,
			UserID:   actorID,
			Role:     models.MemberRegular,
			JoinedAt: time.Now().UTC(),
		}
		created, err := txRepo.Course().AddMember(ctx, nil, member)
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}

		if created {
			course.MemberCount++
		}
		resp = &JoinCourseResponse{Course: course, AlreadyMember: !created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.AlreadyMember {
		s.repo.Course().InvalidateCache(ctx, courseID)
		s.publishEvent(ctx, events.NewEvent(events.EventCourseMemberJoined, events.CourseMemberJoinedEvent{
			CourseID:    courseID,
			UserID:      actorID,
			MemberCount: resp.Course.MemberCount,
			JoinedAt:    time.Now().UTC(),
		}))
	}

	return resp, nil
}

func (s *courseService) GetMembers(ctx context.Context, courseID uuid.UUID, actorID uuid.UUID) ([]*models.CourseMember, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	if !s.canViewRoster(ctx, actor, course) {
		return nil, NewPermissionError(actorID.String(), "course", "view_members", "not the course owner, a member, or an admin")
	}

	return s.repo.Course().GetMembers(ctx, nil, courseID)
}

// ===== HELPER METHODS =====

func (s *courseService) buildCourseResponse(ctx context.Context, course *models.Course, actorID uuid.UUID) (*CourseResponse, error) {
	isMember, err := s.repo.Course().IsMember(ctx, nil, course.ID, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	return &CourseResponse{
		Course:   course,
		IsMember: isMember,
		CanEdit:  course.CreatedBy == actorID,
	}, nil
}

func (s *courseService) canViewRoster(ctx context.Context, actor *models.User, course *models.Course) bool {
	if actor.IsAdmin() || course.CreatedBy == actor.ID {
		return true
	}
	isMember, err := s.repo.Course().IsMember(ctx, nil, course.ID, actor.ID)
	if err != nil {
		return false
	}
	return isMember
}

func (s *courseService) getActor(ctx context.Context, actorID uuid.UUID) (*models.User, error) {
	actor, err := s.repo.User().GetByID(ctx, nil, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return actor, nil
}

func (s *courseService) publishEvent(ctx context.Context, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func pageFromOffset(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}
