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

type admissionService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewAdmissionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) AdmissionService {
	return &admissionService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
	}
}

func (s *admissionService) List(ctx context.Context, filters repositories.ApplicationFilters, actorID uuid.UUID) (*ApplicationListResponse, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	apps, total, err := s.repo.Application().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	responses := make([]*ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		responses = append(responses, &ApplicationResponse{TeacherApplication: app})
	}

	return &ApplicationListResponse{
		Applications: responses,
		Total:        total,
		Page:         pageFromOffset(filters.Offset, filters.Limit),
		Size:         filters.Limit,
	}, nil
}

func (s *admissionService) GetByID(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*ApplicationResponse, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	app, err := s.repo.Application().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return &ApplicationResponse{TeacherApplication: app}, nil
}

// Review moves a pending application to approved or rejected. The guarded
// update means two admins reviewing concurrently cannot both win: the loser
// gets ErrAlreadyReviewed and the row keeps the first verdict. Approval
// elevates the applicant to the teacher role inside the same transaction.
func (s *admissionService) Review(ctx context.Context, id uuid.UUID, req *ReviewApplicationRequest, actorID uuid.UUID) (*ApplicationResponse, error) {
	s.logger.Info("Reviewing application", "application_id", id, "reviewer_id", actorID, "action", req.Action)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	reviewedAt := time.Now().UTC()

	var app *models.TeacherApplication
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		app, err = txRepo.Application().GetByID(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrApplicationNotFound
			}
			return fmt.Errorf("failed to get application: %w", err)
		}

		if err := policy.Authorize(policy.ReviewApplication, policy.Request{
			Actor:       actor,
			Application: app,
		}); err != nil {
			return err
		}

		won, err := txRepo.Application().MarkReviewed(ctx, nil, id, req.Action, actorID, req.Comment, reviewedAt)
		if err != nil {
			return fmt.Errorf("failed to mark application reviewed: %w", err)
		}
		if !won {
			return ErrAlreadyReviewed
		}

		if req.Action == models.ApplicationApproved {
			if err := txRepo.User().UpdateRole(ctx, nil, app.ApplicantID, models.RoleTeacher); err != nil {
				return fmt.Errorf("failed to elevate applicant role: %w", err)
			}
		}

		app.Status = req.Action
		app.ReviewedBy = &actorID
		app.ReviewComment = req.Comment
		app.ReviewedAt = &reviewedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Action == models.ApplicationApproved {
		// The elevated role is committed; a cached user row would keep
		// serving the student capability set.
		s.repo.User().InvalidateCache(ctx, app.ApplicantID)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventApplicationReviewed, events.ApplicationReviewedEvent{
		ApplicationID: id,
		ApplicantID:   app.ApplicantID,
		ReviewerID:    actorID,
		Status:        string(req.Action),
		ReviewedAt:    reviewedAt,
	}))

	s.logger.Info("Application reviewed", "application_id", id, "status", req.Action)

	return &ApplicationResponse{TeacherApplication: app}, nil
}

// ===== HELPER METHODS =====

func (s *admissionService) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return NewPermissionError(actorID.String(), "teacher_application", "read", "admin role required")
	}
	return nil
}

func (s *admissionService) getActor(ctx context.Context, actorID uuid.UUID) (*models.User, error) {
	actor, err := s.repo.User().GetByID(ctx, nil, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return actor, nil
}

func (s *admissionService) publishEvent(ctx context.Context, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}
