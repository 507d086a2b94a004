package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/events"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/policy"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

type noteService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewNoteService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) NoteService {
	return &noteService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
	}
}

// ===== CORE OPERATIONS =====

func (s *noteService) Create(ctx context.Context, req *CreateNoteRequest, actorID uuid.UUID) (*NoteResponse, error) {
	s.logger.Info("Creating note", "author_id", actorID, "course_id", req.CourseID, "note_type", req.NoteType)

	if errs := s.validator.ValidateNoteCreate(req); len(errs) > 0 {
		return nil, errs
	}

	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal note content: %w", err)
	}

	note := &models.Note{
		Title:         req.Title,
		Content:       datatypes.JSON(content),
		AuthorID:      actorID,
		CourseID:      req.CourseID,
		NoteType:      req.NoteType,
		ParentNoteID:  req.ParentNoteID,
		Tags:          datatypes.NewJSONSlice(req.Tags),
		VersionNumber: 1,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		course, err := txRepo.Course().GetByID(ctx, nil, req.CourseID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrCourseNotFound
			}
			return fmt.Errorf("failed to get course: %w", err)
		}
		if !course.IsActive {
			return ErrCourseInactive
		}

		isMember, err := s.actorCanPost(ctx, txRepo, actor, course)
		if err != nil {
			return err
		}
		if err := policy.Authorize(policy.CreateNote, policy.Request{
			Actor:    actor,
			Course:   course,
			IsMember: isMember,
		}); err != nil {
			return err
		}

		// Build-on links never cross course boundaries.
		if req.ParentNoteID != nil {
			parent, err := txRepo.Note().GetByID(ctx, nil, *req.ParentNoteID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrNoteNotFound
				}
				return fmt.Errorf("failed to get parent note: %w", err)
			}
			if parent.CourseID != req.CourseID {
				return ErrParentNoteInvalid
			}
		}

		if err := txRepo.Note().Create(ctx, nil, note); err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}
		if err := txRepo.Course().IncrementNoteCount(ctx, nil, req.CourseID); err != nil {
			return fmt.Errorf("failed to increment note count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// note_count changed; drop the cached course row now that the insert
	// is committed.
	s.repo.Course().InvalidateCache(ctx, req.CourseID)

	s.publishEvent(ctx, events.NewEvent(events.EventNoteCreated, events.NoteCreatedEvent{
		NoteID:       note.ID,
		CourseID:     note.CourseID,
		AuthorID:     actorID,
		NoteType:     string(note.NoteType),
		ParentNoteID: note.ParentNoteID,
	}))

	s.logger.Info("Note created", "note_id", note.ID)

	return &NoteResponse{Note: note, CanEdit: true}, nil
}

func (s *noteService) GetByID(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*NoteResponse, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	note, err := s.repo.Note().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	if err := s.checkReadAccess(ctx, actor, note.CourseID); err != nil {
		return nil, err
	}

	return &NoteResponse{Note: note, CanEdit: note.AuthorID == actorID}, nil
}

func (s *noteService) Update(ctx context.Context, id uuid.UUID, req *UpdateNoteRequest, actorID uuid.UUID) (*NoteResponse, error) {
	s.logger.Info("Updating note", "note_id", id, "actor_id", actorID)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var note *models.Note
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		note, err = txRepo.Note().GetByID(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrNoteNotFound
			}
			return fmt.Errorf("failed to get note: %w", err)
		}

		if err := policy.Authorize(policy.UpdateNote, policy.Request{
			Actor: actor,
			Note:  note,
		}); err != nil {
			return err
		}

		if req.Title != nil {
			note.Title = *req.Title
		}
		if req.Content != nil {
			content, err := json.Marshal(req.Content)
			if err != nil {
				return fmt.Errorf("failed to marshal note content: %w", err)
			}
			note.Content = datatypes.JSON(content)
		}
		if req.Tags != nil {
			note.Tags = datatypes.NewJSONSlice(req.Tags)
		}
		note.VersionNumber++

		if err := txRepo.Note().Update(ctx, nil, note); err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventNoteUpdated, map[string]interface{}{
		"note_id":        note.ID,
		"version_number": note.VersionNumber,
	}))

	return &NoteResponse{Note: note, CanEdit: true}, nil
}

func (s *noteService) ListByCourse(ctx context.Context, courseID uuid.UUID, filters repositories.NoteFilters, actorID uuid.UUID) (*NoteListResponse, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.checkReadAccess(ctx, actor, courseID); err != nil {
		return nil, err
	}

	notes, total, err := s.repo.Note().ListByCourse(ctx, nil, courseID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	responses := make([]*NoteResponse, 0, len(notes))
	for _, note := range notes {
		responses = append(responses, &NoteResponse{Note: note, CanEdit: note.AuthorID == actorID})
	}

	return &NoteListResponse{
		Notes: responses,
		Total: total,
		Page:  pageFromOffset(filters.Offset, filters.Limit),
		Size:  filters.Limit,
	}, nil
}

// GetThread walks the build-on tree below the note. Children come back
// oldest first at every level, so a thread reads in posting order.
func (s *noteService) GetThread(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*NoteThreadNode, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	note, err := s.repo.Note().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	if err := s.checkReadAccess(ctx, actor, note.CourseID); err != nil {
		return nil, err
	}

	return s.buildThread(ctx, note)
}

// ===== HELPER METHODS =====

func (s *noteService) buildThread(ctx context.Context, note *models.Note) (*NoteThreadNode, error) {
	node := &NoteThreadNode{Note: note, Children: []*NoteThreadNode{}}

	children, err := s.repo.Note().GetChildren(ctx, nil, note.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get note children: %w", err)
	}

	for _, child := range children {
		childNode, err := s.buildThread(ctx, child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}

	return node, nil
}

// actorCanPost reports course membership, treating the owning teacher as a
// member of their own course.
func (s *noteService) actorCanPost(ctx context.Context, txRepo repositories.Repository, actor *models.User, course *models.Course) (bool, error) {
	if course.CreatedBy == actor.ID {
		return true, nil
	}
	isMember, err := txRepo.Course().IsMember(ctx, nil, course.ID, actor.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return isMember, nil
}

func (s *noteService) checkReadAccess(ctx context.Context, actor *models.User, courseID uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}

	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("failed to get course: %w", err)
	}
	if course.CreatedBy == actor.ID {
		return nil
	}

	isMember, err := s.repo.Course().IsMember(ctx, nil, courseID, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return ErrNotCourseMember
	}
	return nil
}

func (s *noteService) getActor(ctx context.Context, actorID uuid.UUID) (*models.User, error) {
	actor, err := s.repo.User().GetByID(ctx, nil, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return actor, nil
}

func (s *noteService) publishEvent(ctx context.Context, event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}
