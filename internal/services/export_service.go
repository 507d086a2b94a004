package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
)

type exportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ExportCourse produces an xlsx workbook with two sheets: the member roster
// and the note index. Only the owning teacher or an admin may export.
func (s *exportService) ExportCourse(ctx context.Context, courseID uuid.UUID, actorID uuid.UUID) ([]byte, string, error) {
	s.logger.Info("Exporting course", "course_id", courseID, "actor_id", actorID)

	actor, err := s.repo.User().GetByID(ctx, nil, actorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("failed to get actor: %w", err)
	}

	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrCourseNotFound
		}
		return nil, "", fmt.Errorf("failed to get course: %w", err)
	}

	if !actor.IsAdmin() && course.CreatedBy != actorID {
		return nil, "", NewPermissionError(actorID.String(), "course", "export", "not the course owner or an admin")
	}

	members, err := s.repo.Course().GetMembers(ctx, nil, courseID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get members: %w", err)
	}

	notes, _, err := s.repo.Note().ListByCourse(ctx, nil, courseID, repositories.NoteFilters{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list notes: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.writeMemberSheet(f, course, members); err != nil {
		return nil, "", err
	}
	if err := s.writeNoteSheet(f, notes); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("course_%s_%s.xlsx", course.ID, time.Now().UTC().Format("20060102"))

	s.logger.Info("Course exported", "course_id", courseID, "members", len(members), "notes", len(notes))

	return buf.Bytes(), filename, nil
}

func (s *exportService) writeMemberSheet(f *excelize.File, course *models.Course, members []*models.CourseMember) error {
	const sheet = "Members"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []string{"Chinese Name", "Pinyin Name", "Email", "School", "Major", "Member Role", "Joined At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, m := range members {
		user := m.User
		if user == nil {
			user = &models.User{}
		}
		values := []interface{}{
			user.ChineseName,
			fmt.Sprintf("%s %s", user.PinyinFirstName, user.PinyinFamilyName),
			user.Email,
			user.School,
			user.Major,
			string(m.Role),
			m.JoinedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write member row: %w", err)
			}
		}
	}

	return nil
}

func (s *exportService) writeNoteSheet(f *excelize.File, notes []*models.Note) error {
	const sheet = "Notes"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"Title", "Author", "Type", "Version", "Tags", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, n := range notes {
		authorName := ""
		if n.Author != nil {
			authorName = n.Author.ChineseName
		}
		values := []interface{}{
			n.Title,
			authorName,
			string(n.NoteType),
			n.VersionNumber,
			joinTags(n),
			n.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write note row: %w", err)
			}
		}
	}

	return nil
}

func joinTags(n *models.Note) string {
	out := ""
	for i, tag := range n.Tags {
		if i > 0 {
			out += ", "
		}
		out += tag
	}
	return out
}
