package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

func TestExportService_ExportCourse(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepository()
	logger := testLogger()
	svc := NewExportService(repo, nil, logger)

	teacher := repo.seedUser(models.RoleTeacher)
	student := repo.seedUser(models.RoleStudent)
	admin := repo.seedUser(models.RoleAdmin)
	course := repo.seedCourse(teacher.ID, "EXPORT01")
	repo.seedMember(course.ID, student.ID)

	noteSvc := NewNoteService(repo, nil, logger, validator.New(), nil)
	if _, err := noteSvc.Create(ctx, &CreateNoteRequest{
		Title:    "Exported note",
		Content:  noteContent("body"),
		CourseID: course.ID,
		NoteType: models.NoteStandard,
		Tags:     []string{"science", "week1"},
	}, student.ID); err != nil {
		t.Fatalf("note create failed: %v", err)
	}

	t.Run("owner exports workbook", func(t *testing.T) {
		data, filename, err := svc.ExportCourse(ctx, course.ID, teacher.ID)
		if err != nil {
			t.Fatalf("ExportCourse failed: %v", err)
		}
		if !strings.HasPrefix(filename, "course_") || !strings.HasSuffix(filename, ".xlsx") {
			t.Errorf("unexpected filename %q", filename)
		}

		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("workbook does not open: %v", err)
		}
		defer f.Close()

		memberRows, err := f.GetRows("Members")
		if err != nil {
			t.Fatalf("missing Members sheet: %v", err)
		}
		// header plus one member
		if len(memberRows) != 2 {
			t.Errorf("expected 2 member rows, got %d", len(memberRows))
		}

		noteRows, err := f.GetRows("Notes")
		if err != nil {
			t.Fatalf("missing Notes sheet: %v", err)
		}
		if len(noteRows) != 2 {
			t.Errorf("expected 2 note rows, got %d", len(noteRows))
		}
		if noteRows[1][0] != "Exported note" {
			t.Errorf("unexpected note title %q", noteRows[1][0])
		}
	})

	t.Run("admin may export", func(t *testing.T) {
		if _, _, err := svc.ExportCourse(ctx, course.ID, admin.ID); err != nil {
			t.Fatalf("admin export failed: %v", err)
		}
	})

	t.Run("member may not export", func(t *testing.T) {
		_, _, err := svc.ExportCourse(ctx, course.ID, student.ID)
		if !IsPermissionError(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})

	t.Run("other teacher may not export", func(t *testing.T) {
		other := repo.seedUser(models.RoleTeacher)
		_, _, err := svc.ExportCourse(ctx, course.ID, other.ID)
		if !IsPermissionError(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})
}
