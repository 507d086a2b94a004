package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/events"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/policy"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCourseServiceForTest(t *testing.T) (CourseService, *mockRepository, *events.MockEventPublisher) {
	t.Helper()
	repo := newMockRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	svc := NewCourseService(repo, nil, logger, validator.New(), publisher)
	return svc, repo, publisher
}

func TestCourseService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher creates course", func(t *testing.T) {
		svc, repo, publisher := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)

		resp, err := svc.Create(ctx, &CreateCourseRequest{
			Name:       "Knowledge Building 101",
			AccessCode: "KB2026FALL",
		}, teacher.ID)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !resp.CanEdit {
			t.Error("expected creator to have edit rights")
		}
		if resp.Course.Status != models.CourseActive || !resp.Course.IsActive {
			t.Error("expected new course to be active")
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventCourseCreated {
			t.Errorf("expected one %s event, got %d events", events.EventCourseCreated, len(published))
		}
	})

	t.Run("student cannot create", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		student := repo.seedUser(models.RoleStudent)

		_, err := svc.Create(ctx, &CreateCourseRequest{
			Name:       "Sneaky Course",
			AccessCode: "NOPE1234",
		}, student.ID)

		var denied *policy.DeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("expected DeniedError, got %v", err)
		}
	})

	t.Run("duplicate active access code rejected", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		repo.seedCourse(teacher.ID, "SHARED99")

		_, err := svc.Create(ctx, &CreateCourseRequest{
			Name:       "Second Course",
			AccessCode: "SHARED99",
		}, teacher.ID)
		if !errors.Is(err, ErrDuplicateAccessCode) {
			t.Fatalf("expected ErrDuplicateAccessCode, got %v", err)
		}
	})

	t.Run("racing creators collapse to one winner", func(t *testing.T) {
		// The loser's pre-check ran before the winner committed; the
		// store-level uniqueness constraint reports the duplicate and the
		// service maps it to the same error as the pre-check.
		repo := newMockRepository()
		logger := testLogger()
		publisher := events.NewMockEventPublisher(logger)
		svc := NewCourseService(&blindExistsRepository{mockRepository: repo}, nil, logger, validator.New(), publisher)

		teacher := repo.seedUser(models.RoleTeacher)
		repo.seedCourse(teacher.ID, "SHARED99")

		_, err := svc.Create(ctx, &CreateCourseRequest{
			Name:       "Second Course",
			AccessCode: "SHARED99",
		}, teacher.ID)
		if !errors.Is(err, ErrDuplicateAccessCode) {
			t.Fatalf("expected ErrDuplicateAccessCode, got %v", err)
		}
		if len(publisher.GetPublishedEvents()) != 0 {
			t.Error("losing creator must not publish a created event")
		}
	})

	t.Run("invalid access code format rejected", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)

		_, err := svc.Create(ctx, &CreateCourseRequest{
			Name:       "Bad Code Course",
			AccessCode: "ab!", // too short and not alphanumeric
		}, teacher.ID)

		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected validation errors, got %v", err)
		}
	})
}

func TestCourseService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("student joins with correct code", func(t *testing.T) {
		svc, repo, publisher := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		student := repo.seedUser(models.RoleStudent)
		course := repo.seedCourse(teacher.ID, "ABC12345")

		resp, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, student.ID)
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		if resp.AlreadyMember {
			t.Error("first join should not report AlreadyMember")
		}
		if resp.Course.MemberCount != 1 {
			t.Errorf("expected member count 1, got %d", resp.Course.MemberCount)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventCourseMemberJoined {
			t.Errorf("expected one %s event, got %d events", events.EventCourseMemberJoined, len(published))
		}
	})

	t.Run("double join is idempotent", func(t *testing.T) {
		svc, repo, publisher := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		student := repo.seedUser(models.RoleStudent)
		course := repo.seedCourse(teacher.ID, "ABC12345")

		if _, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, student.ID); err != nil {
			t.Fatalf("first join failed: %v", err)
		}
		resp, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, student.ID)
		if err != nil {
			t.Fatalf("second join failed: %v", err)
		}
		if !resp.AlreadyMember {
			t.Error("second join should report AlreadyMember")
		}
		if resp.Course.MemberCount != 1 {
			t.Errorf("member count must stay 1 after double join, got %d", resp.Course.MemberCount)
		}

		if got := len(publisher.GetPublishedEvents()); got != 1 {
			t.Errorf("expected exactly one join event, got %d", got)
		}
	})

	t.Run("wrong access code rejected case sensitively", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		student := repo.seedUser(models.RoleStudent)
		course := repo.seedCourse(teacher.ID, "ABC12345")

		_, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "abc12345"}, student.ID)
		if !errors.Is(err, ErrAccessCodeMismatch) {
			t.Fatalf("expected ErrAccessCodeMismatch, got %v", err)
		}
	})

	t.Run("teacher cannot join as member", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		owner := repo.seedUser(models.RoleTeacher)
		other := repo.seedUser(models.RoleTeacher)
		course := repo.seedCourse(owner.ID, "ABC12345")

		_, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, other.ID)
		var denied *policy.DeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("expected DeniedError, got %v", err)
		}
	})

	t.Run("join drops the cached course only after the transaction", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		student := repo.seedUser(models.RoleStudent)
		course := repo.seedCourse(teacher.ID, "ABC12345")

		if _, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, student.ID); err != nil {
			t.Fatalf("Join failed: %v", err)
		}

		want := "course:" + course.ID.String()
		found := false
		for _, key := range repo.invalidated {
			if key == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected course cache invalidation for %s, got %v", want, repo.invalidated)
		}
		if repo.invalidatedDuringTx {
			t.Error("cache invalidation must wait for the transaction to finish")
		}
	})

	t.Run("archived course answers like an unknown one", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		student := repo.seedUser(models.RoleStudent)
		course := repo.seedCourse(teacher.ID, "ABC12345")
		course.IsActive = false
		course.Status = models.CourseArchived

		_, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, student.ID)
		if !errors.Is(err, ErrCourseNotFound) {
			t.Fatalf("expected ErrCourseNotFound, got %v", err)
		}
	})

	t.Run("full course rejects joins", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		course := repo.seedCourse(teacher.ID, "ABC12345")
		course.MaxMembers = 1

		first := repo.seedUser(models.RoleStudent)
		if _, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, first.ID); err != nil {
			t.Fatalf("first join failed: %v", err)
		}

		second := repo.seedUser(models.RoleStudent)
		_, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ABC12345"}, second.ID)
		if !errors.Is(err, ErrCourseFull) {
			t.Fatalf("expected ErrCourseFull, got %v", err)
		}
	})

	t.Run("unknown course", func(t *testing.T) {
		svc, repo, _ := newCourseServiceForTest(t)
		student := repo.seedUser(models.RoleStudent)
		ghost := repo.seedCourse(student.ID, "GONE1234")
		repo.tableMu.Lock()
		delete(repo.courses, ghost.ID)
		repo.tableMu.Unlock()

		_, err := svc.Join(ctx, ghost.ID, &JoinCourseRequest{AccessCode: "GONE1234"}, student.ID)
		if !errors.Is(err, ErrCourseNotFound) {
			t.Fatalf("expected ErrCourseNotFound, got %v", err)
		}
	})
}

func TestCourseService_List(t *testing.T) {
	ctx := context.Background()

	svc, repo, _ := newCourseServiceForTest(t)
	teacherA := repo.seedUser(models.RoleTeacher)
	teacherB := repo.seedUser(models.RoleTeacher)
	student := repo.seedUser(models.RoleStudent)
	admin := repo.seedUser(models.RoleAdmin)

	repo.seedCourse(teacherA.ID, "CODEAAA1")
	repo.seedCourse(teacherB.ID, "CODEBBB1")
	archived := repo.seedCourse(teacherB.ID, "CODECCC1")
	archived.IsActive = false
	archived.Status = models.CourseArchived

	t.Run("teacher sees own courses only", func(t *testing.T) {
		resp, err := svc.List(ctx, repositories.CourseFilters{}, teacherA.ID)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(resp.Courses) != 1 {
			t.Errorf("expected 1 course for teacherA, got %d", len(resp.Courses))
		}
	})

	t.Run("student sees active courses only", func(t *testing.T) {
		resp, err := svc.List(ctx, repositories.CourseFilters{}, student.ID)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(resp.Courses) != 2 {
			t.Errorf("expected 2 active courses for student, got %d", len(resp.Courses))
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		resp, err := svc.List(ctx, repositories.CourseFilters{}, admin.ID)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(resp.Courses) != 3 {
			t.Errorf("expected 3 courses for admin, got %d", len(resp.Courses))
		}
	})
}

func TestCourseService_GetMembers(t *testing.T) {
	ctx := context.Background()

	svc, repo, _ := newCourseServiceForTest(t)
	teacher := repo.seedUser(models.RoleTeacher)
	member := repo.seedUser(models.RoleStudent)
	outsider := repo.seedUser(models.RoleStudent)
	course := repo.seedCourse(teacher.ID, "ROSTER99")

	if _, err := svc.Join(ctx, course.ID, &JoinCourseRequest{AccessCode: "ROSTER99"}, member.ID); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	t.Run("owner views roster", func(t *testing.T) {
		members, err := svc.GetMembers(ctx, course.ID, teacher.ID)
		if err != nil {
			t.Fatalf("GetMembers failed: %v", err)
		}
		if len(members) != 1 {
			t.Errorf("expected 1 member, got %d", len(members))
		}
	})

	t.Run("member views roster", func(t *testing.T) {
		if _, err := svc.GetMembers(ctx, course.ID, member.ID); err != nil {
			t.Fatalf("GetMembers failed for member: %v", err)
		}
	})

	t.Run("outsider denied", func(t *testing.T) {
		_, err := svc.GetMembers(ctx, course.ID, outsider.ID)
		if !IsPermissionError(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})
}
