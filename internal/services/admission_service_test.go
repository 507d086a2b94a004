package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/events"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/policy"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

func newAdmissionServiceForTest(t *testing.T) (AdmissionService, *mockRepository, *events.MockEventPublisher) {
	t.Helper()
	repo := newMockRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	svc := NewAdmissionService(repo, nil, logger, validator.New(), publisher)
	return svc, repo, publisher
}

func TestAdmissionService_Review(t *testing.T) {
	ctx := context.Background()

	t.Run("approval elevates applicant", func(t *testing.T) {
		svc, repo, publisher := newAdmissionServiceForTest(t)
		admin := repo.seedUser(models.RoleAdmin)
		applicant := repo.seedUser(models.RoleStudent)
		app := repo.seedApplication(applicant.ID)

		comment := "credentials check out"
		resp, err := svc.Review(ctx, app.ID, &ReviewApplicationRequest{
			Action:  models.ApplicationApproved,
			Comment: &comment,
		}, admin.ID)
		if err != nil {
			t.Fatalf("Review failed: %v", err)
		}
		if resp.Status != models.ApplicationApproved {
			t.Errorf("expected approved status, got %s", resp.Status)
		}
		if resp.ReviewedBy == nil || *resp.ReviewedBy != admin.ID {
			t.Error("expected reviewer to be recorded")
		}

		elevated, err := repo.User().GetByID(ctx, nil, applicant.ID)
		if err != nil {
			t.Fatalf("failed to reload applicant: %v", err)
		}
		if elevated.Role != models.RoleTeacher {
			t.Errorf("expected applicant elevated to teacher, got %s", elevated.Role)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventApplicationReviewed {
			t.Errorf("expected one %s event, got %d events", events.EventApplicationReviewed, len(published))
		}

		want := "user:" + applicant.ID.String()
		found := false
		for _, key := range repo.invalidated {
			if key == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected applicant cache invalidation for %s, got %v", want, repo.invalidated)
		}
		if repo.invalidatedDuringTx {
			t.Error("cache invalidation must wait for the transaction to finish")
		}
	})

	t.Run("rejection leaves role alone", func(t *testing.T) {
		svc, repo, _ := newAdmissionServiceForTest(t)
		admin := repo.seedUser(models.RoleAdmin)
		applicant := repo.seedUser(models.RoleStudent)
		app := repo.seedApplication(applicant.ID)

		resp, err := svc.Review(ctx, app.ID, &ReviewApplicationRequest{
			Action: models.ApplicationRejected,
		}, admin.ID)
		if err != nil {
			t.Fatalf("Review failed: %v", err)
		}
		if resp.Status != models.ApplicationRejected {
			t.Errorf("expected rejected status, got %s", resp.Status)
		}

		unchanged, err := repo.User().GetByID(ctx, nil, applicant.ID)
		if err != nil {
			t.Fatalf("failed to reload applicant: %v", err)
		}
		if unchanged.Role != models.RoleStudent {
			t.Errorf("rejection must not change role, got %s", unchanged.Role)
		}
	})

	t.Run("second review rejected", func(t *testing.T) {
		svc, repo, _ := newAdmissionServiceForTest(t)
		admin := repo.seedUser(models.RoleAdmin)
		applicant := repo.seedUser(models.RoleStudent)
		app := repo.seedApplication(applicant.ID)

		if _, err := svc.Review(ctx, app.ID, &ReviewApplicationRequest{
			Action: models.ApplicationApproved,
		}, admin.ID); err != nil {
			t.Fatalf("first review failed: %v", err)
		}

		_, err := svc.Review(ctx, app.ID, &ReviewApplicationRequest{
			Action: models.ApplicationRejected,
		}, admin.ID)

		var stateErr *policy.StateError
		if !errors.As(err, &stateErr) && !errors.Is(err, ErrAlreadyReviewed) {
			t.Fatalf("expected a terminal-state error, got %v", err)
		}

		// First verdict sticks.
		final, err := repo.Application().GetByID(ctx, nil, app.ID)
		if err != nil {
			t.Fatalf("failed to reload application: %v", err)
		}
		if final.Status != models.ApplicationApproved {
			t.Errorf("expected first verdict to stand, got %s", final.Status)
		}
	})

	t.Run("concurrent reviews have exactly one winner", func(t *testing.T) {
		svc, repo, _ := newAdmissionServiceForTest(t)
		adminA := repo.seedUser(models.RoleAdmin)
		adminB := repo.seedUser(models.RoleAdmin)
		applicant := repo.seedUser(models.RoleStudent)
		app := repo.seedApplication(applicant.ID)

		var wg sync.WaitGroup
		results := make([]error, 2)
		actions := []models.ApplicationStatus{models.ApplicationApproved, models.ApplicationRejected}
		reviewers := []*models.User{adminA, adminB}

		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = svc.Review(ctx, app.ID, &ReviewApplicationRequest{
					Action: actions[i],
				}, reviewers[i].ID)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range results {
			if err == nil {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winning review, got %d", winners)
		}
	})

	t.Run("non-admin denied", func(t *testing.T) {
		svc, repo, _ := newAdmissionServiceForTest(t)
		teacher := repo.seedUser(models.RoleTeacher)
		applicant := repo.seedUser(models.RoleStudent)
		app := repo.seedApplication(applicant.ID)

		_, err := svc.Review(ctx, app.ID, &ReviewApplicationRequest{
			Action: models.ApplicationApproved,
		}, teacher.ID)

		var denied *policy.DeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("expected DeniedError, got %v", err)
		}
	})

	t.Run("invalid action rejected", func(t *testing.T) {
		svc, repo, _ := newAdmissionServiceForTest(t)
		admin := repo.seedUser(models.RoleAdmin)
		applicant := repo.seedUser(models.RoleStudent)
		app := repo.seedApplication(applicant.ID)

		_, err := svc.Review(ctx, app.ID, &ReviewApplicationRequest{
			Action: models.ApplicationStatus("pending"),
		}, admin.ID)

		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("expected validation errors, got %v", err)
		}
	})
}

func TestAdmissionService_ListAndGet(t *testing.T) {
	ctx := context.Background()

	svc, repo, _ := newAdmissionServiceForTest(t)
	admin := repo.seedUser(models.RoleAdmin)
	student := repo.seedUser(models.RoleStudent)
	app := repo.seedApplication(repo.seedUser(models.RoleStudent).ID)
	repo.seedApplication(repo.seedUser(models.RoleStudent).ID)

	t.Run("admin lists applications", func(t *testing.T) {
		resp, err := svc.List(ctx, repositories.ApplicationFilters{}, admin.ID)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(resp.Applications) != 2 {
			t.Errorf("expected 2 applications, got %d", len(resp.Applications))
		}
	})

	t.Run("pending filter", func(t *testing.T) {
		pending := models.ApplicationPending
		resp, err := svc.List(ctx, repositories.ApplicationFilters{Status: &pending}, admin.ID)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(resp.Applications) != 2 {
			t.Errorf("expected 2 pending applications, got %d", len(resp.Applications))
		}
	})

	t.Run("non-admin cannot list", func(t *testing.T) {
		_, err := svc.List(ctx, repositories.ApplicationFilters{}, student.ID)
		if !IsPermissionError(err) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		resp, err := svc.GetByID(ctx, app.ID, admin.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if resp.ID != app.ID {
			t.Error("unexpected application returned")
		}
	})
}
