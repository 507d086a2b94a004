package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
)

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationPostgreSQL(db *gorm.DB) repositories.ApplicationRepository {
	return &applicationRepository{db: db}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *applicationRepository) Create(ctx context.Context, tx *gorm.DB, app *models.TeacherApplication) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(app).Error; err != nil {
		return handleDBError(err, "create teacher application")
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TeacherApplication, error) {
	db := r.getDB(tx)
	var app models.TeacherApplication
	if err := db.WithContext(ctx).
		Preload("Applicant").
		Preload("Reviewer").
		First(&app, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get teacher application by id")
	}
	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.ApplicationFilters) ([]*models.TeacherApplication, int64, error) {
	db := r.getDB(tx)
	var apps []*models.TeacherApplication
	var total int64

	query := db.WithContext(ctx).
		Model(&models.TeacherApplication{}).
		Preload("Applicant").
		Preload("Reviewer")
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count teacher applications")
	}

	query = applyPaginationAndSorting(query, filters.Limit, filters.Offset, "applied_at", "asc", map[string]string{
		"applied_at": "applied_at",
	})

	if err := query.Find(&apps).Error; err != nil {
		return nil, 0, handleDBError(err, "list teacher applications")
	}

	return apps, total, nil
}

// MarkReviewed flips the row to its terminal status only while it is still
// pending. Concurrent reviewers race on the same guarded UPDATE; exactly one
// sees RowsAffected == 1, every other caller gets false back.
func (r *applicationRepository) MarkReviewed(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.ApplicationStatus, reviewerID uuid.UUID, comment *string, reviewedAt time.Time) (bool, error) {
	db := r.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.TeacherApplication{}).
		Where("id = ? AND status = ?", id, models.ApplicationPending).
		Updates(map[string]interface{}{
			"status":         status,
			"reviewed_by":    reviewerID,
			"review_comment": comment,
			"reviewed_at":    reviewedAt,
		})
	if result.Error != nil {
		return false, handleDBError(result.Error, "mark application reviewed")
	}

	return result.RowsAffected == 1, nil
}

func (r *applicationRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
