package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/cache"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
)

type courseRepository struct {
	db    *gorm.DB
	cache *cache.CacheHelper
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &courseRepository{
		db:    db,
		cache: cache.NewCacheHelper(redisClient, cache.CourseCacheConfig.Prefix),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *courseRepository) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(course).Error; err != nil {
		return handleDBError(err, "create course")
	}
	return nil
}

func (r *courseRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Course, error) {
	if tx == nil {
		var cached models.Course
		if err := r.cache.Get(ctx, id.String(), &cached); err == nil {
			return &cached, nil
		}
	}

	db := r.getDB(tx)
	var course models.Course
	if err := db.WithContext(ctx).
		Preload("Creator").
		First(&course, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get course by id")
	}

	if tx == nil {
		_ = r.cache.Set(ctx, id.String(), &course, cache.CourseCacheConfig.TTL)
	}

	return &course, nil
}

func (r *courseRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	db := r.getDB(tx)
	var courses []*models.Course
	var total int64

	query := db.WithContext(ctx).Model(&models.Course{}).Preload("Creator")
	query = r.applyCourseFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count courses")
	}

	query = applyPaginationAndSorting(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder, map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"name":       "name",
	})

	if err := query.Find(&courses).Error; err != nil {
		return nil, 0, handleDBError(err, "list courses")
	}

	return courses, total, nil
}

func (r *courseRepository) ExistsActiveAccessCode(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Course{}).
		Where("access_code = ? AND is_active = ?", code, true).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check access code uniqueness")
	}
	return count > 0, nil
}

// ===== MEMBERSHIP OPERATIONS =====

// AddMember inserts the membership row and, when the insert actually landed,
// bumps member_count in the same statement sequence. The unique
// (course_id, user_id) index plus ON CONFLICT DO NOTHING makes concurrent
// joins collapse to a single row; the count only moves with the insert, so
// the two can never drift apart.
func (r *courseRepository) AddMember(ctx context.Context, tx *gorm.DB, member *models.CourseMember) (bool, error) {
	db := r.getDB(tx)

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member)
	if result.Error != nil {
		return false, handleDBError(result.Error, "add course member")
	}

	if result.RowsAffected == 0 {
		// Already a member; idempotent no-op.
		return false, nil
	}

	if err := db.WithContext(ctx).
		Model(&models.Course{}).
		Where("id = ?", member.CourseID).
		Update("member_count", gorm.Expr("member_count + 1")).Error; err != nil {
		return false, handleDBError(err, "increment member count")
	}

	return true, nil
}

func (r *courseRepository) IsMember(ctx context.Context, tx *gorm.DB, courseID, userID uuid.UUID) (bool, error) {
	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.CourseMember{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check course membership")
	}
	return count > 0, nil
}

func (r *courseRepository) GetMembers(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*models.CourseMember, error) {
	db := r.getDB(tx)
	var members []*models.CourseMember
	if err := db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Preload("User").
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, handleDBError(err, "get course members")
	}
	return members, nil
}

func (r *courseRepository) IncrementNoteCount(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Course{}).
		Where("id = ?", courseID).
		Update("note_count", gorm.Expr("note_count + 1")).Error; err != nil {
		return handleDBError(err, "increment note count")
	}

	return nil
}

// InvalidateCache drops the cached course row. Callers invoke it after
// their transaction commits; deleting earlier lets a concurrent reader
// repopulate the key with the pre-commit row for a full TTL.
func (r *courseRepository) InvalidateCache(ctx context.Context, id uuid.UUID) {
	cache.SafeDelete(ctx, r.cache, id.String())
}

// ===== HELPER METHODS =====

func (r *courseRepository) applyCourseFilters(query *gorm.DB, filters repositories.CourseFilters) *gorm.DB {
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.MemberID != nil {
		query = query.Where(
			"id IN (?)",
			r.db.Model(&models.CourseMember{}).Select("course_id").Where("user_id = ?", *filters.MemberID),
		)
	}
	return query
}

func (r *courseRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
