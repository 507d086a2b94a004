package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/cache"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
)

type userRepository struct {
	db    *gorm.DB
	cache *cache.CacheHelper
}

func NewUserPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.UserRepository {
	return &userRepository{
		db:    db,
		cache: cache.NewCacheHelper(redisClient, cache.UserCacheConfig.Prefix),
	}
}

func (r *userRepository) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return handleDBError(err, "create user")
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	// Inside a transaction we need the row the transaction sees; tx-bound
	// repositories additionally carry no cache client at all.
	if tx == nil {
		var cached models.User
		if err := r.cache.Get(ctx, id.String(), &cached); err == nil {
			return &cached, nil
		}
	}

	db := r.getDB(tx)
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get user by id")
	}

	if tx == nil {
		_ = r.cache.Set(ctx, id.String(), &user, cache.UserCacheConfig.TTL)
	}

	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	db := r.getDB(tx)
	var user models.User
	if err := db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, handleDBError(err, "get user by email")
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check email existence")
	}
	return count > 0, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, tx *gorm.DB, id uuid.UUID, role models.UserRole) error {
	db := r.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("role", role)
	if result.Error != nil {
		return handleDBError(result.Error, "update user role")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update user role failed: %w", gorm.ErrRecordNotFound)
	}

	return nil
}

// InvalidateCache drops the cached user row after a committed role change.
// A stale role in cache would leak the old capability set.
func (r *userRepository) InvalidateCache(ctx context.Context, id uuid.UUID) {
	cache.SafeDelete(ctx, r.cache, id.String())
}

func (r *userRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
