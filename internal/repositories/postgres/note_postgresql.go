package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
)

type noteRepository struct {
	db *gorm.DB
}

func NewNotePostgreSQL(db *gorm.DB) repositories.NoteRepository {
	return &noteRepository{db: db}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *noteRepository) Create(ctx context.Context, tx *gorm.DB, note *models.Note) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(note).Error; err != nil {
		return handleDBError(err, "create note")
	}
	return nil
}

func (r *noteRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Note, error) {
	db := r.getDB(tx)
	var note models.Note
	if err := db.WithContext(ctx).
		Preload("Author").
		First(&note, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get note by id")
	}
	return &note, nil
}

func (r *noteRepository) Update(ctx context.Context, tx *gorm.DB, note *models.Note) error {
	db := r.getDB(tx)
	// Column list is deliberate: note_type, parent_note_id, author and course
	// never change after creation.
	result := db.WithContext(ctx).
		Model(&models.Note{}).
		Where("id = ?", note.ID).
		Select("title", "content", "tags", "version_number", "updated_at").
		Updates(note)
	if result.Error != nil {
		return handleDBError(result.Error, "update note")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "update note")
	}
	return nil
}

func (r *noteRepository) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, filters repositories.NoteFilters) ([]*models.Note, int64, error) {
	db := r.getDB(tx)
	var notes []*models.Note
	var total int64

	query := db.WithContext(ctx).
		Model(&models.Note{}).
		Where("course_id = ?", courseID).
		Preload("Author")
	query = r.applyNoteFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count notes")
	}

	query = applyPaginationAndSorting(query, filters.Limit, filters.Offset, "created_at", "desc", map[string]string{
		"created_at": "created_at",
	})

	if err := query.Find(&notes).Error; err != nil {
		return nil, 0, handleDBError(err, "list notes by course")
	}

	return notes, total, nil
}

func (r *noteRepository) GetChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*models.Note, error) {
	db := r.getDB(tx)
	var notes []*models.Note
	if err := db.WithContext(ctx).
		Where("parent_note_id = ?", parentID).
		Preload("Author").
		Order("created_at ASC").
		Find(&notes).Error; err != nil {
		return nil, handleDBError(err, "get note children")
	}
	return notes, nil
}

// ===== HELPER METHODS =====

func (r *noteRepository) applyNoteFilters(query *gorm.DB, filters repositories.NoteFilters) *gorm.DB {
	if filters.AuthorID != nil {
		query = query.Where("author_id = ?", *filters.AuthorID)
	}
	if filters.NoteType != nil {
		query = query.Where("note_type = ?", *filters.NoteType)
	}
	if filters.Tag != nil {
		query = query.Where("tags @> ?::jsonb", `["`+*filters.Tag+`"]`)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (r *noteRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
