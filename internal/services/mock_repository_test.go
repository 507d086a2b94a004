package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
)

// mockRepository is an in-memory Repository used across service tests.
// txMu serializes WithTransaction bodies; tableMu guards the maps so
// concurrent callers outside a transaction stay race-free.
type mockRepository struct {
	txMu    sync.Mutex
	tableMu sync.RWMutex

	inTx                bool
	invalidated         []string
	invalidatedDuringTx bool

	users        map[uuid.UUID]*models.User
	usersByEmail map[string]uuid.UUID
	courses      map[uuid.UUID]*models.Course
	members      map[string]*models.CourseMember
	notes        map[uuid.UUID]*models.Note
	applications map[uuid.UUID]*models.TeacherApplication

	userRepo   *mockUserRepo
	courseRepo *mockCourseRepo
	noteRepo   *mockNoteRepo
	appRepo    *mockApplicationRepo
}

func newMockRepository() *mockRepository {
	m := &mockRepository{
		users:        make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]uuid.UUID),
		courses:      make(map[uuid.UUID]*models.Course),
		members:      make(map[string]*models.CourseMember),
		notes:        make(map[uuid.UUID]*models.Note),
		applications: make(map[uuid.UUID]*models.TeacherApplication),
	}
	m.userRepo = &mockUserRepo{m}
	m.courseRepo = &mockCourseRepo{m}
	m.noteRepo = &mockNoteRepo{m}
	m.appRepo = &mockApplicationRepo{m}
	return m
}

func (m *mockRepository) User() repositories.UserRepository { return m.userRepo }
func (m *mockRepository) Course() repositories.CourseRepository { return m.courseRepo }
func (m *mockRepository) Note() repositories.NoteRepository { return m.noteRepo }
func (m *mockRepository) Application() repositories.ApplicationRepository { return m.appRepo }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.setInTx(true)
	defer m.setInTx(false)
	return fn(m)
}

func (m *mockRepository) setInTx(v bool) {
	m.tableMu.Lock()
	m.inTx = v
	m.tableMu.Unlock()
}

// recordInvalidation notes the cache-drop request and whether it arrived
// while a transaction was still open.
func (m *mockRepository) recordInvalidation(key string) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.invalidated = append(m.invalidated, key)
	if m.inTx {
		m.invalidatedDuringTx = true
	}
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error { return nil }

// seed helpers

func (m *mockRepository) seedUser(role models.UserRole) *models.User {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	user := &models.User{
		ID:          uuid.New(),
		Email:       fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		ChineseName: "测试用户",
		Gender:      models.GenderOther,
		Role:        role,
	}
	m.users[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return user
}

func (m *mockRepository) seedCourse(createdBy uuid.UUID, accessCode string) *models.Course {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	course := &models.Course{
		ID:         uuid.New(),
		Name:       "Knowledge Building 101",
		AccessCode: accessCode,
		CreatedBy:  createdBy,
		IsActive:   true,
		Status:     models.CourseActive,
		MaxMembers: 50,
	}
	m.courses[course.ID] = course
	return course
}

func (m *mockRepository) seedMember(courseID, userID uuid.UUID) *models.CourseMember {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	member := &models.CourseMember{
		ID:       uuid.New(),
		CourseID: courseID,
		UserID:   userID,
		Role:     models.MemberRegular,
		JoinedAt: time.Now().UTC(),
	}
	m.members[courseID.String()+"|"+userID.String()] = member
	if course, ok := m.courses[courseID]; ok {
		course.MemberCount++
	}
	return member
}

func (m *mockRepository) seedApplication(applicantID uuid.UUID) *models.TeacherApplication {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	app := &models.TeacherApplication{
		ID:          uuid.New(),
		ApplicantID: applicantID,
		Status:      models.ApplicationPending,
		AppliedAt:   time.Now().UTC(),
	}
	m.applications[app.ID] = app
	return app
}

// ===== USER REPO =====

type mockUserRepo struct{ m *mockRepository }

func (r *mockUserRepo) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	if _, exists := r.m.usersByEmail[user.Email]; exists {
		// Mirrors the unique index on users.email.
		return gorm.ErrDuplicatedKey
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.m.users[user.ID] = &copied
	r.m.usersByEmail[user.Email] = user.ID
	return nil
}

func (r *mockUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	user, ok := r.m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *mockUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	r.m.tableMu.RLock()
	id, ok := r.m.usersByEmail[email]
	r.m.tableMu.RUnlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, tx, id)
}

func (r *mockUserRepo) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	_, ok := r.m.usersByEmail[email]
	return ok, nil
}

func (r *mockUserRepo) UpdateRole(ctx context.Context, tx *gorm.DB, id uuid.UUID, role models.UserRole) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.Role = role
	return nil
}

func (r *mockUserRepo) InvalidateCache(ctx context.Context, id uuid.UUID) {
	r.m.recordInvalidation("user:" + id.String())
}

// ===== COURSE REPO =====

type mockCourseRepo struct{ m *mockRepository }

func (r *mockCourseRepo) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	for _, existing := range r.m.courses {
		// Mirrors the partial unique index on active access codes.
		if existing.IsActive && course.IsActive && existing.AccessCode == course.AccessCode {
			return gorm.ErrDuplicatedKey
		}
	}
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	r.m.courses[course.ID] = course
	return nil
}

func (r *mockCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Course, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	course, ok := r.m.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *course
	return &copied, nil
}

func (r *mockCourseRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	var out []*models.Course
	for _, course := range r.m.courses {
		if filters.CreatedBy != nil && course.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.IsActive != nil && course.IsActive != *filters.IsActive {
			continue
		}
		if filters.Status != nil && course.Status != *filters.Status {
			continue
		}
		if filters.MemberID != nil {
			if _, ok := r.m.members[course.ID.String()+"|"+filters.MemberID.String()]; !ok {
				continue
			}
		}
		copied := *course
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *mockCourseRepo) ExistsActiveAccessCode(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	for _, course := range r.m.courses {
		if course.IsActive && course.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockCourseRepo) AddMember(ctx context.Context, tx *gorm.DB, member *models.CourseMember) (bool, error) {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	key := member.CourseID.String() + "|" + member.UserID.String()
	if _, ok := r.m.members[key]; ok {
		return false, nil
	}
	course, ok := r.m.courses[member.CourseID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	r.m.members[key] = member
	course.MemberCount++
	return true, nil
}

func (r *mockCourseRepo) IsMember(ctx context.Context, tx *gorm.DB, courseID, userID uuid.UUID) (bool, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	_, ok := r.m.members[courseID.String()+"|"+userID.String()]
	return ok, nil
}

func (r *mockCourseRepo) GetMembers(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*models.CourseMember, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	var out []*models.CourseMember
	for _, member := range r.m.members {
		if member.CourseID == courseID {
			copied := *member
			if user, ok := r.m.users[member.UserID]; ok {
				u := *user
				copied.User = &u
			}
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *mockCourseRepo) IncrementNoteCount(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	course, ok := r.m.courses[courseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	course.NoteCount++
	return nil
}

func (r *mockCourseRepo) InvalidateCache(ctx context.Context, id uuid.UUID) {
	r.m.recordInvalidation("course:" + id.String())
}

// ===== NOTE REPO =====

type mockNoteRepo struct{ m *mockRepository }

func (r *mockNoteRepo) Create(ctx context.Context, tx *gorm.DB, note *models.Note) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	copied := *note
	r.m.notes[note.ID] = &copied
	return nil
}

func (r *mockNoteRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Note, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	note, ok := r.m.notes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *note
	return &copied, nil
}

func (r *mockNoteRepo) Update(ctx context.Context, tx *gorm.DB, note *models.Note) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	stored, ok := r.m.notes[note.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Title = note.Title
	stored.Content = note.Content
	stored.Tags = note.Tags
	stored.VersionNumber = note.VersionNumber
	return nil
}

func (r *mockNoteRepo) ListByCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, filters repositories.NoteFilters) ([]*models.Note, int64, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	var out []*models.Note
	for _, note := range r.m.notes {
		if note.CourseID != courseID {
			continue
		}
		if filters.AuthorID != nil && note.AuthorID != *filters.AuthorID {
			continue
		}
		if filters.NoteType != nil && note.NoteType != *filters.NoteType {
			continue
		}
		copied := *note
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *mockNoteRepo) GetChildren(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*models.Note, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	var out []*models.Note
	for _, note := range r.m.notes {
		if note.ParentNoteID != nil && *note.ParentNoteID == parentID {
			copied := *note
			out = append(out, &copied)
		}
	}
	// created_at ascending, matching the real repository
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// ===== APPLICATION REPO =====

type mockApplicationRepo struct{ m *mockRepository }

func (r *mockApplicationRepo) Create(ctx context.Context, tx *gorm.DB, app *models.TeacherApplication) error {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	copied := *app
	r.m.applications[app.ID] = &copied
	return nil
}

func (r *mockApplicationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TeacherApplication, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	app, ok := r.m.applications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *mockApplicationRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ApplicationFilters) ([]*models.TeacherApplication, int64, error) {
	r.m.tableMu.RLock()
	defer r.m.tableMu.RUnlock()
	var out []*models.TeacherApplication
	for _, app := range r.m.applications {
		if filters.Status != nil && app.Status != *filters.Status {
			continue
		}
		copied := *app
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *mockApplicationRepo) MarkReviewed(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.ApplicationStatus, reviewerID uuid.UUID, comment *string, reviewedAt time.Time) (bool, error) {
	r.m.tableMu.Lock()
	defer r.m.tableMu.Unlock()
	app, ok := r.m.applications[id]
	if !ok {
		return false, nil
	}
	if app.Status != models.ApplicationPending {
		return false, nil
	}
	app.Status = status
	app.ReviewedBy = &reviewerID
	app.ReviewComment = comment
	app.ReviewedAt = &reviewedAt
	return true, nil
}

// ===== RACE WRAPPERS =====

// blindExistsRepository answers "no" to the pre-insert existence checks
// while the store constraints stay in place. That is the interleaving two
// racing writers see under READ COMMITTED: both checks pass, one insert
// loses against the unique index.
type blindExistsRepository struct {
	*mockRepository
}

func (r *blindExistsRepository) User() repositories.UserRepository {
	return &blindExistsUserRepo{r.mockRepository.User()}
}

func (r *blindExistsRepository) Course() repositories.CourseRepository {
	return &blindExistsCourseRepo{r.mockRepository.Course()}
}

func (r *blindExistsRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.setInTx(true)
	defer r.setInTx(false)
	return fn(r)
}

type blindExistsUserRepo struct{ repositories.UserRepository }

func (r *blindExistsUserRepo) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	return false, nil
}

type blindExistsCourseRepo struct{ repositories.CourseRepository }

func (r *blindExistsCourseRepo) ExistsActiveAccessCode(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	return false, nil
}
