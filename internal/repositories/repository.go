package repositories

import "context"

// Repository aggregates all per-entity repositories.
type Repository interface {
	// User domain (owned here, unlike services that delegate identity)
	User() UserRepository

	// Course domain
	Course() CourseRepository

	// Note domain
	Note() NoteRepository

	// Admission domain
	Application() ApplicationRepository

	// Transaction support. The callback receives a Repository bound to the
	// transaction; every read and write inside is atomic with respect to
	// other callers.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
