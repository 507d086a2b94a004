package services

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP statuses by the handlers
var (
	// Identity
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")

	// Courses
	ErrCourseNotFound      = errors.New("course not found")
	ErrCourseInactive      = errors.New("course is not active")
	ErrCourseFull          = errors.New("course has reached its member limit")
	ErrDuplicateAccessCode = errors.New("access code already in use by an active course")
	ErrAccessCodeMismatch  = errors.New("access code does not match")
	ErrNotCourseMember     = errors.New("not a member of this course")

	// Notes
	ErrNoteNotFound      = errors.New("note not found")
	ErrParentNoteInvalid = errors.New("parent note does not belong to the same course")

	// Admission
	ErrApplicationNotFound = errors.New("teacher application not found")
	ErrAlreadyReviewed     = errors.New("application has already been reviewed")
)

// PermissionError carries the denied operation for logging and responses
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s on %s: %s", e.Action, e.Resource, e.Reason)
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}

// IsPermissionError reports whether err is a permission denial
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
