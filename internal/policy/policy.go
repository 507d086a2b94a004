package policy

import (
	"fmt"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
)

// Operation names one guarded mutation. The set is closed: an operation
// absent from the capability table is denied for every role.
type Operation string

const (
	CreateCourse      Operation = "create_course"
	JoinCourse        Operation = "join_course"
	CreateNote        Operation = "create_note"
	UpdateNote        Operation = "update_note"
	ReviewApplication Operation = "review_application"
)

// Request carries the actor and whatever target context the operation's
// condition needs. Callers fill only the fields relevant to the operation.
type Request struct {
	Actor *models.User

	Course      *models.Course
	Note        *models.Note
	Application *models.TeacherApplication

	// join_course: the code supplied by the caller, compared byte-for-byte.
	SuppliedCode string

	// create_note: whether the actor is a member of the target course.
	IsMember bool
}

// DeniedError reports a capability check failure.
type DeniedError struct {
	Op     Operation
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("operation %s denied: %s", e.Op, e.Reason)
}

// StateError reports an operation attempted against a target in a terminal
// state (e.g. re-reviewing an already reviewed application).
type StateError struct {
	Op     Operation
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("operation %s rejected: %s", e.Op, e.Reason)
}

type capability struct {
	roles     []models.UserRole
	condition func(Request) error
}

// The capability table. Role membership is checked first, then the
// operation's extra condition. Mutating components consult this table before
// every write; the table itself never mutates state.
var capabilities = map[Operation]capability{
	CreateCourse: {
		roles: []models.UserRole{models.RoleTeacher},
	},
	JoinCourse: {
		roles: []models.UserRole{models.RoleStudent},
		condition: func(req Request) error {
			if req.Course == nil {
				return &DeniedError{Op: JoinCourse, Reason: "no target course"}
			}
			if req.SuppliedCode != req.Course.AccessCode {
				return &DeniedError{Op: JoinCourse, Reason: "access code mismatch"}
			}
			return nil
		},
	},
	CreateNote: {
		roles: []models.UserRole{models.RoleStudent, models.RoleTeacher},
		condition: func(req Request) error {
			if !req.IsMember {
				return &DeniedError{Op: CreateNote, Reason: "actor is not a member of the course"}
			}
			return nil
		},
	},
	UpdateNote: {
		roles: []models.UserRole{models.RoleStudent, models.RoleTeacher, models.RoleAdmin},
		condition: func(req Request) error {
			if req.Note == nil {
				return &DeniedError{Op: UpdateNote, Reason: "no target note"}
			}
			if req.Note.AuthorID != req.Actor.ID {
				return &DeniedError{Op: UpdateNote, Reason: "actor is not the author"}
			}
			return nil
		},
	},
	ReviewApplication: {
		roles: []models.UserRole{models.RoleAdmin},
		condition: func(req Request) error {
			if req.Application == nil {
				return &DeniedError{Op: ReviewApplication, Reason: "no target application"}
			}
			if !req.Application.IsPending() {
				return &StateError{Op: ReviewApplication, Reason: "application already reviewed"}
			}
			return nil
		},
	},
}

// Authorize checks the capability table for (actor role, operation). Unknown
// operations fail closed.
func Authorize(op Operation, req Request) error {
	if req.Actor == nil {
		return &DeniedError{Op: op, Reason: "no actor"}
	}

	cap, ok := capabilities[op]
	if !ok {
		return &DeniedError{Op: op, Reason: "unknown operation"}
	}

	allowed := false
	for _, role := range cap.roles {
		if req.Actor.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return &DeniedError{Op: op, Reason: fmt.Sprintf("role %s lacks capability", req.Actor.Role)}
	}

	if cap.condition != nil {
		return cap.condition(req)
	}
	return nil
}
