package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
)

var accessCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6,16}$`)

// Validator handles request and business rule validation
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all domain rules registered
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerBusinessRules()

	return v
}

// Validate validates struct tags for any request
func (v *Validator) Validate(s interface{}) ValidationErrors {
	err := v.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateCourseCreate validates course creation business rules
func (v *Validator) ValidateCourseCreate(req *CourseCreateRequest) ValidationErrors {
	errors := v.Validate(req)

	if req.SemesterStart != nil && req.SemesterEnd != nil && !req.SemesterEnd.After(*req.SemesterStart) {
		errors = append(errors, ValidationError{
			Field:   "semester_end",
			Message: "semester end must be after semester start",
			Value:   req.SemesterEnd,
			Rule:    "semester_range",
		})
	}

	return errors
}

// ValidateNoteCreate validates note creation business rules
func (v *Validator) ValidateNoteCreate(req *NoteCreateRequest) ValidationErrors {
	errors := v.Validate(req)

	// Parent linkage rules. A response builds on a parent; standard and
	// synthesis notes are roots and never carry one.
	if req.NoteType == models.NoteResponse && req.ParentNoteID == nil {
		errors = append(errors, ValidationError{
			Field:   "parent_note_id",
			Message: "response notes must reference a parent note",
			Rule:    "business_logic",
		})
	}
	if req.NoteType != models.NoteResponse && req.ParentNoteID != nil {
		errors = append(errors, ValidationError{
			Field:   "parent_note_id",
			Message: "only response notes may reference a parent note",
			Value:   req.ParentNoteID,
			Rule:    "business_logic",
		})
	}

	return errors
}

// registerBusinessRules registers custom domain rule validators
func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("access_code", func(fl validator.FieldLevel) bool {
		return accessCodePattern.MatchString(fl.Field().String())
	})

	v.validate.RegisterValidation("note_type", func(fl validator.FieldLevel) bool {
		switch models.NoteType(fl.Field().String()) {
		case models.NoteStandard, models.NoteResponse, models.NoteSynthesis:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("review_action", func(fl validator.FieldLevel) bool {
		switch models.ApplicationStatus(fl.Field().String()) {
		case models.ApplicationApproved, models.ApplicationRejected:
			return true
		}
		return false
	})

	// Admin accounts are provisioned out of band, never via registration.
	v.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		switch models.UserRole(fl.Field().String()) {
		case models.RoleStudent, models.RoleTeacher:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		switch models.Gender(fl.Field().String()) {
		case models.GenderMale, models.GenderFemale, models.GenderOther:
			return true
		}
		return false
	})
}
