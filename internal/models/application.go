package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// TeacherApplication is created alongside a teacher-role registration and
// reviewed exactly once: pending -> approved | rejected, terminal after that.
type TeacherApplication struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ApplicantID uuid.UUID `json:"applicant_id" gorm:"type:uuid;not null;index"`

	ApplicationInfo datatypes.JSONMap `json:"application_info" gorm:"type:jsonb;not null"`

	Status ApplicationStatus `json:"status" gorm:"not null;default:pending;size:20;index"`

	ReviewedBy    *uuid.UUID `json:"reviewed_by" gorm:"type:uuid"`
	ReviewComment *string    `json:"review_comment" gorm:"type:text"`

	AppliedAt  time.Time  `json:"applied_at" gorm:"not null;index"`
	ReviewedAt *time.Time `json:"reviewed_at"`

	Applicant *User `json:"applicant,omitempty" gorm:"foreignKey:ApplicantID"`
	Reviewer  *User `json:"reviewer,omitempty" gorm:"foreignKey:ReviewedBy"`
}

func (TeacherApplication) TableName() string {
	return "teacher_applications"
}

func (a *TeacherApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *TeacherApplication) IsPending() bool {
	return a.Status == ApplicationPending
}
