package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserRole string
type Role = UserRole // Alias for compatibility

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

type Gender string

const (
	GenderMale   Gender = "男"
	GenderFemale Gender = "女"
	GenderOther  Gender = "其他"
)

type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string    `json:"-" gorm:"not null;size:255"`

	// Profile info
	ChineseName      string  `json:"chinese_name" gorm:"not null;size:100;index"`
	PinyinFirstName  string  `json:"pinyin_first_name" gorm:"not null;size:100"`
	PinyinFamilyName string  `json:"pinyin_family_name" gorm:"not null;size:100"`
	Phone            string  `json:"phone" gorm:"not null;size:20"`
	Gender           Gender  `json:"gender" gorm:"not null;size:10"`
	School           string  `json:"school" gorm:"not null;size:255;index"`
	Major            string  `json:"major" gorm:"not null;size:255"`
	AvatarURL        *string `json:"avatar_url" gorm:"type:text"`

	Role UserRole `json:"role" gorm:"not null;default:student;size:20;index"`

	AdditionalInfo datatypes.JSONMap `json:"additional_info,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SetPassword hashes the plaintext password with bcrypt.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the plaintext password against the stored hash.
func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pwd))
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
