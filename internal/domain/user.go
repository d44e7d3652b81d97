package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FirstName    string    `gorm:"type:varchar(150)" json:"first_name"`
	LastName     string    `gorm:"type:varchar(150)" json:"last_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsStaff      bool      `gorm:"not null;default:false" json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName is the full name, or the email when no name is set.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Email
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID  int64
	IsStaff bool
}

// CanSee reports whether the actor may read a row owned by ownerID.
func (a Actor) CanSee(ownerID int64) bool {
	return a.IsStaff || a.UserID == ownerID
}
