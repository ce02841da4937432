// internal/models/user.go
package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username     string       `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string       `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string       `json:"-" gorm:"size:255;not null"`
	FirstName    string       `json:"first_name" gorm:"size:100"`
	LastName     string       `json:"last_name" gorm:"size:100"`
	UserType     UserType     `json:"user_type" gorm:"type:varchar(20);not null;default:'user'"`
	Status       UserStatus   `json:"status" gorm:"type:varchar(20);default:'active'"`
	IsArtist     bool         `json:"is_artist" gorm:"default:false"`
	ArtistStatus ArtistStatus `json:"artist_status" gorm:"type:varchar(20);default:''"`
	ProfileData  JSONB        `json:"profile_data" gorm:"type:jsonb"`
	LastLoginAt  *time.Time   `json:"last_login_at"`

	ResetTokenHash      string     `json:"-" gorm:"size:64;index"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	// Relationships
	Tracks               []Track               `json:"tracks,omitempty" gorm:"foreignKey:UploaderID"`
	DistributionRequests []DistributionRequest `json:"distribution_requests,omitempty" gorm:"foreignKey:ArtistID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

func (u *User) IsStaff() bool {
	return u.UserType == UserTypeAdmin
}

// IsVerifiedArtist reports whether the user may submit distribution requests.
func (u *User) IsVerifiedArtist() bool {
	return u.IsArtist && u.ArtistStatus == ArtistStatusVerified
}

// HasPayerDetails reports whether the profile carries what the gateway needs.
func (u *User) HasPayerDetails() bool {
	return strings.TrimSpace(u.FirstName) != "" &&
		strings.TrimSpace(u.LastName) != "" &&
		strings.TrimSpace(u.Email) != ""
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
