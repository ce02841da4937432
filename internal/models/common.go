// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the primary key client-side so every dialect gets the same ids.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type ArtistStatus string

const (
	ArtistStatusNone     ArtistStatus = ""
	ArtistStatusPending  ArtistStatus = "pending"
	ArtistStatusVerified ArtistStatus = "verified"
	ArtistStatusRejected ArtistStatus = "rejected"
)

type Genre string

const (
	GenreAfrobeat    Genre = "afrobeat"
	GenreGospel      Genre = "gospel"
	GenreHipHop      Genre = "hiphop"
	GenreRnB         Genre = "rnb"
	GenreReggae      Genre = "reggae"
	GenreTraditional Genre = "traditional"
	GenreOther       Genre = "other"
)

func (g Genre) Valid() bool {
	switch g {
	case GenreAfrobeat, GenreGospel, GenreHipHop, GenreRnB, GenreReggae, GenreTraditional, GenreOther:
		return true
	}
	return false
}
