// internal/models/catalog.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Album struct {
	BaseModel
	Title       string     `json:"title" gorm:"size:200;not null"`
	Slug        string     `json:"slug" gorm:"uniqueIndex;size:220;not null"`
	Artist      string     `json:"artist" gorm:"size:200;not null"`
	Genre       Genre      `json:"genre" gorm:"type:varchar(20);not null;index"`
	ReleaseDate *time.Time `json:"release_date"`
	CoverArtURL string     `json:"cover_art_url" gorm:"size:500"`
	Description string     `json:"description" gorm:"type:text"`
	UploaderID  uuid.UUID  `json:"uploader_id" gorm:"type:uuid;not null;index"`
	Downloads   int64      `json:"downloads" gorm:"default:0"`

	// Relationships
	Uploader *User   `json:"uploader,omitempty" gorm:"foreignKey:UploaderID"`
	Tracks   []Track `json:"tracks,omitempty" gorm:"foreignKey:AlbumID"`
}

type Track struct {
	BaseModel
	Title           string     `json:"title" gorm:"size:200;not null"`
	Slug            string     `json:"slug" gorm:"uniqueIndex;size:220;not null"`
	AlbumID         *uuid.UUID `json:"album_id" gorm:"type:uuid;index"`
	Artist          string     `json:"artist" gorm:"size:200;not null"`
	Genre           Genre      `json:"genre" gorm:"type:varchar(20);not null;index"`
	AudioURL        string     `json:"audio_url" gorm:"size:500;not null"`
	AudioKey        string     `json:"-" gorm:"size:500"`
	AudioChecksum   string     `json:"-" gorm:"size:64;index"`
	DurationSeconds int        `json:"duration_seconds"`
	TrackNumber     int        `json:"track_number" gorm:"default:1"`
	UploaderID      uuid.UUID  `json:"uploader_id" gorm:"type:uuid;not null;index"`
	Downloads       int64      `json:"downloads" gorm:"default:0"`
	LikesCount      int64      `json:"likes_count" gorm:"-"`

	// Relationships
	Album    *Album `json:"album,omitempty" gorm:"foreignKey:AlbumID"`
	Uploader *User  `json:"uploader,omitempty" gorm:"foreignKey:UploaderID"`
}

// TrackLike is one listener's like. The pair is the primary key so a user
// likes a track at most once.
type TrackLike struct {
	TrackID   uuid.UUID `json:"track_id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment belongs to exactly one of a track or an album.
type Comment struct {
	BaseModel
	TrackID *uuid.UUID `json:"track_id,omitempty" gorm:"type:uuid;index"`
	AlbumID *uuid.UUID `json:"album_id,omitempty" gorm:"type:uuid;index"`
	UserID  uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Text    string     `json:"text" gorm:"type:text;not null"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
