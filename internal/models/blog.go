// internal/models/blog.go
package models

import (
	"github.com/google/uuid"
)

type BlogCategory struct {
	BaseModel
	Name string `json:"name" gorm:"size:100;not null"`
	Slug string `json:"slug" gorm:"uniqueIndex;size:120;not null"`
}

type BlogPost struct {
	BaseModel
	Title            string     `json:"title" gorm:"size:200;not null"`
	Slug             string     `json:"slug" gorm:"uniqueIndex;size:220;not null"`
	AuthorID         uuid.UUID  `json:"author_id" gorm:"type:uuid;not null;index"`
	CategoryID       *uuid.UUID `json:"category_id" gorm:"type:uuid;index"`
	Content          string     `json:"content" gorm:"type:text;not null"`
	FeaturedImageURL string     `json:"featured_image_url" gorm:"size:500"`
	Views            int64      `json:"views" gorm:"default:0"`

	// Relationships
	Author   *User         `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Category *BlogCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}
