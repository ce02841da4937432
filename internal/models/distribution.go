// internal/models/distribution.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DistributionStatus string

const (
	DistributionStatusPending     DistributionStatus = "pending"
	DistributionStatusPaid        DistributionStatus = "paid"
	DistributionStatusProcessing  DistributionStatus = "processing"
	DistributionStatusDistributed DistributionStatus = "distributed"
	DistributionStatusRejected    DistributionStatus = "rejected"
	DistributionStatusCancelled   DistributionStatus = "cancelled"
)

func (s DistributionStatus) Valid() bool {
	switch s {
	case DistributionStatusPending, DistributionStatusPaid, DistributionStatusProcessing,
		DistributionStatusDistributed, DistributionStatusRejected, DistributionStatusCancelled:
		return true
	}
	return false
}

func (s DistributionStatus) Terminal() bool {
	return s == DistributionStatusDistributed || s == DistributionStatusRejected || s == DistributionStatusCancelled
}

type DistributionPlatform struct {
	BaseModel
	Name        string `json:"name" gorm:"uniqueIndex;size:100;not null"`
	Description string `json:"description" gorm:"type:text"`
	LogoURL     string `json:"logo_url" gorm:"size:500"`
	IsActive    bool   `json:"is_active" gorm:"default:true;index"`
}

type DistributionRequest struct {
	BaseModel
	ArtistID         uuid.UUID          `json:"artist_id" gorm:"type:uuid;not null;index"`
	RequestedAt      time.Time          `json:"requested_at" gorm:"not null"`
	Status           DistributionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	TotalAmount      decimal.Decimal    `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	PaymentReference string             `json:"payment_reference,omitempty" gorm:"size:100"`
	PaymentDate      *time.Time         `json:"payment_date"`
	DistributedDate  *time.Time         `json:"distributed_date"`
	StaffNotes       string             `json:"staff_notes,omitempty" gorm:"type:text"`

	// Relationships
	Artist       *User                  `json:"artist,omitempty" gorm:"foreignKey:ArtistID"`
	Tracks       []Track                `json:"tracks,omitempty" gorm:"many2many:distribution_request_tracks;"`
	Platforms    []DistributionPlatform `json:"platforms,omitempty" gorm:"many2many:distribution_request_platforms;"`
	Transactions []PaymentTransaction   `json:"transactions,omitempty" gorm:"foreignKey:DistributionRequestID"`
}
