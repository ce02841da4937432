// internal/models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// PaymentTransaction is one attempt to charge a distribution request.
// Rows only survive if the gateway accepted the initiation call.
type PaymentTransaction struct {
	BaseModel
	ChargeID              string          `json:"charge_id" gorm:"uniqueIndex;size:100;not null"`
	DistributionRequestID uuid.UUID       `json:"distribution_request_id" gorm:"type:uuid;not null;index"`
	Amount                decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency              string          `json:"currency" gorm:"size:3;not null;default:'MWK'"`
	Mobile                string          `json:"mobile" gorm:"size:20;not null"`
	OperatorRefID         string          `json:"operator_ref_id" gorm:"size:100;not null"`
	OperatorName          string          `json:"operator_name" gorm:"size:100"`
	Status                PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ResponseData          JSONB           `json:"response_data,omitempty" gorm:"type:jsonb"`
	UserEmail             string          `json:"user_email" gorm:"size:255"`
	InitiatedAt           time.Time       `json:"initiated_at" gorm:"not null"`
	CompletedAt           *time.Time      `json:"completed_at"`

	// Relationships
	DistributionRequest *DistributionRequest `json:"distribution_request,omitempty" gorm:"foreignKey:DistributionRequestID"`
}

// GatewayMessage extracts the message the gateway attached to its last response.
func (t *PaymentTransaction) GatewayMessage() string {
	if t.ResponseData == nil {
		return ""
	}
	if data, ok := t.ResponseData["data"].(map[string]interface{}); ok {
		if msg, ok := data["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := t.ResponseData["message"].(string); ok {
		return msg
	}
	return ""
}
