package models

import (
	"time"

	"gorm.io/gorm"
)

// QuotaRecord tracks the campaigns an operator is entitled to run under the
// plan they last purchased. One row per operator; replaced wholesale when the
// operator switches plans. Invariant: 0 <= RemainingCampaigns <= TotalCampaigns.
type QuotaRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID string `gorm:"type:varchar(255);uniqueIndex;not null" json:"operator_id"`
	PlanID     string `gorm:"type:varchar(50);not null" json:"plan_id"`

	TotalCampaigns     int `gorm:"not null" json:"total_campaigns"`
	RemainingCampaigns int `gorm:"not null" json:"remaining_campaigns"`

	PurchasedAt      time.Time `gorm:"not null" json:"purchased_at"`
	PaymentReference string    `gorm:"type:varchar(255);not null" json:"payment_reference"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// QuotaRecordFilter defines filter criteria for quota record queries
type QuotaRecordFilter struct {
	ID         *uint
	OperatorID *string
	PlanID     *string
}
