package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle of a launched campaign as reported
// by the remote execution engine.
type CampaignStatus string

const (
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusStopped   CampaignStatus = "stopped"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusRunning, CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusStopped:
		return true
	}
	return false
}

func (s CampaignStatus) String() string {
	return string(s)
}

// Terminal reports whether the engine will emit no further progress for the
// campaign.
func (s CampaignStatus) Terminal() bool {
	return s != CampaignStatusRunning
}

// CampaignHandle is the engine's acknowledgment of a started campaign and the
// sole key for opening a telemetry channel.
type CampaignHandle struct {
	CampaignID string    `json:"campaign_id"`
	StartedAt  time.Time `json:"started_at"`
}

// Campaign records a launched outreach run and its final counters.
type Campaign struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	// Engine-issued identifier, the telemetry channel key
	CampaignID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"campaign_id"`

	OperatorID      string `gorm:"type:varchar(255);index;not null" json:"operator_id"`
	PlanID          string `gorm:"type:varchar(50);not null" json:"plan_id"`
	MessageTemplate string `gorm:"type:text" json:"message_template"`

	Recipients int `gorm:"not null" json:"recipients"`
	Sent       int `gorm:"not null;default:0" json:"sent"`
	Failed     int `gorm:"not null;default:0" json:"failed"`

	Status CampaignStatus `gorm:"type:varchar(20);not null;default:'running';index" json:"status"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate ensures UUID is set
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	return nil
}

// CampaignFilter defines filter criteria for campaign queries
type CampaignFilter struct {
	ID         *uint
	UUID       *uuid.UUID
	CampaignID *string
	OperatorID *string
	PlanID     *string
	Status     *CampaignStatus
}
