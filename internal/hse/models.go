package hse

import (
	"time"

	"crewlink/internal/models"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a scoped HSE update broadcast to the people it concerns.
type Alert struct {
	ID         int64             `gorm:"primaryKey" json:"id"`
	CompanyID  int64             `gorm:"index;not null" json:"companyId"`
	CreatedBy  int64             `gorm:"not null" json:"createdBy"`
	Title      string            `gorm:"not null" json:"title"`
	Message    string            `gorm:"not null" json:"message"`
	Severity   Severity          `gorm:"not null" json:"severity"`
	Scope      models.AlertScope `gorm:"not null" json:"scope"`
	VesselID   *int64            `json:"vesselId,omitempty"`
	Department string            `json:"department,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (Alert) TableName() string { return "hse_alerts" }

type Acknowledgment struct {
	AlertID        int64     `gorm:"primaryKey;autoIncrement:false" json:"updateId"`
	UserID         int64     `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	Comments       string    `json:"comments,omitempty"`
	AcknowledgedAt time.Time `gorm:"not null" json:"acknowledgedAt"`
}

func (Acknowledgment) TableName() string { return "hse_acknowledgments" }
