package user

import (
	"time"
)

// User is the directory record behind an identity. Accounts are provisioned
// by the maintenance platform; this service only reads them and records
// presence.
type User struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	CompanyID  int64      `gorm:"index;not null" json:"companyId"`
	Name       string     `gorm:"not null" json:"name"`
	Email      string     `gorm:"uniqueIndex;not null" json:"email"`
	Role       string     `gorm:"not null" json:"role"`
	Department string     `json:"department,omitempty"`
	VesselID   *int64     `gorm:"index" json:"vesselId,omitempty"`
	IsActive   bool       `gorm:"not null;default:true" json:"isActive"`
	IsOnline   bool       `gorm:"not null;default:false" json:"isOnline"`
	LastSeen   *time.Time `json:"lastSeen,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
