package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Notification is a stored in-app notice.
type Notification struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	Type      string    `gorm:"not null" json:"type"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"not null" json:"message"`
	Data      string    `gorm:"type:jsonb;not null;default:'{}'" json:"data"`
	Priority  string    `gorm:"not null;default:normal" json:"priority"`
	IsRead    bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func newNotification(req Request) (*Notification, error) {
	data := "{}"
	if len(req.Data) > 0 {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = string(raw)
	}
	return &Notification{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Data:     data,
		Priority: string(req.Priority),
	}, nil
}

type GormInbox struct {
	db *gorm.DB
}

func NewGormInbox(db *gorm.DB) *GormInbox {
	return &GormInbox{db: db}
}

func (i *GormInbox) Save(ctx context.Context, n *Notification) error {
	return i.db.WithContext(ctx).Create(n).Error
}
