package hse

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crewlink/infrastructure"
)

var ErrAlertNotFound = infrastructure.NotFound("HSE update not found")

type Repository interface {
	CreateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id int64) (*Alert, error)
	// Acknowledge stores the acknowledgment and reports whether it is new.
	Acknowledge(ctx context.Context, ack *Acknowledgment) (bool, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create HSE update: %w", err)
	}
	return nil
}

func (r *GormRepository) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	var alert Alert
	err := r.db.WithContext(ctx).Take(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load HSE update: %w", err)
	}
	return &alert, nil
}

func (r *GormRepository) Acknowledge(ctx context.Context, ack *Acknowledgment) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ack)
	if res.Error != nil {
		return false, fmt.Errorf("failed to acknowledge HSE update: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
