package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"crewlink/infrastructure"
	"crewlink/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetIdentity(ctx context.Context, id int64) (*models.Identity, error)
	EmailOf(ctx context.Context, id int64) (string, error)
	RecordStatus(ctx context.Context, id int64, online bool, at time.Time) error
	RecordLastSeen(ctx context.Context, ids []int64, at time.Time) error
	UsersInScope(ctx context.Context, companyID int64, scope models.AlertScope, vesselID *int64, department string) ([]int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("id = ? AND is_active", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, infrastructure.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// GetIdentity returns the identity of an active user.
func (r *repository) GetIdentity(ctx context.Context, id int64) (*models.Identity, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ConvertUserToIdentity(u), nil
}

func (r *repository) EmailOf(ctx context.Context, id int64) (string, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func (r *repository) RecordStatus(ctx context.Context, id int64, online bool, at time.Time) error {
	return r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Updates(map[string]any{"is_online": online, "last_seen": at}).Error
}

func (r *repository) RecordLastSeen(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&User{}).Where("id IN ?", ids).
		Update("last_seen", at).Error
}

// UsersInScope lists the active users of a company an alert scope reaches.
func (r *repository) UsersInScope(ctx context.Context, companyID int64, scope models.AlertScope, vesselID *int64, department string) ([]int64, error) {
	q := r.db.WithContext(ctx).Model(&User{}).Where("company_id = ? AND is_active", companyID)
	switch scope {
	case models.ScopeVessel:
		if vesselID == nil {
			return nil, nil
		}
		q = q.Where("vessel_id = ?", *vesselID)
	case models.ScopeDepartment:
		q = q.Where("LOWER(department) = LOWER(?)", department)
	}
	var ids []int64
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list users in scope: %w", err)
	}
	return ids, nil
}
