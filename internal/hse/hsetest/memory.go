// Package hsetest provides an in-memory HSE store for tests.
package hsetest

import (
	"context"
	"sync"

	"crewlink/internal/hse"
	"crewlink/internal/models"
)

type ackKey struct{ alertID, userID int64 }

// Memory implements hse.Repository and hse.Audience.
type Memory struct {
	mu     sync.Mutex
	alerts map[int64]*hse.Alert
	acks   map[ackKey]hse.Acknowledgment
	nextID int64
	users  []models.Identity
}

var (
	_ hse.Repository = (*Memory)(nil)
	_ hse.Audience   = (*Memory)(nil)
)

func NewMemory(users ...models.Identity) *Memory {
	return &Memory{
		alerts: make(map[int64]*hse.Alert),
		acks:   make(map[ackKey]hse.Acknowledgment),
		users:  users,
	}
}

func (m *Memory) CreateAlert(_ context.Context, alert *hse.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	alert.ID = m.nextID
	a := *alert
	m.alerts[a.ID] = &a
	return nil
}

func (m *Memory) GetAlert(_ context.Context, id int64) (*hse.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, hse.ErrAlertNotFound
	}
	out := *a
	return &out, nil
}

func (m *Memory) Acknowledge(_ context.Context, ack *hse.Acknowledgment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ackKey{ack.AlertID, ack.UserID}
	if _, ok := m.acks[key]; ok {
		return false, nil
	}
	m.acks[key] = *ack
	return true, nil
}

// Acknowledgments returns how many users acknowledged an alert.
func (m *Memory) Acknowledgments(alertID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.acks {
		if key.alertID == alertID {
			n++
		}
	}
	return n
}

func (m *Memory) UsersInScope(_ context.Context, companyID int64, scope models.AlertScope, vesselID *int64, department string) ([]int64, error) {
	var ids []int64
	for _, u := range m.users {
		if u.CompanyID != companyID {
			continue
		}
		switch scope {
		case models.ScopeVessel:
			if !u.AssignedTo(vesselID) {
				continue
			}
		case models.ScopeDepartment:
			if u.Department != department {
				continue
			}
		}
		ids = append(ids, u.UserID)
	}
	return ids, nil
}
