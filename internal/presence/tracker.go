// Package presence tracks which users have at least one open connection.
package presence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Tracker maps each user to the set of their open connection ids. A user is
// online while that set is non-empty.
type Tracker struct {
	mu    sync.RWMutex
	conns map[int64]map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[int64]map[string]struct{})}
}

// Add registers a connection and reports whether the user just came online.
// Adding a connection twice is a no-op.
func (t *Tracker) Add(userID int64, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		t.conns[userID] = set
	}
	if _, dup := set[connID]; dup {
		return false
	}
	set[connID] = struct{}{}
	return len(set) == 1
}

// Remove unregisters a connection and reports whether it was the user's last
// one. Removing an unknown connection is a no-op.
func (t *Tracker) Remove(userID int64, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.conns[userID]
	if !ok {
		return false
	}
	if _, known := set[connID]; !known {
		return false
	}
	delete(set, connID)
	if len(set) > 0 {
		return false
	}
	delete(t.conns, userID)
	return true
}

func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns[userID]) > 0
}

// OnlineUsers returns the online user ids in ascending order.
func (t *Tracker) OnlineUsers() []int64 {
	t.mu.RLock()
	users := make([]int64, 0, len(t.conns))
	for id := range t.conns {
		users = append(users, id)
	}
	t.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// Connections returns the connection ids open for a user.
func (t *Tracker) Connections(userID int64) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.conns[userID]))
	for id := range t.conns[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Recorder persists presence facts outside the process.
type Recorder interface {
	RecordStatus(ctx context.Context, userID int64, online bool, at time.Time) error
	RecordLastSeen(ctx context.Context, userIDs []int64, at time.Time) error
}

// MultiRecorder forwards to every recorder and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordStatus(ctx context.Context, userID int64, online bool, at time.Time) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordStatus(ctx, userID, online, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordLastSeen(ctx context.Context, userIDs []int64, at time.Time) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordLastSeen(ctx, userIDs, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
