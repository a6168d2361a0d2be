package sessions

import (
	"fmt"
	"strings"
	"sync"

	"crewlink/internal/models"
)

// Room is a broadcast group of connections.
type Room string

func ChannelRoom(channelID int64) Room { return Room(fmt.Sprintf("channel:%d", channelID)) }

func VesselRoom(vesselID int64) Room { return Room(fmt.Sprintf("vessel:%d", vesselID)) }

func DepartmentRoom(companyID int64, department string) Room {
	return Room(fmt.Sprintf("department:%d:%s", companyID, strings.ToLower(strings.TrimSpace(department))))
}

func CompanyRoom(companyID int64) Room { return Room(fmt.Sprintf("company:%d", companyID)) }

// ManagementRoom groups manager-tier users of a company, who see every
// scoped HSE update.
func ManagementRoom(companyID int64) Room { return Room(fmt.Sprintf("management:%d", companyID)) }

func UserRoom(userID int64) Room { return Room(fmt.Sprintf("user:%d", userID)) }

// scopeRooms are the coarse rooms a user belongs to regardless of channels.
func scopeRooms(u models.Identity) []Room {
	rooms := []Room{UserRoom(u.UserID), CompanyRoom(u.CompanyID)}
	if u.VesselID != nil {
		rooms = append(rooms, VesselRoom(*u.VesselID))
	}
	if strings.TrimSpace(u.Department) != "" {
		rooms = append(rooms, DepartmentRoom(u.CompanyID, u.Department))
	}
	if u.Role.IsManagerTier() {
		rooms = append(rooms, ManagementRoom(u.CompanyID))
	}
	return rooms
}

// roomRegistry is the shared room membership of all live connections.
type roomRegistry struct {
	mu      sync.RWMutex
	members map[Room]map[*Conn]struct{}
	joined  map[*Conn]map[Room]struct{}
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{
		members: make(map[Room]map[*Conn]struct{}),
		joined:  make(map[*Conn]map[Room]struct{}),
	}
}

// join adds c to rooms. A disconnected connection is never added, so a join
// racing with teardown cannot leave it behind.
func (r *roomRegistry) join(c *Conn, rooms ...Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.State() == StateDisconnected {
		return
	}
	for _, room := range rooms {
		set, ok := r.members[room]
		if !ok {
			set = make(map[*Conn]struct{})
			r.members[room] = set
		}
		set[c] = struct{}{}

		own, ok := r.joined[c]
		if !ok {
			own = make(map[Room]struct{})
			r.joined[c] = own
		}
		own[room] = struct{}{}
	}
}

func (r *roomRegistry) leave(c *Conn, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c, room)
}

func (r *roomRegistry) removeLocked(c *Conn, room Room) {
	if set, ok := r.members[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if own, ok := r.joined[c]; ok {
		delete(own, room)
		if len(own) == 0 {
			delete(r.joined, c)
		}
	}
}

// leaveAll removes c from every room and returns the rooms it was in.
func (r *roomRegistry) leaveAll(c *Conn) []Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []Room
	for room := range r.joined[c] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.removeLocked(c, room)
	}
	return rooms
}

func (r *roomRegistry) roomsOf(c *Conn) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]Room, 0, len(r.joined[c]))
	for room := range r.joined[c] {
		rooms = append(rooms, room)
	}
	return rooms
}

func (r *roomRegistry) inRoom(c *Conn, room Room) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][c]
	return ok
}

// conns returns the distinct connections in any of rooms, skipping those
// for which skip reports true.
func (r *roomRegistry) conns(skip func(*Conn) bool, rooms ...Room) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*Conn]struct{})
	var out []*Conn
	for _, room := range rooms {
		for c := range r.members[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if skip != nil && skip(c) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}
