package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crewlink/internal/models"
)

func TestScopeRooms(t *testing.T) {
	crew := models.Identity{UserID: 3, CompanyID: 9, Role: models.RoleCrew, VesselID: vessel(4), Department: " Engine "}
	assert.ElementsMatch(t, []Room{"user:3", "company:9", "vessel:4", "department:9:engine"}, scopeRooms(crew))

	manager := models.Identity{UserID: 1, CompanyID: 9, Role: models.RoleManager}
	assert.ElementsMatch(t, []Room{"user:1", "company:9", "management:9"}, scopeRooms(manager))
}

func TestRoomRegistry(t *testing.T) {
	r := newRoomRegistry()
	a := &Conn{ID: "a", User: models.Identity{UserID: 1}}
	b := &Conn{ID: "b", User: models.Identity{UserID: 2}}

	r.join(a, ChannelRoom(1), ChannelRoom(2))
	r.join(b, ChannelRoom(2))

	assert.ElementsMatch(t, []*Conn{a, b}, r.conns(nil, ChannelRoom(1), ChannelRoom(2)))
	assert.Equal(t, []*Conn{b}, r.conns(func(c *Conn) bool { return c == a }, ChannelRoom(2)))

	r.leave(a, ChannelRoom(2))
	assert.False(t, r.inRoom(a, ChannelRoom(2)))
	assert.True(t, r.inRoom(a, ChannelRoom(1)))

	assert.Equal(t, []Room{ChannelRoom(1)}, r.leaveAll(a))
	assert.Empty(t, r.roomsOf(a))
	assert.Empty(t, r.conns(nil, ChannelRoom(1)))
}

func TestRoomRegistry_IgnoresDisconnectedConn(t *testing.T) {
	r := newRoomRegistry()
	c := &Conn{ID: "c", done: make(chan struct{}), cancel: func() {}}
	c.close()

	r.join(c, ChannelRoom(1))
	assert.False(t, r.inRoom(c, ChannelRoom(1)))
}
