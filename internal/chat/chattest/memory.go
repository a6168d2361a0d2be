// Package chattest provides an in-memory chat store for tests.
package chattest

import (
	"context"
	"sort"
	"sync"
	"time"

	"crewlink/infrastructure"
	"crewlink/internal/chat"
	"crewlink/internal/models"
)

type memberKey struct{ channelID, userID int64 }

type reactionKey struct {
	messageID, userID int64
	emoji             string
}

// Memory implements chat.Repository and chat.UserDirectory.
type Memory struct {
	mu sync.Mutex

	users       map[int64]models.Identity
	channels    map[int64]*models.Channel
	memberships map[memberKey]*models.Membership
	messages    map[int64]*models.Message
	reactions   map[reactionKey]models.Reaction
	receipts    map[memberKey]time.Time

	nextChannelID int64
	nextMessageID int64
	nextChildID   int64
}

var (
	_ chat.Repository    = (*Memory)(nil)
	_ chat.UserDirectory = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]models.Identity),
		channels:    make(map[int64]*models.Channel),
		memberships: make(map[memberKey]*models.Membership),
		messages:    make(map[int64]*models.Message),
		reactions:   make(map[reactionKey]models.Reaction),
		receipts:    make(map[memberKey]time.Time),
	}
}

func (m *Memory) AddUser(u models.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
}

func (m *Memory) GetIdentity(_ context.Context, userID int64) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, infrastructure.NotFound("user not found")
	}
	return &u, nil
}

// SeedChannel stores ch as is, assigning an id when it has none, and adds the
// given members with the member role.
func (m *Memory) SeedChannel(ch models.Channel, memberIDs ...int64) *models.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch.ID == 0 {
		m.nextChannelID++
		ch.ID = m.nextChannelID
	} else if ch.ID > m.nextChannelID {
		m.nextChannelID = ch.ID
	}
	c := ch
	m.channels[c.ID] = &c
	for _, id := range memberIDs {
		m.memberships[memberKey{c.ID, id}] = &models.Membership{
			ChannelID: c.ID, UserID: id, Role: models.MemberRoleMember, JoinedAt: c.CreatedAt, NotificationsEnabled: true,
		}
	}
	out := c
	return &out
}

// SetMembership inserts or replaces a membership.
func (m *Memory) SetMembership(ms models.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := ms
	m.memberships[memberKey{ms.ChannelID, ms.UserID}] = &v
}

func (m *Memory) GetChannel(_ context.Context, channelID int64) (*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, chat.ErrChannelNotFound
	}
	out := *ch
	return &out, nil
}

func (m *Memory) createChannelLocked(ch *models.Channel, members []models.Membership) {
	m.nextChannelID++
	ch.ID = m.nextChannelID
	ch.LastActivityAt = ch.CreatedAt
	stored := *ch
	m.channels[ch.ID] = &stored
	for i := range members {
		members[i].ChannelID = ch.ID
		v := members[i]
		m.memberships[memberKey{ch.ID, v.UserID}] = &v
	}
}

func (m *Memory) CreateChannel(_ context.Context, ch *models.Channel, members []models.Membership) (*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createChannelLocked(ch, members)
	return ch, nil
}

func (m *Memory) GetOrCreateDirectChannel(_ context.Context, ch *models.Channel, userA, userB int64) (*models.Channel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.sortedChannelIDs() {
		existing := m.channels[id]
		if existing.Type != models.ChannelDirect || existing.CompanyID != ch.CompanyID || !existing.Live() {
			continue
		}
		_, a := m.memberships[memberKey{id, userA}]
		_, b := m.memberships[memberKey{id, userB}]
		if a && b {
			out := *existing
			return &out, false, nil
		}
	}
	m.createChannelLocked(ch, []models.Membership{
		{UserID: userA, Role: models.MemberRoleMember, JoinedAt: ch.CreatedAt, NotificationsEnabled: true},
		{UserID: userB, Role: models.MemberRoleMember, JoinedAt: ch.CreatedAt, NotificationsEnabled: true},
	})
	return ch, true, nil
}

func (m *Memory) sortedChannelIDs() []int64 {
	ids := make([]int64, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Memory) ListUserChannels(_ context.Context, userID int64) ([]*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Channel
	for _, id := range m.sortedChannelIDs() {
		ch := m.channels[id]
		if _, ok := m.memberships[memberKey{id, userID}]; ok && ch.Live() {
			c := *ch
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) TouchChannel(_ context.Context, channelID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok && at.After(ch.LastActivityAt) {
		ch.LastActivityAt = at
	}
	return nil
}

func (m *Memory) GetMembership(_ context.Context, channelID, userID int64) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.memberships[memberKey{channelID, userID}]
	if !ok {
		return nil, nil
	}
	out := *ms
	return &out, nil
}

func (m *Memory) ListMembers(_ context.Context, channelID int64) ([]models.ChannelMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChannelMember
	for key, ms := range m.memberships {
		if key.channelID != channelID {
			continue
		}
		u := m.users[key.userID]
		out = append(out, models.ChannelMember{Membership: *ms, Name: u.Name, Email: u.Email})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) AddMember(_ context.Context, ms *models.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey{ms.ChannelID, ms.UserID}
	if _, ok := m.memberships[key]; ok {
		return chat.ErrAlreadyMember
	}
	v := *ms
	m.memberships[key] = &v
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, channelID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey{channelID, userID}
	_, ok := m.memberships[key]
	delete(m.memberships, key)
	return ok, nil
}

func (m *Memory) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMessageID++
	msg.ID = m.nextMessageID
	for i := range msg.Attachments {
		m.nextChildID++
		msg.Attachments[i].ID = m.nextChildID
		msg.Attachments[i].MessageID = msg.ID
	}
	for i := range msg.Mentions {
		msg.Mentions[i].MessageID = msg.ID
	}
	m.messages[msg.ID] = cloneMessage(msg)
	return msg, nil
}

func (m *Memory) GetMessage(_ context.Context, messageID int64) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, chat.ErrMessageNotFound
	}
	return cloneMessage(msg), nil
}

func (m *Memory) ListMessages(_ context.Context, channelID, afterID int64, limit int) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.ChannelID == channelID && msg.ID > afterID {
			out = append(out, cloneMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateMessageContent(_ context.Context, messageID int64, content string, mentions []models.Mention, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.IsDeleted {
		return chat.ErrMessageNotFound
	}
	msg.Content = content
	msg.IsEdited = true
	msg.UpdatedAt = at
	msg.Mentions = append([]models.Mention(nil), mentions...)
	for i := range msg.Mentions {
		msg.Mentions[i].MessageID = messageID
	}
	return nil
}

func (m *Memory) SoftDeleteMessage(_ context.Context, messageID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.liveMessageLocked(messageID)
	if err != nil {
		return err
	}
	msg.IsDeleted = true
	msg.DeletedAt = &at
	msg.UpdatedAt = at
	return nil
}

func (m *Memory) SetPinned(_ context.Context, messageID int64, pinned bool, actorID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.liveMessageLocked(messageID)
	if err != nil {
		return err
	}
	msg.IsPinned = pinned
	msg.PinnedBy = &actorID
	msg.PinnedAt = &at
	return nil
}

func (m *Memory) AddReaction(_ context.Context, r *models.Reaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.liveMessageLocked(r.MessageID); err != nil {
		return false, err
	}
	key := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, ok := m.reactions[key]; ok {
		return false, nil
	}
	m.reactions[key] = *r
	return true, nil
}

func (m *Memory) liveMessageLocked(messageID int64) (*models.Message, error) {
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, chat.ErrMessageNotFound
	}
	if msg.IsDeleted {
		return nil, chat.ErrMessageDeleted
	}
	return msg, nil
}

func (m *Memory) RemoveReaction(_ context.Context, messageID, userID int64, emoji string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reactionKey{messageID, userID, emoji}
	_, ok := m.reactions[key]
	delete(m.reactions, key)
	return ok, nil
}

// Reactions returns the stored reactions of a message.
func (m *Memory) Reactions(messageID int64) []models.Reaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reaction
	for key, r := range m.reactions {
		if key.messageID == messageID {
			out = append(out, r)
		}
	}
	return out
}

func (m *Memory) MarkRead(_ context.Context, channelID, userID int64, messageIDs []int64, at time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked []int64
	for _, id := range messageIDs {
		msg, ok := m.messages[id]
		if !ok || msg.ChannelID != channelID || msg.IsDeleted {
			continue
		}
		key := memberKey{id, userID}
		if _, done := m.receipts[key]; done {
			continue
		}
		m.receipts[key] = at
		marked = append(marked, id)
	}
	if ms, ok := m.memberships[memberKey{channelID, userID}]; ok {
		if ms.LastReadAt == nil || at.After(*ms.LastReadAt) {
			t := at
			ms.LastReadAt = &t
		}
	}
	return marked, nil
}

func cloneMessage(msg *models.Message) *models.Message {
	out := *msg
	out.Attachments = append([]models.Attachment(nil), msg.Attachments...)
	out.Mentions = append([]models.Mention(nil), msg.Mentions...)
	return &out
}
