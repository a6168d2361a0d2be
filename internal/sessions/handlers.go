package sessions

import (
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc/codes"

	"crewlink/infrastructure"
	"crewlink/internal/chat"
	"crewlink/internal/hse"
	"crewlink/internal/models"
	"crewlink/internal/permissions"
)

type handlerFunc func(c *Conn, data json.RawMessage) error

func (m *Manager) handlerTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		EventMessageSend:     m.handleSend,
		EventMessageEdit:     m.handleEdit,
		EventMessageDelete:   m.handleDelete,
		EventMessagePin:      m.handlePin(true),
		EventMessageUnpin:    m.handlePin(false),
		EventMessageReact:    m.handleReaction(true),
		EventMessageUnreact:  m.handleReaction(false),
		EventTypingStart:     m.handleTyping(true),
		EventTypingStop:      m.handleTyping(false),
		EventChannelJoin:     m.handleJoin,
		EventChannelLeave:    m.handleLeave,
		EventChannelCreate:   m.handleCreateChannel,
		EventChannelDirect:   m.handleDirectChannel,
		EventMessagesHistory: m.handleHistory,
		EventMarkRead:        m.handleMarkRead,
		EventHSEAlert:        m.handleAlert,
		EventHSEAcknowledge:  m.handleAcknowledge,
	}
}

// dispatch runs the handler for env. Every rejected action answers the
// originating connection with exactly one error event; conflicts are benign
// and answered with nothing.
func (m *Manager) dispatch(c *Conn, env Envelope) {
	handler, ok := m.handlers[env.Event]
	if !ok {
		m.metrics.Events.WithLabelValues("unknown", "rejected").Inc()
		m.deliver(c, errorEvent(env.Event, infrastructure.Validation("unknown event")))
		return
	}

	err := handler(c, env.Data)
	switch code := infrastructure.CodeOf(err); {
	case err == nil:
		m.metrics.Events.WithLabelValues(env.Event, "ok").Inc()
	case code == codes.AlreadyExists:
		m.metrics.Events.WithLabelValues(env.Event, "ignored").Inc()
	case code == codes.Internal:
		m.metrics.Events.WithLabelValues(env.Event, "error").Inc()
		m.logger.ErrorContext(c.ctx, "event failed",
			slog.String("event", env.Event),
			slog.String("conn_id", c.ID),
			slog.Int64("user_id", c.User.UserID),
			slog.Any("error", err))
		m.deliver(c, errorEvent(env.Event, err))
	default:
		m.metrics.Events.WithLabelValues(env.Event, "rejected").Inc()
		m.deliver(c, errorEvent(env.Event, err))
	}
}

// eventLabel keeps client supplied names out of metric labels.
func (m *Manager) eventLabel(event string) string {
	if _, ok := m.handlers[event]; ok {
		return event
	}
	return "unknown"
}

func errorEvent(event string, err error) Outbound {
	return Outbound{Event: EventError, Data: ErrorData{
		Event:   event,
		Message: infrastructure.PublicMessage(err),
		Code:    infrastructure.CodeOf(err).String(),
	}}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return infrastructure.Validation("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return infrastructure.Validation("invalid payload")
	}
	return nil
}

func (m *Manager) handleSend(c *Conn, data json.RawMessage) error {
	var p sendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.ChannelID <= 0 {
		return infrastructure.Validation("channelId is required")
	}

	// Holding the channel lock from insert to enqueue keeps every
	// connection's copy of the channel in id order. Notifications go out
	// after it is released.
	unlock := m.channelLocks.Lock(p.ChannelID)
	msg, notify, err := m.chat.PostMessage(c.ctx, c.User, chat.SendInput{
		ChannelID:   p.ChannelID,
		Content:     p.Content,
		Type:        p.Type,
		ReplyToID:   p.ReplyToID,
		Attachments: p.Attachments,
	})
	if err != nil {
		unlock()
		return err
	}
	m.broadcast(Outbound{Event: EventMessageNew, Data: msg}, nil, ChannelRoom(msg.ChannelID))
	unlock()

	notify()
	return nil
}

func (m *Manager) handleEdit(c *Conn, data json.RawMessage) error {
	var p editMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	msg, err := m.chat.EditMessage(c.ctx, c.User, p.MessageID, p.Content)
	if err != nil {
		return err
	}
	m.broadcast(Outbound{Event: EventMessageEdited, Data: msg}, nil, ChannelRoom(msg.ChannelID))
	return nil
}

func (m *Manager) handleDelete(c *Conn, data json.RawMessage) error {
	var p messageRefPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	msg, err := m.chat.DeleteMessage(c.ctx, c.User, p.MessageID)
	if err != nil {
		return err
	}
	m.broadcast(Outbound{Event: EventMessageDeleted, Data: MessageDeletedData{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		DeletedBy: c.User.UserID,
		DeletedAt: *msg.DeletedAt,
	}}, nil, ChannelRoom(msg.ChannelID))
	return nil
}

func (m *Manager) handlePin(pinned bool) handlerFunc {
	return func(c *Conn, data json.RawMessage) error {
		var p messageRefPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		msg, err := m.chat.SetPinned(c.ctx, c.User, p.MessageID, pinned)
		if err != nil {
			return err
		}
		m.broadcast(Outbound{Event: EventMessagePinned, Data: MessagePinnedData{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			IsPinned:  msg.IsPinned,
			PinnedBy:  msg.PinnedBy,
			PinnedAt:  msg.PinnedAt,
		}}, nil, ChannelRoom(msg.ChannelID))
		return nil
	}
}

func (m *Manager) handleReaction(add bool) handlerFunc {
	return func(c *Conn, data json.RawMessage) error {
		var p reactionPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		var (
			change *chat.ReactionChange
			err    error
		)
		if add {
			change, err = m.chat.AddReaction(c.ctx, c.User, p.MessageID, p.Emoji)
		} else {
			change, err = m.chat.RemoveReaction(c.ctx, c.User, p.MessageID, p.Emoji)
		}
		if err != nil {
			return err
		}
		if !change.Changed {
			return nil
		}
		action := "removed"
		if add {
			action = "added"
		}
		m.broadcast(Outbound{Event: EventMessageReaction, Data: ReactionData{
			MessageID: change.Reaction.MessageID,
			ChannelID: change.ChannelID,
			UserID:    c.User.UserID,
			Emoji:     change.Reaction.Emoji,
			Action:    action,
		}}, nil, ChannelRoom(change.ChannelID))
		return nil
	}
}

// handleTyping relays typing state to the other readers of a channel.
// Nothing is persisted.
func (m *Manager) handleTyping(typing bool) handlerFunc {
	return func(c *Conn, data json.RawMessage) error {
		var p channelRefPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		access, err := m.chat.Access(c.ctx, c.User, p.ChannelID)
		if err != nil {
			return err
		}
		if !permissions.CanPost(access) {
			return infrastructure.Authorization("you cannot post in this channel")
		}
		m.broadcast(Outbound{Event: EventTypingUser, Data: TypingData{
			ChannelID: p.ChannelID,
			UserID:    c.User.UserID,
			Name:      c.User.Name,
			IsTyping:  typing,
		}}, m.skipUser(c.User.UserID), ChannelRoom(p.ChannelID))
		return nil
	}
}

func (m *Manager) handleJoin(c *Conn, data json.RawMessage) error {
	var p channelRefPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	ch, err := m.chat.JoinChannel(c.ctx, c.User, p.ChannelID)
	if err != nil {
		if infrastructure.IsConflict(err) && ch != nil {
			// Already a member; make sure this device is in the room.
			m.rooms.join(c, ChannelRoom(ch.ID))
		}
		return err
	}

	room := ChannelRoom(ch.ID)
	for _, uc := range m.userConns(c.User.UserID) {
		m.rooms.join(uc, room)
	}
	m.broadcast(Outbound{Event: EventChannelJoined, Data: ChannelMemberData{
		ChannelID: ch.ID,
		UserID:    c.User.UserID,
		Name:      c.User.Name,
	}}, nil, room)
	return nil
}

func (m *Manager) handleLeave(c *Conn, data json.RawMessage) error {
	var p channelRefPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	ch, err := m.chat.LeaveChannel(c.ctx, c.User, p.ChannelID)
	if err != nil {
		return err
	}

	room := ChannelRoom(ch.ID)
	m.broadcast(Outbound{Event: EventChannelLeft, Data: ChannelMemberData{
		ChannelID: ch.ID,
		UserID:    c.User.UserID,
		Name:      c.User.Name,
	}}, nil, room)
	for _, uc := range m.userConns(c.User.UserID) {
		m.rooms.leave(uc, room)
	}
	return nil
}

func (m *Manager) handleCreateChannel(c *Conn, data json.RawMessage) error {
	var p createChannelPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	ch, err := m.chat.CreateChannel(c.ctx, c.User, chat.ChannelInput{
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		VesselID:    p.VesselID,
		Department:  p.Department,
		IsPrivate:   p.IsPrivate,
		MemberIDs:   p.MemberIDs,
	})
	if err != nil {
		return err
	}
	m.announceChannel(ch, append([]int64{c.User.UserID}, p.MemberIDs...))
	return nil
}

func (m *Manager) handleDirectChannel(c *Conn, data json.RawMessage) error {
	var p directChannelPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	ch, created, err := m.chat.CreateDirectChannel(c.ctx, c.User, p.UserID)
	if err != nil {
		return err
	}
	if !created {
		room := ChannelRoom(ch.ID)
		for _, uc := range m.userConns(c.User.UserID) {
			m.rooms.join(uc, room)
		}
		m.deliver(c, Outbound{Event: EventChannelCreated, Data: ch})
		return nil
	}
	m.announceChannel(ch, []int64{c.User.UserID, p.UserID})
	return nil
}

// announceChannel joins every open connection of the members to the new
// channel's room and tells each of them about it.
func (m *Manager) announceChannel(ch *models.Channel, memberIDs []int64) {
	room := ChannelRoom(ch.ID)
	seen := make(map[int64]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		for _, uc := range m.userConns(id) {
			m.rooms.join(uc, room)
		}
	}
	m.broadcast(Outbound{Event: EventChannelCreated, Data: ch}, nil, room)
}

func (m *Manager) handleHistory(c *Conn, data json.RawMessage) error {
	var p historyPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	messages, err := m.chat.ListMessages(c.ctx, c.User, p.ChannelID, p.AfterID, p.Limit)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	m.deliver(c, Outbound{Event: EventMessagesList, Data: MessagesListData{ChannelID: p.ChannelID, Messages: messages}})
	return nil
}

func (m *Manager) handleMarkRead(c *Conn, data json.RawMessage) error {
	var p markReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	marked, err := m.chat.MarkRead(c.ctx, c.User, p.ChannelID, p.MessageIDs)
	if err != nil {
		return err
	}
	if len(marked) == 0 {
		return nil
	}
	m.broadcast(Outbound{Event: EventMarkedRead, Data: MarkedReadData{
		ChannelID:  p.ChannelID,
		UserID:     c.User.UserID,
		MessageIDs: marked,
		ReadAt:     m.now(),
	}}, nil, ChannelRoom(p.ChannelID))
	return nil
}

func (m *Manager) handleAlert(c *Conn, data json.RawMessage) error {
	var p alertPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	alert, err := m.hse.CreateAlert(c.ctx, c.User, hse.AlertInput{
		Title:      p.Title,
		Message:    p.Message,
		Severity:   p.Severity,
		Scope:      p.Scope,
		VesselID:   p.VesselID,
		Department: p.Department,
	})
	if err != nil {
		return err
	}
	m.broadcast(Outbound{Event: EventHSENewAlert, Data: alert}, nil, alertRooms(alert)...)
	return nil
}

func (m *Manager) handleAcknowledge(c *Conn, data json.RawMessage) error {
	var p acknowledgePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	ack, alert, created, err := m.hse.Acknowledge(c.ctx, c.User, p.UpdateID, p.Comments)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	m.broadcast(Outbound{Event: EventHSEAcknowledged, Data: AcknowledgedData{
		UpdateID:       ack.AlertID,
		UserID:         c.User.UserID,
		Name:           c.User.Name,
		Comments:       ack.Comments,
		AcknowledgedAt: ack.AcknowledgedAt,
	}}, nil, alertRooms(alert)...)
	return nil
}

// alertRooms are the rooms an HSE update reaches. Management always sees it.
func alertRooms(a *hse.Alert) []Room {
	rooms := []Room{ManagementRoom(a.CompanyID)}
	switch a.Scope {
	case models.ScopeCompany:
		rooms = append(rooms, CompanyRoom(a.CompanyID))
	case models.ScopeVessel:
		if a.VesselID != nil {
			rooms = append(rooms, VesselRoom(*a.VesselID))
		}
	case models.ScopeDepartment:
		rooms = append(rooms, DepartmentRoom(a.CompanyID, a.Department))
	}
	return rooms
}
