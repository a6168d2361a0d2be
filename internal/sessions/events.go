package sessions

import (
	"encoding/json"
	"time"

	"crewlink/internal/models"
)

// Inbound events.
const (
	EventMessageSend     = "message:send"
	EventMessageEdit     = "message:edit"
	EventMessageDelete   = "message:delete"
	EventMessagePin      = "message:pin"
	EventMessageUnpin    = "message:unpin"
	EventMessageReact    = "message:react"
	EventMessageUnreact  = "message:unreact"
	EventTypingStart     = "typing:start"
	EventTypingStop      = "typing:stop"
	EventChannelJoin     = "channel:join"
	EventChannelLeave    = "channel:leave"
	EventChannelCreate   = "channel:create"
	EventChannelDirect   = "channel:direct"
	EventMessagesHistory = "messages:history"
	EventMarkRead        = "messages:markRead"
	EventHSEAlert        = "hse:alert"
	EventHSEAcknowledge  = "hse:acknowledge"
)

// Outbound events.
const (
	EventConnected       = "connected"
	EventMessageNew      = "message:new"
	EventMessageEdited   = "message:edited"
	EventMessageDeleted  = "message:deleted"
	EventMessagePinned   = "message:pinned"
	EventMessageReaction = "message:reaction"
	EventTypingUser      = "typing:user"
	EventPresenceUpdate  = "presence:update"
	EventChannelJoined   = "channel:joined"
	EventChannelLeft     = "channel:left"
	EventChannelCreated  = "channel:created"
	EventMessagesList    = "messages:list"
	EventMarkedRead      = "messages:markedRead"
	EventHSENewAlert     = "hse:newAlert"
	EventHSEAcknowledged = "hse:userAcknowledged"
	EventError           = "error"
)

// Envelope is a frame received from a client.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type sendMessagePayload struct {
	ChannelID   int64               `json:"channelId"`
	Content     string              `json:"content"`
	Type        models.MessageType  `json:"type,omitempty"`
	ReplyToID   *int64              `json:"replyToId,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

type editMessagePayload struct {
	MessageID int64  `json:"messageId"`
	Content   string `json:"content"`
}

type messageRefPayload struct {
	MessageID int64 `json:"messageId"`
}

type reactionPayload struct {
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type channelRefPayload struct {
	ChannelID int64 `json:"channelId"`
}

type createChannelPayload struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Type        models.ChannelType `json:"type"`
	VesselID    *int64             `json:"vesselId,omitempty"`
	Department  string             `json:"department,omitempty"`
	IsPrivate   bool               `json:"isPrivate"`
	MemberIDs   []int64            `json:"memberIds,omitempty"`
}

type directChannelPayload struct {
	UserID int64 `json:"userId"`
}

type historyPayload struct {
	ChannelID int64 `json:"channelId"`
	AfterID   int64 `json:"afterId,omitempty"`
	Limit     int   `json:"limit,omitempty"`
}

type markReadPayload struct {
	ChannelID  int64   `json:"channelId"`
	MessageIDs []int64 `json:"messageIds"`
}

type alertPayload struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	Scope      string `json:"scope"`
	VesselID   *int64 `json:"vesselId,omitempty"`
	Department string `json:"department,omitempty"`
}

type acknowledgePayload struct {
	UpdateID int64  `json:"updateId"`
	Comments string `json:"comments,omitempty"`
}

// Outbound payloads.

type ConnectedData struct {
	UserID       int64             `json:"userId"`
	ConnectionID string            `json:"connectionId"`
	Channels     []*models.Channel `json:"channels"`
}

type MessageDeletedData struct {
	MessageID int64     `json:"messageId"`
	ChannelID int64     `json:"channelId"`
	DeletedBy int64     `json:"deletedBy"`
	DeletedAt time.Time `json:"deletedAt"`
}

type MessagePinnedData struct {
	MessageID int64      `json:"messageId"`
	ChannelID int64      `json:"channelId"`
	IsPinned  bool       `json:"isPinned"`
	PinnedBy  *int64     `json:"pinnedBy,omitempty"`
	PinnedAt  *time.Time `json:"pinnedAt,omitempty"`
}

type ReactionData struct {
	MessageID int64  `json:"messageId"`
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"`
}

type TypingData struct {
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
	IsTyping  bool   `json:"isTyping"`
}

type PresenceData struct {
	UserID   int64     `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type ChannelMemberData struct {
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
}

type MessagesListData struct {
	ChannelID int64             `json:"channelId"`
	Messages  []*models.Message `json:"messages"`
}

type MarkedReadData struct {
	ChannelID  int64     `json:"channelId"`
	UserID     int64     `json:"userId"`
	MessageIDs []int64   `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

type AcknowledgedData struct {
	UpdateID       int64     `json:"updateId"`
	UserID         int64     `json:"userId"`
	Name           string    `json:"name"`
	Comments       string    `json:"comments,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
}

type ErrorData struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
