package models

import "time"

type MessageType string

const (
	MessageText         MessageType = "text"
	MessageFile         MessageType = "file"
	MessageImage        MessageType = "image"
	MessageSystem       MessageType = "system"
	MessageAnnouncement MessageType = "announcement"
	MessageHSEUpdate    MessageType = "hse_update"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageImage, MessageSystem, MessageAnnouncement, MessageHSEUpdate:
		return true
	}
	return false
}

type Message struct {
	ID          int64        `json:"id"`
	ChannelID   int64        `json:"channelId"`
	SenderID    int64        `json:"senderId"`
	Content     string       `json:"content"`
	Type        MessageType  `json:"type"`
	IsEdited    bool         `json:"isEdited"`
	IsDeleted   bool         `json:"isDeleted"`
	IsPinned    bool         `json:"isPinned"`
	PinnedBy    *int64       `json:"pinnedBy,omitempty"`
	PinnedAt    *time.Time   `json:"pinnedAt,omitempty"`
	ReplyToID   *int64       `json:"replyToId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	DeletedAt   *time.Time   `json:"deletedAt,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mentions    []Mention    `json:"mentions,omitempty"`
}

type Attachment struct {
	ID        int64  `json:"id"`
	MessageID int64  `json:"messageId"`
	FileName  string `json:"fileName"`
	FileURL   string `json:"fileUrl"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
}

type Reaction struct {
	MessageID int64     `json:"messageId"`
	UserID    int64     `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

type MentionType string

const (
	MentionUser    MentionType = "user"
	MentionSpecial MentionType = "special"
	MentionText    MentionType = "text"
)

type Mention struct {
	MessageID int64       `json:"messageId"`
	Type      MentionType `json:"type"`
	UserID    *int64      `json:"userId,omitempty"`
	Text      string      `json:"text"`
}

type ReadReceipt struct {
	MessageID int64     `json:"messageId"`
	UserID    int64     `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}
