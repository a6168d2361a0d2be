package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"crewlink/infrastructure"
	"crewlink/internal/models"
	"crewlink/internal/notifications"
	"crewlink/internal/permissions"
)

const (
	MaxContentLength   = 4000
	DefaultHistorySize = 50
	MaxHistorySize     = 200
	maxMarkReadBatch   = 500
)

// UserDirectory looks up identities by user id.
type UserDirectory interface {
	GetIdentity(ctx context.Context, userID int64) (*models.Identity, error)
}

// Presence answers whether a user currently has an open connection.
type Presence interface {
	IsOnline(userID int64) bool
}

type Service struct {
	repo     Repository
	users    UserDirectory
	presence Presence
	notifier notifications.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, users UserDirectory, presence Presence, notifier notifications.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		presence: presence,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Access resolves the authorization context of user against a channel.
func (s *Service) Access(ctx context.Context, user models.Identity, channelID int64) (permissions.Access, error) {
	ch, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return permissions.Access{}, err
	}
	membership, err := s.repo.GetMembership(ctx, channelID, user.UserID)
	if err != nil {
		return permissions.Access{}, err
	}
	return permissions.Access{User: user, Channel: ch, Membership: membership}, nil
}

// messageAccess loads a message together with the caller's access to its channel.
func (s *Service) messageAccess(ctx context.Context, user models.Identity, messageID int64) (*models.Message, permissions.Access, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, permissions.Access{}, err
	}
	access, err := s.Access(ctx, user, msg.ChannelID)
	if err != nil {
		return nil, permissions.Access{}, err
	}
	// Senders keep access to their own messages after leaving the channel.
	if !permissions.CanRead(access) && msg.SenderID != user.UserID {
		return nil, permissions.Access{}, infrastructure.Authorization("you cannot access this channel")
	}
	return msg, access, nil
}

type SendInput struct {
	ChannelID   int64
	Content     string
	Type        models.MessageType
	ReplyToID   *int64
	Attachments []models.Attachment
}

func (in *SendInput) validate() error {
	if in.ChannelID <= 0 {
		return infrastructure.Validation("channelId is required")
	}
	if in.Type == "" {
		in.Type = models.MessageText
	}
	if !in.Type.Valid() {
		return infrastructure.Validation("invalid message type")
	}
	if in.Type == models.MessageSystem {
		return infrastructure.Validation("system messages cannot be sent by users")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && len(in.Attachments) == 0 {
		return infrastructure.Validation("message content is required")
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return infrastructure.Validation(fmt.Sprintf("message content exceeds %d characters", MaxContentLength))
	}
	if (in.Type == models.MessageFile || in.Type == models.MessageImage) && len(in.Attachments) == 0 {
		return infrastructure.Validation(fmt.Sprintf("%s messages require an attachment", in.Type))
	}
	for _, a := range in.Attachments {
		if strings.TrimSpace(a.FileName) == "" || strings.TrimSpace(a.FileURL) == "" {
			return infrastructure.Validation("attachments require fileName and fileUrl")
		}
		if a.Size < 0 {
			return infrastructure.Validation("attachment size must not be negative")
		}
	}
	return nil
}

// SendMessage validates and persists a new message, then hands mention
// notifications to the dispatcher.
func (s *Service) SendMessage(ctx context.Context, sender models.Identity, in SendInput) (*models.Message, error) {
	msg, notify, err := s.PostMessage(ctx, sender, in)
	if err != nil {
		return nil, err
	}
	notify()
	return msg, nil
}

// PostMessage validates and persists a new message. Mention notifications are
// not sent until the returned notify func is called, so callers can first
// release whatever they hold while publishing the message.
func (s *Service) PostMessage(ctx context.Context, sender models.Identity, in SendInput) (*models.Message, func(), error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	access, err := s.Access(ctx, sender, in.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	if !permissions.CanPost(access) {
		return nil, nil, infrastructure.Authorization("you cannot post in this channel")
	}

	if in.ReplyToID != nil {
		parent, err := s.repo.GetMessage(ctx, *in.ReplyToID)
		if err != nil {
			if infrastructure.IsNotFound(err) {
				return nil, nil, infrastructure.Validation("reply target does not exist")
			}
			return nil, nil, err
		}
		if parent.ChannelID != in.ChannelID || parent.IsDeleted {
			return nil, nil, infrastructure.Validation("reply target must be a live message in the same channel")
		}
	}

	members, err := s.repo.ListMembers(ctx, in.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	mentions := ResolveMentions(in.Content, sender.UserID, members, s.isOnline)

	now := s.now()
	msg := &models.Message{
		ChannelID:   in.ChannelID,
		SenderID:    sender.UserID,
		Content:     in.Content,
		Type:        in.Type,
		ReplyToID:   in.ReplyToID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attachments: in.Attachments,
		Mentions:    mentions.Mentions,
	}
	err = infrastructure.TimeOperation(ctx, s.logger, "chat.CreateMessage", func() error {
		var err error
		msg, err = s.repo.CreateMessage(ctx, msg)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.TouchChannel(ctx, in.ChannelID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update channel activity",
			slog.Int64("channel_id", in.ChannelID), slog.Any("error", err))
	} else {
		access.Channel.LastActivityAt = now
	}

	notify := func() { s.notifyMentions(ctx, sender, access.Channel, msg, mentions.Notify) }
	return msg, notify, nil
}

// EditMessage replaces the content of the sender's own live message. Users
// mentioned for the first time by the edit are notified.
func (s *Service) EditMessage(ctx context.Context, editor models.Identity, messageID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, infrastructure.Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, infrastructure.Validation(fmt.Sprintf("message content exceeds %d characters", MaxContentLength))
	}

	msg, access, err := s.messageAccess(ctx, editor, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, infrastructure.Validation("deleted messages cannot be edited")
	}
	if !permissions.CanEdit(access, msg) {
		return nil, infrastructure.Authorization("only the sender can edit this message")
	}

	members, err := s.repo.ListMembers(ctx, msg.ChannelID)
	if err != nil {
		return nil, err
	}
	before := ResolveMentions(msg.Content, editor.UserID, members, s.isOnline)
	after := ResolveMentions(content, editor.UserID, members, s.isOnline)

	now := s.now()
	if err := s.repo.UpdateMessageContent(ctx, messageID, content, after.Mentions, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.IsEdited = true
	msg.UpdatedAt = now
	msg.Mentions = after.Mentions
	for i := range msg.Mentions {
		msg.Mentions[i].MessageID = msg.ID
	}

	s.notifyMentions(ctx, editor, access.Channel, msg, newlyMentioned(before.Notify, after.Notify))
	return msg, nil
}

// DeleteMessage soft-deletes a message. Deletion is terminal.
func (s *Service) DeleteMessage(ctx context.Context, actor models.Identity, messageID int64) (*models.Message, error) {
	msg, access, err := s.messageAccess(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, infrastructure.Validation("message is already deleted")
	}
	if !permissions.CanDelete(access, msg) {
		return nil, infrastructure.Authorization("you cannot delete this message")
	}

	now := s.now()
	if err := s.repo.SoftDeleteMessage(ctx, messageID, now); err != nil {
		return nil, err
	}
	msg.IsDeleted = true
	msg.DeletedAt = &now
	msg.UpdatedAt = now
	return msg, nil
}

// SetPinned pins or unpins a message. Repeating the current state is allowed
// and re-records the actor and time.
func (s *Service) SetPinned(ctx context.Context, actor models.Identity, messageID int64, pinned bool) (*models.Message, error) {
	msg, access, err := s.messageAccess(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, infrastructure.Validation("deleted messages cannot be pinned")
	}
	if !permissions.CanPin(access, msg) {
		return nil, infrastructure.Authorization("only moderators can pin messages")
	}

	now := s.now()
	if err := s.repo.SetPinned(ctx, messageID, pinned, actor.UserID, now); err != nil {
		return nil, err
	}
	msg.IsPinned = pinned
	actorID := actor.UserID
	msg.PinnedBy = &actorID
	msg.PinnedAt = &now
	return msg, nil
}

// ReactionChange describes the outcome of a reaction add or remove. Changed is
// false when the call was a no-op.
type ReactionChange struct {
	ChannelID int64
	Reaction  models.Reaction
	Added     bool
	Changed   bool
}

func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", infrastructure.Validation("emoji is required")
	}
	if utf8.RuneCountInString(emoji) > 32 {
		return "", infrastructure.Validation("emoji is too long")
	}
	return emoji, nil
}

func (s *Service) AddReaction(ctx context.Context, user models.Identity, messageID int64, emoji string) (*ReactionChange, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}
	msg, access, err := s.messageAccess(ctx, user, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, infrastructure.Validation("deleted messages cannot be reacted to")
	}
	if !permissions.CanReact(access, msg) {
		return nil, infrastructure.Authorization("you cannot react in this channel")
	}

	reaction := models.Reaction{MessageID: messageID, UserID: user.UserID, Emoji: emoji, CreatedAt: s.now()}
	added, err := s.repo.AddReaction(ctx, &reaction)
	if err != nil {
		return nil, err
	}
	return &ReactionChange{ChannelID: msg.ChannelID, Reaction: reaction, Added: true, Changed: added}, nil
}

func (s *Service) RemoveReaction(ctx context.Context, user models.Identity, messageID int64, emoji string) (*ReactionChange, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}
	msg, access, err := s.messageAccess(ctx, user, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, infrastructure.Validation("deleted messages cannot be reacted to")
	}
	if !permissions.CanReact(access, msg) {
		return nil, infrastructure.Authorization("you cannot react in this channel")
	}

	removed, err := s.repo.RemoveReaction(ctx, messageID, user.UserID, emoji)
	if err != nil {
		return nil, err
	}
	return &ReactionChange{
		ChannelID: msg.ChannelID,
		Reaction:  models.Reaction{MessageID: messageID, UserID: user.UserID, Emoji: emoji},
		Changed:   removed,
	}, nil
}

// MarkRead records read receipts for messages of one channel and advances the
// member's lastReadAt. It returns only the ids newly marked by this call.
func (s *Service) MarkRead(ctx context.Context, user models.Identity, channelID int64, messageIDs []int64) ([]int64, error) {
	if len(messageIDs) == 0 {
		return nil, infrastructure.Validation("messageIds is required")
	}
	if len(messageIDs) > maxMarkReadBatch {
		return nil, infrastructure.Validation(fmt.Sprintf("at most %d messages can be marked at once", maxMarkReadBatch))
	}
	access, err := s.Access(ctx, user, channelID)
	if err != nil {
		return nil, err
	}
	if !access.IsMember() || !permissions.CanRead(access) {
		return nil, infrastructure.Authorization("you are not a member of this channel")
	}
	return s.repo.MarkRead(ctx, channelID, user.UserID, messageIDs, s.now())
}

type ChannelInput struct {
	Name        string
	Description string
	Type        models.ChannelType
	VesselID    *int64
	Department  string
	IsPrivate   bool
	MemberIDs   []int64
}

// CreateChannel opens a new non-direct channel with the creator as its admin.
func (s *Service) CreateChannel(ctx context.Context, creator models.Identity, in ChannelInput) (*models.Channel, error) {
	now := s.now()
	ch := &models.Channel{
		CompanyID:   creator.CompanyID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		VesselID:    in.VesselID,
		Department:  strings.TrimSpace(in.Department),
		IsPrivate:   in.IsPrivate,
		IsActive:    true,
		CreatedBy:   creator.UserID,
		CreatedAt:   now,
	}
	if err := ch.Validate(); err != nil {
		return nil, infrastructure.Validation(err.Error())
	}
	if ch.Type == models.ChannelDirect {
		return nil, infrastructure.Validation("direct channels are opened with a recipient")
	}
	if !permissions.CanCreateChannel(creator, ch) {
		return nil, infrastructure.Authorization("you cannot create this kind of channel")
	}

	members := []models.Membership{{UserID: creator.UserID, Role: models.MemberRoleAdmin, JoinedAt: now, NotificationsEnabled: true}}
	seen := map[int64]struct{}{creator.UserID: {}}
	for _, id := range in.MemberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		member, err := s.users.GetIdentity(ctx, id)
		if err != nil {
			return nil, err
		}
		if member.CompanyID != creator.CompanyID {
			return nil, infrastructure.Validation(fmt.Sprintf("user %d belongs to another company", id))
		}
		members = append(members, models.Membership{UserID: id, Role: models.MemberRoleMember, JoinedAt: now, NotificationsEnabled: true})
	}
	return s.repo.CreateChannel(ctx, ch, members)
}

// CreateDirectChannel returns the live direct channel between the caller and
// recipient, creating it when needed. created reports whether a channel was made.
func (s *Service) CreateDirectChannel(ctx context.Context, user models.Identity, recipientID int64) (*models.Channel, bool, error) {
	if recipientID == user.UserID {
		return nil, false, infrastructure.Validation("cannot open a direct channel with yourself")
	}
	recipient, err := s.users.GetIdentity(ctx, recipientID)
	if err != nil {
		return nil, false, err
	}
	if recipient.CompanyID != user.CompanyID {
		return nil, false, infrastructure.NotFound("user not found")
	}

	ch := &models.Channel{
		CompanyID: user.CompanyID,
		Name:      directChannelName(user, *recipient),
		Type:      models.ChannelDirect,
		IsPrivate: true,
		IsActive:  true,
		CreatedBy: user.UserID,
		CreatedAt: s.now(),
	}
	return s.repo.GetOrCreateDirectChannel(ctx, ch, user.UserID, recipientID)
}

func directChannelName(a, b models.Identity) string {
	if a.UserID > b.UserID {
		a, b = b, a
	}
	return fmt.Sprintf("%s, %s", a.Name, b.Name)
}

// JoinChannel adds the user to a channel they may join. Joining a channel the
// user already belongs to returns ErrAlreadyMember.
func (s *Service) JoinChannel(ctx context.Context, user models.Identity, channelID int64) (*models.Channel, error) {
	access, err := s.Access(ctx, user, channelID)
	if err != nil {
		return nil, err
	}
	if access.IsMember() {
		return access.Channel, ErrAlreadyMember
	}
	if !permissions.CanJoin(access) {
		return nil, infrastructure.Authorization("you cannot join this channel")
	}
	err = s.repo.AddMember(ctx, &models.Membership{
		ChannelID:            channelID,
		UserID:               user.UserID,
		Role:                 models.MemberRoleMember,
		JoinedAt:             s.now(),
		NotificationsEnabled: true,
	})
	if err != nil {
		return access.Channel, err
	}
	return access.Channel, nil
}

// LeaveChannel removes the user's membership. Direct channels cannot be left.
func (s *Service) LeaveChannel(ctx context.Context, user models.Identity, channelID int64) (*models.Channel, error) {
	access, err := s.Access(ctx, user, channelID)
	if err != nil {
		return nil, err
	}
	if !access.IsMember() {
		return nil, infrastructure.Validation("you are not a member of this channel")
	}
	if access.Channel.Type == models.ChannelDirect {
		return nil, infrastructure.Validation("direct channels cannot be left")
	}
	if _, err := s.repo.RemoveMember(ctx, channelID, user.UserID); err != nil {
		return nil, err
	}
	return access.Channel, nil
}

// ListMessages returns up to limit messages with id greater than afterID in
// ascending id order. Deleted messages are returned with their content blanked.
func (s *Service) ListMessages(ctx context.Context, user models.Identity, channelID, afterID int64, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	if limit > MaxHistorySize {
		limit = MaxHistorySize
	}
	access, err := s.Access(ctx, user, channelID)
	if err != nil {
		return nil, err
	}
	if !permissions.CanRead(access) {
		return nil, infrastructure.Authorization("you cannot read this channel")
	}
	messages, err := s.repo.ListMessages(ctx, channelID, afterID, limit)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if m.IsDeleted {
			m.Content = ""
			m.Attachments = nil
			m.Mentions = nil
		}
	}
	return messages, nil
}

// AccessibleChannels lists the live channels the user is a member of and can
// still read.
func (s *Service) AccessibleChannels(ctx context.Context, user models.Identity) ([]*models.Channel, error) {
	channels, err := s.repo.ListUserChannels(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	result := channels[:0]
	for _, ch := range channels {
		membership := &models.Membership{ChannelID: ch.ID, UserID: user.UserID}
		if permissions.CanRead(permissions.Access{User: user, Channel: ch, Membership: membership}) {
			result = append(result, ch)
		}
	}
	return result, nil
}

func (s *Service) isOnline(userID int64) bool {
	return s.presence != nil && s.presence.IsOnline(userID)
}

func (s *Service) notifyMentions(ctx context.Context, sender models.Identity, ch *models.Channel, msg *models.Message, userIDs []int64) {
	if s.notifier == nil {
		return
	}
	title := fmt.Sprintf("%s mentioned you", sender.Name)
	if ch.Type != models.ChannelDirect && ch.Name != "" {
		title = fmt.Sprintf("%s mentioned you in #%s", sender.Name, ch.Name)
	}
	for _, userID := range userIDs {
		err := s.notifier.Dispatch(ctx, notifications.Request{
			UserID:  userID,
			Type:    notifications.TypeMention,
			Title:   title,
			Message: preview(msg.Content),
			Data: map[string]any{
				"channelId": msg.ChannelID,
				"messageId": msg.ID,
				"senderId":  sender.UserID,
			},
			Priority: notifications.PriorityNormal,
			Channels: []notifications.DeliveryChannel{notifications.DeliverInApp, notifications.DeliverPush},
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to dispatch mention notification",
				slog.Int64("user_id", userID), slog.Int64("message_id", msg.ID), slog.Any("error", err))
		}
	}
}

func newlyMentioned(before, after []int64) []int64 {
	old := make(map[int64]struct{}, len(before))
	for _, id := range before {
		old[id] = struct{}{}
	}
	var added []int64
	for _, id := range after {
		if _, ok := old[id]; !ok {
			added = append(added, id)
		}
	}
	return added
}

func preview(content string) string {
	const max = 140
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max-1]) + "…"
}
