package chat

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"crewlink/infrastructure"
	"crewlink/internal/models"
)

//go:embed schema.sql
var schema string

var (
	ErrChannelNotFound = infrastructure.NotFound("channel not found")
	ErrMessageNotFound = infrastructure.NotFound("message not found")
	ErrMessageDeleted  = infrastructure.Validation("message is deleted")
	ErrAlreadyMember   = infrastructure.Conflict("user is already a member of this channel")
)

type Repository interface {
	// Channel operations
	GetChannel(ctx context.Context, channelID int64) (*models.Channel, error)
	CreateChannel(ctx context.Context, channel *models.Channel, members []models.Membership) (*models.Channel, error)
	// GetOrCreateDirectChannel returns the live direct channel between the two
	// users, creating it when none exists. created reports which happened.
	GetOrCreateDirectChannel(ctx context.Context, channel *models.Channel, userA, userB int64) (ch *models.Channel, created bool, err error)
	ListUserChannels(ctx context.Context, userID int64) ([]*models.Channel, error)
	TouchChannel(ctx context.Context, channelID int64, at time.Time) error

	// Membership operations
	GetMembership(ctx context.Context, channelID, userID int64) (*models.Membership, error)
	ListMembers(ctx context.Context, channelID int64) ([]models.ChannelMember, error)
	AddMember(ctx context.Context, membership *models.Membership) error
	RemoveMember(ctx context.Context, channelID, userID int64) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, message *models.Message) (*models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (*models.Message, error)
	ListMessages(ctx context.Context, channelID, afterID int64, limit int) ([]*models.Message, error)
	UpdateMessageContent(ctx context.Context, messageID int64, content string, mentions []models.Mention, at time.Time) error
	SoftDeleteMessage(ctx context.Context, messageID int64, at time.Time) error
	SetPinned(ctx context.Context, messageID int64, pinned bool, actorID int64, at time.Time) error

	// Reactions and receipts
	AddReaction(ctx context.Context, reaction *models.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error)
	MarkRead(ctx context.Context, channelID, userID int64, messageIDs []int64, at time.Time) ([]int64, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the channel and message tables when they are missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate chat schema: %w", err)
	}
	return nil
}

const channelColumns = `c.id, c.company_id, c.name, c.description, c.type, c.vessel_id, c.department,
	c.is_private, c.is_active, c.is_archived, c.created_by, c.created_at, c.last_activity_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*models.Channel, error) {
	var (
		ch         models.Channel
		vesselID   sql.NullInt64
		department sql.NullString
	)
	err := row.Scan(&ch.ID, &ch.CompanyID, &ch.Name, &ch.Description, &ch.Type, &vesselID, &department,
		&ch.IsPrivate, &ch.IsActive, &ch.IsArchived, &ch.CreatedBy, &ch.CreatedAt, &ch.LastActivityAt)
	if err != nil {
		return nil, err
	}
	if vesselID.Valid {
		ch.VesselID = &vesselID.Int64
	}
	ch.Department = department.String
	return &ch, nil
}

func (r *PostgresRepository) GetChannel(ctx context.Context, channelID int64) (*models.Channel, error) {
	ch, err := scanChannel(r.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels c WHERE c.id = $1`, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

func insertChannel(ctx context.Context, tx *sql.Tx, channel *models.Channel, members []models.Membership) error {
	var department sql.NullString
	if channel.Department != "" {
		department = sql.NullString{String: channel.Department, Valid: true}
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO channels (company_id, name, description, type, vessel_id, department,
			is_private, is_active, is_archived, created_by, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`, channel.CompanyID, channel.Name, channel.Description, channel.Type, channel.VesselID, department,
		channel.IsPrivate, channel.IsActive, channel.IsArchived, channel.CreatedBy, channel.CreatedAt).Scan(&channel.ID)
	if err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	channel.LastActivityAt = channel.CreatedAt

	for i := range members {
		members[i].ChannelID = channel.ID
		if err := insertMember(ctx, tx, &members[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) CreateChannel(ctx context.Context, channel *models.Channel, members []models.Membership) (*models.Channel, error) {
	err := infrastructure.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		return insertChannel(ctx, tx, channel, members)
	})
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (r *PostgresRepository) GetOrCreateDirectChannel(ctx context.Context, channel *models.Channel, userA, userB int64) (*models.Channel, bool, error) {
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	var (
		result  *models.Channel
		created bool
	)
	err := infrastructure.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		// Serializes concurrent creation attempts for the same pair.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			fmt.Sprintf("direct:%d:%d:%d", channel.CompanyID, low, high)); err != nil {
			return fmt.Errorf("failed to lock direct pair: %w", err)
		}

		existing, err := scanChannel(tx.QueryRowContext(ctx, `
			SELECT `+channelColumns+`
			FROM channels c
			JOIN channel_memberships a ON a.channel_id = c.id AND a.user_id = $2
			JOIN channel_memberships b ON b.channel_id = c.id AND b.user_id = $3
			WHERE c.type = 'direct' AND c.company_id = $1 AND c.is_active AND NOT c.is_archived
			ORDER BY c.id
			LIMIT 1
		`, channel.CompanyID, low, high))
		switch {
		case err == nil:
			result = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up direct channel: %w", err)
		}

		members := []models.Membership{
			{UserID: low, Role: models.MemberRoleMember, JoinedAt: channel.CreatedAt, NotificationsEnabled: true},
			{UserID: high, Role: models.MemberRoleMember, JoinedAt: channel.CreatedAt, NotificationsEnabled: true},
		}
		if err := insertChannel(ctx, tx, channel, members); err != nil {
			return err
		}
		result, created = channel, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (r *PostgresRepository) ListUserChannels(ctx context.Context, userID int64) ([]*models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+channelColumns+`
		FROM channels c
		JOIN channel_memberships m ON m.channel_id = c.id
		WHERE m.user_id = $1 AND c.is_active AND NOT c.is_archived
		ORDER BY c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *PostgresRepository) TouchChannel(ctx context.Context, channelID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE channels SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id = $1
	`, channelID, at)
	return err
}

func (r *PostgresRepository) GetMembership(ctx context.Context, channelID, userID int64) (*models.Membership, error) {
	var (
		m        models.Membership
		lastRead sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT channel_id, user_id, role, joined_at, last_read_at, notifications_enabled
		FROM channel_memberships WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID).Scan(&m.ChannelID, &m.UserID, &m.Role, &m.JoinedAt, &lastRead, &m.NotificationsEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if lastRead.Valid {
		m.LastReadAt = &lastRead.Time
	}
	return &m, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, channelID int64) ([]models.ChannelMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.channel_id, m.user_id, m.role, m.joined_at, m.last_read_at, m.notifications_enabled,
			COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM channel_memberships m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.channel_id = $1
		ORDER BY m.user_id
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.ChannelMember
	for rows.Next() {
		var (
			m        models.ChannelMember
			lastRead sql.NullTime
		)
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.Role, &m.JoinedAt, &lastRead, &m.NotificationsEnabled, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if lastRead.Valid {
			m.LastReadAt = &lastRead.Time
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMember(ctx context.Context, db execer, m *models.Membership) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO channel_memberships (channel_id, user_id, role, joined_at, notifications_enabled)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ChannelID, m.UserID, m.Role, m.JoinedAt, m.NotificationsEnabled)
	if isUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, membership *models.Membership) error {
	return insertMember(ctx, r.db, membership)
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, channelID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM channel_memberships WHERE channel_id = $1 AND user_id = $2`, channelID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove membership: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) CreateMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	err := infrastructure.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO messages (channel_id, sender_id, content, type, reply_to_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING id
		`, message.ChannelID, message.SenderID, message.Content, message.Type, message.ReplyToID, message.CreatedAt).Scan(&message.ID)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		for i := range message.Attachments {
			a := &message.Attachments[i]
			a.MessageID = message.ID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO message_attachments (message_id, file_name, file_url, mime_type, size)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, a.MessageID, a.FileName, a.FileURL, a.MimeType, a.Size).Scan(&a.ID)
			if err != nil {
				return fmt.Errorf("failed to insert attachment: %w", err)
			}
		}
		return insertMentions(ctx, tx, message.ID, message.Mentions)
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func insertMentions(ctx context.Context, tx *sql.Tx, messageID int64, mentions []models.Mention) error {
	for i := range mentions {
		mentions[i].MessageID = messageID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO message_mentions (message_id, type, user_id, text) VALUES ($1, $2, $3, $4)
		`, messageID, mentions[i].Type, mentions[i].UserID, mentions[i].Text)
		if err != nil {
			return fmt.Errorf("failed to insert mention: %w", err)
		}
	}
	return nil
}

const messageColumns = `id, channel_id, sender_id, content, type, is_edited, is_deleted, is_pinned,
	pinned_by, pinned_at, reply_to_id, created_at, updated_at, deleted_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg                 models.Message
		pinnedBy, replyToID sql.NullInt64
		pinnedAt, deletedAt sql.NullTime
	)
	err := row.Scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Content, &msg.Type, &msg.IsEdited, &msg.IsDeleted,
		&msg.IsPinned, &pinnedBy, &pinnedAt, &replyToID, &msg.CreatedAt, &msg.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if pinnedBy.Valid {
		msg.PinnedBy = &pinnedBy.Int64
	}
	if pinnedAt.Valid {
		msg.PinnedAt = &pinnedAt.Time
	}
	if replyToID.Valid {
		msg.ReplyToID = &replyToID.Int64
	}
	if deletedAt.Valid {
		msg.DeletedAt = &deletedAt.Time
	}
	return &msg, nil
}

func (r *PostgresRepository) GetMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	msg, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if err := r.loadChildren(ctx, []*models.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *PostgresRepository) ListMessages(ctx context.Context, channelID, afterID int64, limit int) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE channel_id = $1 AND id > $2
		ORDER BY id ASC LIMIT $3
	`, channelID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// loadChildren attaches attachments and mentions to the given messages.
func (r *PostgresRepository) loadChildren(ctx context.Context, messages []*models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Message, len(messages))
	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, file_name, file_url, mime_type, size
		FROM message_attachments WHERE message_id = ANY($1) ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileName, &a.FileURL, &a.MimeType, &a.Size); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan attachment: %w", err)
		}
		byID[a.MessageID].Attachments = append(byID[a.MessageID].Attachments, a)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT message_id, type, user_id, text
		FROM message_mentions WHERE message_id = ANY($1) ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load mentions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m      models.Mention
			userID sql.NullInt64
		)
		if err := rows.Scan(&m.MessageID, &m.Type, &userID, &m.Text); err != nil {
			return fmt.Errorf("failed to scan mention: %w", err)
		}
		if userID.Valid {
			m.UserID = &userID.Int64
		}
		byID[m.MessageID].Mentions = append(byID[m.MessageID].Mentions, m)
	}
	return rows.Err()
}

func (r *PostgresRepository) UpdateMessageContent(ctx context.Context, messageID int64, content string, mentions []models.Mention, at time.Time) error {
	return infrastructure.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE messages SET content = $2, is_edited = TRUE, updated_at = $3
			WHERE id = $1 AND NOT is_deleted
		`, messageID, content, at)
		if err != nil {
			return fmt.Errorf("failed to update message: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrMessageNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM message_mentions WHERE message_id = $1`, messageID); err != nil {
			return fmt.Errorf("failed to clear mentions: %w", err)
		}
		return insertMentions(ctx, tx, messageID, mentions)
	})
}

// SoftDeleteMessage marks a live message deleted. It returns ErrMessageDeleted
// when the message was already deleted, including by a concurrent request.
func (r *PostgresRepository) SoftDeleteMessage(ctx context.Context, messageID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_deleted = TRUE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND NOT is_deleted
	`, messageID, at)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return r.liveRowAffected(ctx, res, messageID)
}

func (r *PostgresRepository) SetPinned(ctx context.Context, messageID int64, pinned bool, actorID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_pinned = $2, pinned_by = $3, pinned_at = $4
		WHERE id = $1 AND NOT is_deleted
	`, messageID, pinned, actorID, at)
	if err != nil {
		return fmt.Errorf("failed to pin message: %w", err)
	}
	return r.liveRowAffected(ctx, res, messageID)
}

// liveRowAffected turns an update guarded by NOT is_deleted that touched no
// row into ErrMessageDeleted or ErrMessageNotFound.
func (r *PostgresRepository) liveRowAffected(ctx context.Context, res sql.Result, messageID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, messageID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrMessageDeleted
	}
	return ErrMessageNotFound
}

// AddReaction stores a reaction on a live message. The message row is share
// locked so a concurrent delete cannot commit between the check and the insert.
func (r *PostgresRepository) AddReaction(ctx context.Context, reaction *models.Reaction) (bool, error) {
	var added bool
	err := infrastructure.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var deleted bool
		err := tx.QueryRowContext(ctx, `SELECT is_deleted FROM messages WHERE id = $1 FOR SHARE`, reaction.MessageID).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMessageNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock message: %w", err)
		}
		if deleted {
			return ErrMessageDeleted
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (message_id, user_id, emoji) DO NOTHING
		`, reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to add reaction: %w", err)
		}
		n, err := res.RowsAffected()
		added = n > 0
		return err
	})
	return added, err
}

func (r *PostgresRepository) RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3
	`, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("failed to remove reaction: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) MarkRead(ctx context.Context, channelID, userID int64, messageIDs []int64, at time.Time) ([]int64, error) {
	var marked []int64
	err := infrastructure.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			INSERT INTO message_read_receipts (message_id, user_id, read_at)
			SELECT id, $2, $3 FROM messages
			WHERE channel_id = $1 AND id = ANY($4) AND NOT is_deleted
			ON CONFLICT (message_id, user_id) DO NOTHING
			RETURNING message_id
		`, channelID, userID, at, pq.Array(messageIDs))
		if err != nil {
			return fmt.Errorf("failed to insert read receipts: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			marked = append(marked, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE channel_memberships
			SET last_read_at = GREATEST(COALESCE(last_read_at, $3), $3)
			WHERE channel_id = $1 AND user_id = $2
		`, channelID, userID, at)
		if err != nil {
			return fmt.Errorf("failed to update last read: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
