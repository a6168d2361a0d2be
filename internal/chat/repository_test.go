package chat_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlink/internal/chat"
	"crewlink/internal/models"
)

func newMockRepository(t *testing.T) (*chat.PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return chat.NewPostgresRepository(db), mock
}

func sqlText(s string) string { return regexp.QuoteMeta(s) }

var channelCols = []string{
	"id", "company_id", "name", "description", "type", "vessel_id", "department",
	"is_private", "is_active", "is_archived", "created_by", "created_at", "last_activity_at",
}

func TestPostgresRepository_SoftDeleteMessage(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		exists   bool
		want     error
	}{
		{"live message", 1, true, nil},
		{"already deleted", 0, true, chat.ErrMessageDeleted},
		{"missing", 0, false, chat.ErrMessageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			mock.ExpectExec(sqlText("UPDATE messages SET is_deleted = TRUE")+".*"+sqlText("NOT is_deleted")).
				WithArgs(int64(9), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery(sqlText("SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)")).
					WithArgs(int64(9)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			err := repo.SoftDeleteMessage(context.Background(), 9, epoch)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPostgresRepository_SetPinnedOnDeletedMessage(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(sqlText("UPDATE messages SET is_pinned = $2")+".*"+sqlText("NOT is_deleted")).
		WithArgs(int64(4), true, int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sqlText("SELECT EXISTS")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.SetPinned(context.Background(), 4, true, 2, epoch)
	assert.ErrorIs(t, err, chat.ErrMessageDeleted)
}

func TestPostgresRepository_AddReaction(t *testing.T) {
	reaction := func() *models.Reaction {
		return &models.Reaction{MessageID: 12, UserID: 3, Emoji: "👍", CreatedAt: epoch}
	}
	lockQuery := sqlText("SELECT is_deleted FROM messages WHERE id = $1 FOR SHARE")

	t.Run("live message", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs(int64(12)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(false))
		mock.ExpectExec(sqlText("INSERT INTO message_reactions")).
			WithArgs(int64(12), int64(3), "👍", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		added, err := repo.AddReaction(context.Background(), reaction())
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("deleted message", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs(int64(12)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}).AddRow(true))
		mock.ExpectRollback()

		added, err := repo.AddReaction(context.Background(), reaction())
		assert.ErrorIs(t, err, chat.ErrMessageDeleted)
		assert.False(t, added)
	})

	t.Run("missing message", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs(int64(12)).
			WillReturnRows(sqlmock.NewRows([]string{"is_deleted"}))
		mock.ExpectRollback()

		_, err := repo.AddReaction(context.Background(), reaction())
		assert.ErrorIs(t, err, chat.ErrMessageNotFound)
	})
}

func TestPostgresRepository_AddMemberUniqueViolation(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(sqlText("INSERT INTO channel_memberships")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.AddMember(context.Background(), &models.Membership{ChannelID: 1, UserID: 2, Role: models.MemberRoleMember})
	assert.ErrorIs(t, err, chat.ErrAlreadyMember)
}

func TestPostgresRepository_GetOrCreateDirectChannel(t *testing.T) {
	lock := sqlText("SELECT pg_advisory_xact_lock(hashtext($1))")
	lookup := sqlText("WHERE c.type = 'direct'")
	direct := func() *models.Channel {
		return &models.Channel{CompanyID: companyID, Name: "anna, ben", Type: models.ChannelDirect, IsPrivate: true, IsActive: true, CreatedBy: 2, CreatedAt: epoch}
	}

	t.Run("returns existing under the pair lock", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec(lock).WithArgs("direct:10:1:2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(lookup).WithArgs(int64(companyID), int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows(channelCols).
				AddRow(int64(31), int64(companyID), "anna, ben", "", "direct", nil, "", true, true, false, int64(1), epoch, epoch))
		mock.ExpectCommit()

		ch, created, err := repo.GetOrCreateDirectChannel(context.Background(), direct(), 2, 1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(31), ch.ID)
		assert.Equal(t, models.ChannelDirect, ch.Type)
		assert.Nil(t, ch.VesselID)
	})

	t.Run("creates when missing", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectBegin()
		mock.ExpectExec(lock).WithArgs("direct:10:1:2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(lookup).WithArgs(int64(companyID), int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows(channelCols))
		mock.ExpectQuery(sqlText("INSERT INTO channels")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(32)))
		mock.ExpectExec(sqlText("INSERT INTO channel_memberships")).
			WithArgs(int64(32), int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(sqlText("INSERT INTO channel_memberships")).
			WithArgs(int64(32), int64(2), sqlmock.AnyArg(), sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ch, created, err := repo.GetOrCreateDirectChannel(context.Background(), direct(), 2, 1)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(32), ch.ID)
	})
}
