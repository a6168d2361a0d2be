package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlink/internal/models"
)

func member(id int64, name, email string) models.ChannelMember {
	return models.ChannelMember{
		Membership: models.Membership{UserID: id, Role: models.MemberRoleMember, NotificationsEnabled: true},
		Name:       name,
		Email:      email,
	}
}

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"none", "no mentions here", nil},
		{"single", "hi @john", []string{"john"}},
		{"trailing punctuation", "thanks @john.", []string{"john"}},
		{"dedupe case insensitive", "@John and @john again", []string{"John"}},
		{"special tokens", "@all @here @channel", []string{"all", "here", "channel"}},
		{"email like", "ask @a.smith-jr please", []string{"a.smith-jr"}},
		{"bare at", "meet @ noon", nil},
		{"email address", "write to ops@ship.com", nil},
		{"after punctuation", "(@john),@jane", []string{"john", "jane"}},
		{"adjacent mentions", "@john @jane", []string{"john", "jane"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMentions(tt.content))
		})
	}
}

func TestResolveMentions_UserAndUnresolved(t *testing.T) {
	members := []models.ChannelMember{
		member(1, "sender", "sender@fleet.example"),
		member(2, "john", "john.doe@fleet.example"),
	}

	set := ResolveMentions("ping @john and @doesnotexist", 1, members, nil)

	require.Len(t, set.Mentions, 2)
	assert.Equal(t, models.MentionUser, set.Mentions[0].Type)
	require.NotNil(t, set.Mentions[0].UserID)
	assert.Equal(t, int64(2), *set.Mentions[0].UserID)
	assert.Equal(t, models.MentionText, set.Mentions[1].Type)
	assert.Equal(t, "doesnotexist", set.Mentions[1].Text)
	assert.Nil(t, set.Mentions[1].UserID)
	assert.Equal(t, []int64{2}, set.Notify)
}

func TestResolveMentions_EmailPrefix(t *testing.T) {
	members := []models.ChannelMember{member(5, "Maria Lopez", "mlopez@fleet.example")}

	set := ResolveMentions("@MLopez can you check", 1, members, nil)

	require.Len(t, set.Mentions, 1)
	assert.Equal(t, models.MentionUser, set.Mentions[0].Type)
	assert.Equal(t, []int64{5}, set.Notify)
}

func TestResolveMentions_OnlyChannelMembers(t *testing.T) {
	members := []models.ChannelMember{member(1, "sender", "")}

	set := ResolveMentions("@outsider", 1, members, nil)

	require.Len(t, set.Mentions, 1)
	assert.Equal(t, models.MentionText, set.Mentions[0].Type)
	assert.Empty(t, set.Notify)
}

func TestResolveMentions_AllExcludesSender(t *testing.T) {
	members := []models.ChannelMember{
		member(1, "a", ""), member(2, "b", ""), member(3, "c", ""), member(4, "d", ""), member(5, "e", ""),
	}

	set := ResolveMentions("@all drill at 1400", 3, members, nil)

	require.Len(t, set.Mentions, 1)
	assert.Equal(t, models.MentionSpecial, set.Mentions[0].Type)
	assert.Equal(t, "all", set.Mentions[0].Text)
	assert.Equal(t, []int64{1, 2, 4, 5}, set.Notify)
}

func TestResolveMentions_HereUsesPresence(t *testing.T) {
	members := []models.ChannelMember{member(1, "a", ""), member(2, "b", ""), member(3, "c", "")}
	online := func(id int64) bool { return id == 2 }

	set := ResolveMentions("@here anyone?", 1, members, online)

	assert.Equal(t, []int64{2}, set.Notify)
}

func TestResolveMentions_SkipsDisabledNotifications(t *testing.T) {
	muted := member(2, "john", "")
	muted.NotificationsEnabled = false
	members := []models.ChannelMember{member(1, "a", ""), muted, member(3, "c", "")}

	set := ResolveMentions("@john @channel", 1, members, nil)

	assert.Len(t, set.Mentions, 2)
	assert.Equal(t, []int64{3}, set.Notify)
}

func TestNewlyMentioned(t *testing.T) {
	assert.Equal(t, []int64{4}, newlyMentioned([]int64{2, 3}, []int64{3, 4}))
	assert.Nil(t, newlyMentioned([]int64{2}, []int64{2}))
}
