package chat

import (
	"regexp"
	"strings"

	"crewlink/internal/models"
)

// A mention starts the text or follows a character that cannot be part of a
// name, so addresses like ops@ship.com are not mentions.
var mentionPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_.\-@])@([\p{L}\p{N}_.\-]+)`)

const (
	mentionAll     = "all"
	mentionChannel = "channel"
	mentionHere    = "here"
)

// ParseMentions returns the distinct @tokens in content in order of first
// appearance. Comparison is case-insensitive; the first spelling wins.
func ParseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var tokens []string
	for _, m := range matches {
		token := strings.TrimRight(m[1], ".-")
		if token == "" {
			continue
		}
		key := strings.ToLower(token)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// MentionSet is the outcome of resolving a message's mentions against the
// channel's members.
type MentionSet struct {
	// Mentions are the rows to persist with the message.
	Mentions []models.Mention
	// Notify lists resolved users to notify, deduplicated, without the sender
	// and without members who turned notifications off.
	Notify []int64
}

// ResolveMentions classifies every token in content. User tokens only match
// current channel members, by exact name or by email local part. Tokens that
// match nobody are kept as text mentions.
func ResolveMentions(content string, senderID int64, members []models.ChannelMember, online func(int64) bool) MentionSet {
	var set MentionSet
	notify := make(map[int64]struct{})
	add := func(m models.ChannelMember) {
		if m.UserID == senderID || !m.NotificationsEnabled {
			return
		}
		if _, ok := notify[m.UserID]; ok {
			return
		}
		notify[m.UserID] = struct{}{}
		set.Notify = append(set.Notify, m.UserID)
	}

	for _, token := range ParseMentions(content) {
		switch strings.ToLower(token) {
		case mentionAll, mentionChannel:
			set.Mentions = append(set.Mentions, models.Mention{Type: models.MentionSpecial, Text: strings.ToLower(token)})
			for _, m := range members {
				add(m)
			}
			continue
		case mentionHere:
			set.Mentions = append(set.Mentions, models.Mention{Type: models.MentionSpecial, Text: mentionHere})
			for _, m := range members {
				if online != nil && online(m.UserID) {
					add(m)
				}
			}
			continue
		}

		if m, ok := matchMember(token, members); ok {
			id := m.UserID
			set.Mentions = append(set.Mentions, models.Mention{Type: models.MentionUser, UserID: &id, Text: token})
			add(m)
			continue
		}
		set.Mentions = append(set.Mentions, models.Mention{Type: models.MentionText, Text: token})
	}
	return set
}

func matchMember(token string, members []models.ChannelMember) (models.ChannelMember, bool) {
	for _, m := range members {
		if strings.EqualFold(m.Name, token) {
			return m, true
		}
	}
	for _, m := range members {
		if prefix, _, ok := strings.Cut(m.Email, "@"); ok && strings.EqualFold(prefix, token) {
			return m, true
		}
	}
	return models.ChannelMember{}, false
}
