package models

import (
	"errors"
	"strings"
	"time"
)

type ChannelType string

const (
	ChannelTeam         ChannelType = "team"
	ChannelVessel       ChannelType = "vessel"
	ChannelDirect       ChannelType = "direct"
	ChannelHSE          ChannelType = "hse"
	ChannelAnnouncement ChannelType = "announcement"
	ChannelDepartment   ChannelType = "department"
	ChannelManagement   ChannelType = "management"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTeam, ChannelVessel, ChannelDirect, ChannelHSE, ChannelAnnouncement, ChannelDepartment, ChannelManagement:
		return true
	}
	return false
}

type MemberRole string

const (
	MemberRoleMember    MemberRole = "member"
	MemberRoleModerator MemberRole = "moderator"
	MemberRoleAdmin     MemberRole = "admin"
)

func (r MemberRole) Valid() bool {
	return r == MemberRoleMember || r == MemberRoleModerator || r == MemberRoleAdmin
}

type Channel struct {
	ID             int64       `json:"id"`
	CompanyID      int64       `json:"companyId"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Type           ChannelType `json:"type"`
	VesselID       *int64      `json:"vesselId,omitempty"`
	Department     string      `json:"department,omitempty"`
	IsPrivate      bool        `json:"isPrivate"`
	IsActive       bool        `json:"isActive"`
	IsArchived     bool        `json:"isArchived"`
	CreatedBy      int64       `json:"createdBy"`
	CreatedAt      time.Time   `json:"createdAt"`
	LastActivityAt time.Time   `json:"lastActivityAt"`
}

// Live reports whether the channel accepts traffic.
func (c *Channel) Live() bool {
	return c.IsActive && !c.IsArchived
}

// Validate checks the scoping invariants for the channel type.
func (c *Channel) Validate() error {
	if strings.TrimSpace(c.Name) == "" && c.Type != ChannelDirect {
		return errors.New("channel name is required")
	}
	if !c.Type.Valid() {
		return errors.New("invalid channel type")
	}
	switch c.Type {
	case ChannelVessel:
		if c.VesselID == nil {
			return errors.New("vessel channels require a vessel")
		}
	case ChannelDepartment:
		if strings.TrimSpace(c.Department) == "" {
			return errors.New("department channels require a department")
		}
	}
	return nil
}

type Membership struct {
	ChannelID            int64      `json:"channelId"`
	UserID               int64      `json:"userId"`
	Role                 MemberRole `json:"role"`
	JoinedAt             time.Time  `json:"joinedAt"`
	LastReadAt           *time.Time `json:"lastReadAt,omitempty"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
}

// CanModerate reports whether the membership role itself grants moderation.
func (m *Membership) CanModerate() bool {
	return m != nil && (m.Role == MemberRoleModerator || m.Role == MemberRoleAdmin)
}

// ChannelMember is a membership joined with the user's display fields.
type ChannelMember struct {
	Membership
	Name  string `json:"name"`
	Email string `json:"email"`
}
