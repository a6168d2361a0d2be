// Package permissions maps a user, their channel membership and the channel's
// type and scope onto the operations they may perform. Every function is pure
// and denies unless a rule explicitly matches.
package permissions

import (
	"strings"

	"crewlink/internal/models"
)

// Access is the resolved authorization context for one user against one
// channel. Membership is nil when the user is not a member.
type Access struct {
	User       models.Identity
	Channel    *models.Channel
	Membership *models.Membership
}

func (a Access) IsMember() bool {
	return a.Membership != nil
}

func (a Access) isAdmin() bool {
	return a.User.Role == models.RoleAdmin
}

// inScope holds for every rule: the channel must be live and belong to the
// user's company.
func (a Access) inScope() bool {
	return a.Channel != nil && a.Channel.Live() && a.Channel.CompanyID == a.User.CompanyID
}

func (a Access) inDepartment() bool {
	return sameDepartment(a.User.Department, a.Channel.Department)
}

func (a Access) assignedToVessel() bool {
	return a.User.AssignedTo(a.Channel.VesselID)
}

func CanRead(a Access) bool {
	if !a.inScope() {
		return false
	}
	if a.isAdmin() {
		return true
	}
	ch := a.Channel
	switch ch.Type {
	case models.ChannelDirect:
		return a.IsMember()
	case models.ChannelAnnouncement, models.ChannelHSE:
		return !ch.IsPrivate || a.IsMember()
	case models.ChannelTeam:
		return a.IsMember() || (!ch.IsPrivate && a.User.Role.IsManagerTier())
	case models.ChannelDepartment:
		return a.inDepartment() || a.User.Role.IsManagerTier()
	case models.ChannelVessel:
		return a.assignedToVessel() || a.User.Role.IsManagerTier()
	case models.ChannelManagement:
		return a.User.Role.IsManagerTier()
	}
	return false
}

func CanPost(a Access) bool {
	if !a.inScope() {
		return false
	}
	if a.isAdmin() {
		return true
	}
	ch := a.Channel
	switch ch.Type {
	case models.ChannelDirect, models.ChannelTeam:
		return a.IsMember()
	case models.ChannelAnnouncement:
		return a.User.Role.IsManagerTier()
	case models.ChannelDepartment:
		// Department managers are members of the department they manage.
		return a.inDepartment()
	case models.ChannelVessel:
		return a.assignedToVessel() || a.User.Role.IsManagerTier()
	case models.ChannelHSE:
		switch a.User.Role {
		case models.RoleHSEManager:
			return true
		case models.RoleHSEOfficer:
			return a.assignedToVessel()
		}
		return false
	case models.ChannelManagement:
		return a.User.Role.IsManagerTier()
	}
	return false
}

func CanModerate(a Access) bool {
	if !a.inScope() {
		return false
	}
	if a.isAdmin() {
		return true
	}
	ch := a.Channel
	switch ch.Type {
	case models.ChannelDirect:
		return false
	case models.ChannelTeam:
		return a.Membership.CanModerate()
	case models.ChannelAnnouncement, models.ChannelManagement:
		return a.User.Role.IsManagerTier()
	case models.ChannelDepartment:
		if a.User.Role == models.RoleDepartmentManager && a.inDepartment() {
			return true
		}
		return a.Membership.CanModerate() && CanPost(a)
	case models.ChannelVessel:
		return a.User.Role.IsManagerTier() || (a.Membership.CanModerate() && a.assignedToVessel())
	case models.ChannelHSE:
		return a.User.Role == models.RoleHSEManager || (a.Membership.CanModerate() && CanPost(a))
	}
	return false
}

// CanEdit holds only for the sender of a live message. The sender keeps the
// right after losing access to the channel, as long as it is still live and
// in their company.
func CanEdit(a Access, msg *models.Message) bool {
	if !belongs(a, msg) || msg.IsDeleted || !a.inScope() {
		return false
	}
	return msg.SenderID == a.User.UserID
}

// CanDelete allows the sender, or a moderator outside direct channels.
func CanDelete(a Access, msg *models.Message) bool {
	if !belongs(a, msg) || msg.IsDeleted || !a.inScope() {
		return false
	}
	if msg.SenderID == a.User.UserID {
		return true
	}
	if a.Channel.Type == models.ChannelDirect {
		return false
	}
	return CanModerate(a)
}

func CanPin(a Access, msg *models.Message) bool {
	return belongs(a, msg) && !msg.IsDeleted && CanModerate(a)
}

func CanReact(a Access, msg *models.Message) bool {
	return belongs(a, msg) && !msg.IsDeleted && CanRead(a)
}

// CanJoin reports whether the user may add themselves to the channel.
func CanJoin(a Access) bool {
	if !a.inScope() || a.IsMember() {
		return false
	}
	ch := a.Channel
	if ch.Type == models.ChannelDirect {
		return false
	}
	if ch.IsPrivate {
		return a.isAdmin()
	}
	if ch.Type == models.ChannelTeam {
		return true
	}
	return CanRead(a)
}

// CanCreateChannel decides who may open a channel of the given type and scope.
// Direct channels are created through the get-or-create path instead.
func CanCreateChannel(user models.Identity, ch *models.Channel) bool {
	if ch == nil || ch.CompanyID != user.CompanyID {
		return false
	}
	if ch.Type == models.ChannelDirect {
		return false
	}
	if user.Role == models.RoleAdmin {
		return true
	}
	switch ch.Type {
	case models.ChannelTeam:
		return true
	case models.ChannelDepartment:
		return user.Role.IsManagerTier() ||
			(user.Role == models.RoleDepartmentManager && sameDepartment(user.Department, ch.Department))
	case models.ChannelVessel, models.ChannelHSE, models.ChannelAnnouncement, models.ChannelManagement:
		return user.Role.IsManagerTier()
	}
	return false
}

// CanCreateAlert applies the HSE scope rule: managers anywhere, officers only
// on their own vessel.
func CanCreateAlert(user models.Identity, scope models.AlertScope, vesselID *int64) bool {
	switch user.Role {
	case models.RoleAdmin, models.RoleHSEManager:
		return true
	case models.RoleHSEOfficer:
		return scope == models.ScopeVessel && user.AssignedTo(vesselID)
	}
	return false
}

// CanAcknowledge reports whether the user is part of an alert's audience.
func CanAcknowledge(user models.Identity, companyID int64, scope models.AlertScope, vesselID *int64, department string) bool {
	if user.CompanyID != companyID {
		return false
	}
	if user.Role.IsManagerTier() {
		return true
	}
	switch scope {
	case models.ScopeCompany:
		return true
	case models.ScopeVessel:
		return user.AssignedTo(vesselID)
	case models.ScopeDepartment:
		return sameDepartment(user.Department, department)
	}
	return false
}

func belongs(a Access, msg *models.Message) bool {
	return msg != nil && a.Channel != nil && msg.ChannelID == a.Channel.ID
}

func sameDepartment(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
