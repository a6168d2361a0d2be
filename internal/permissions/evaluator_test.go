package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crewlink/internal/models"
)

func vessel(id int64) *int64 { return &id }

func channel(t models.ChannelType) *models.Channel {
	return &models.Channel{ID: 10, CompanyID: 1, Name: string(t), Type: t, IsActive: true}
}

func user(id int64, role models.Role) models.Identity {
	return models.Identity{UserID: id, Name: "u", Role: role, CompanyID: 1}
}

func member(role models.MemberRole) *models.Membership {
	return &models.Membership{ChannelID: 10, UserID: 2, Role: role}
}

func TestDepartmentChannelPosting(t *testing.T) {
	tech := user(2, models.RoleTechnician)
	tech.Department = "electrical"

	mechanical := channel(models.ChannelDepartment)
	mechanical.Department = "mechanical"
	electrical := channel(models.ChannelDepartment)
	electrical.Department = "Electrical"

	assert.False(t, CanPost(Access{User: tech, Channel: mechanical}))
	assert.True(t, CanPost(Access{User: tech, Channel: electrical}))
	assert.False(t, CanModerate(Access{User: tech, Channel: electrical}))

	head := user(3, models.RoleDepartmentManager)
	head.Department = "electrical"
	assert.True(t, CanModerate(Access{User: head, Channel: electrical}))
	assert.False(t, CanModerate(Access{User: head, Channel: mechanical}))
}

func TestAnnouncementChannel(t *testing.T) {
	ch := channel(models.ChannelAnnouncement)
	for _, role := range []models.Role{models.RoleAdmin, models.RoleManager, models.RoleHSEManager} {
		assert.True(t, CanPost(Access{User: user(2, role), Channel: ch}), role)
	}
	crew := Access{User: user(2, models.RoleCrew), Channel: ch}
	assert.True(t, CanRead(crew))
	assert.False(t, CanPost(crew))
}

func TestDirectChannelMembersOnly(t *testing.T) {
	ch := channel(models.ChannelDirect)
	outsider := Access{User: user(5, models.RoleManager), Channel: ch}
	assert.False(t, CanRead(outsider))
	assert.False(t, CanPost(outsider))
	assert.False(t, CanJoin(outsider))

	inside := Access{User: user(2, models.RoleCrew), Channel: ch, Membership: member(models.MemberRoleMember)}
	assert.True(t, CanRead(inside))
	assert.True(t, CanPost(inside))
	assert.False(t, CanModerate(inside))
}

func TestVesselChannel(t *testing.T) {
	ch := channel(models.ChannelVessel)
	ch.VesselID = vessel(7)

	aboard := user(2, models.RoleCrew)
	aboard.VesselID = vessel(7)
	ashore := user(3, models.RoleCrew)
	ashore.VesselID = vessel(8)

	assert.True(t, CanPost(Access{User: aboard, Channel: ch}))
	assert.False(t, CanPost(Access{User: ashore, Channel: ch}))
	assert.False(t, CanRead(Access{User: ashore, Channel: ch}))
	assert.True(t, CanPost(Access{User: user(4, models.RoleManager), Channel: ch}))
}

func TestHSEChannel(t *testing.T) {
	ch := channel(models.ChannelHSE)
	ch.VesselID = vessel(7)

	officer := user(2, models.RoleHSEOfficer)
	officer.VesselID = vessel(7)
	otherOfficer := user(3, models.RoleHSEOfficer)
	otherOfficer.VesselID = vessel(9)

	assert.True(t, CanPost(Access{User: officer, Channel: ch}))
	assert.False(t, CanPost(Access{User: otherOfficer, Channel: ch}))
	assert.True(t, CanRead(Access{User: otherOfficer, Channel: ch}))
	assert.True(t, CanPost(Access{User: user(4, models.RoleHSEManager), Channel: ch}))
	assert.False(t, CanPost(Access{User: user(5, models.RoleManager), Channel: ch}))
}

func TestManagementChannel(t *testing.T) {
	ch := channel(models.ChannelManagement)
	assert.True(t, CanPost(Access{User: user(2, models.RoleManager), Channel: ch}))
	assert.False(t, CanRead(Access{User: user(3, models.RoleDepartmentManager), Channel: ch}))
}

func TestAdminAlwaysWins(t *testing.T) {
	admin := user(1, models.RoleAdmin)
	for _, typ := range []models.ChannelType{
		models.ChannelTeam, models.ChannelVessel, models.ChannelDirect, models.ChannelHSE,
		models.ChannelAnnouncement, models.ChannelDepartment, models.ChannelManagement,
	} {
		a := Access{User: admin, Channel: channel(typ)}
		assert.True(t, CanPost(a), typ)
		assert.True(t, CanModerate(a), typ)
	}
}

func TestNoRuleMatchDeniesEverything(t *testing.T) {
	msg := &models.Message{ID: 1, ChannelID: 10, SenderID: 99}
	// crew with no assignment, department or membership
	crew := user(2, models.RoleCrew)
	// same role in another company
	foreign := user(2, models.RoleManager)
	foreign.CompanyID = 2

	for _, typ := range []models.ChannelType{
		models.ChannelTeam, models.ChannelVessel, models.ChannelDirect, models.ChannelHSE,
		models.ChannelAnnouncement, models.ChannelDepartment, models.ChannelManagement,
	} {
		ch := channel(typ)
		ch.VesselID = vessel(7)
		ch.Department = "deck"
		for _, u := range []models.Identity{crew, foreign} {
			a := Access{User: u, Channel: ch}
			assert.False(t, CanPost(a), typ)
			assert.False(t, CanModerate(a), typ)
			assert.False(t, CanEdit(a, msg), typ)
			assert.False(t, CanPin(a, msg), typ)
			assert.False(t, CanDelete(a, msg), typ)
		}
	}
}

func TestInactiveChannelDenied(t *testing.T) {
	ch := channel(models.ChannelTeam)
	ch.IsActive = false
	a := Access{User: user(1, models.RoleAdmin), Channel: ch, Membership: member(models.MemberRoleAdmin)}
	assert.False(t, CanRead(a))
	assert.False(t, CanPost(a))
}

func TestMessageOwnership(t *testing.T) {
	ch := channel(models.ChannelTeam)
	own := &models.Message{ID: 1, ChannelID: 10, SenderID: 2}
	other := &models.Message{ID: 2, ChannelID: 10, SenderID: 3}
	deleted := &models.Message{ID: 3, ChannelID: 10, SenderID: 2, IsDeleted: true}

	a := Access{User: user(2, models.RoleCrew), Channel: ch, Membership: member(models.MemberRoleMember)}
	assert.True(t, CanEdit(a, own))
	assert.True(t, CanDelete(a, own))
	assert.False(t, CanEdit(a, other))
	assert.False(t, CanDelete(a, other))
	assert.False(t, CanEdit(a, deleted))
	assert.False(t, CanDelete(a, deleted))
	assert.False(t, CanReact(a, deleted))

	mod := Access{User: user(4, models.RoleCrew), Channel: ch, Membership: member(models.MemberRoleModerator)}
	assert.True(t, CanDelete(mod, other))
	assert.True(t, CanPin(mod, other))
	assert.False(t, CanEdit(mod, other))
	assert.False(t, CanPin(mod, deleted))
}

func TestSenderKeepsOwnershipAfterLeaving(t *testing.T) {
	ch := channel(models.ChannelTeam)
	own := &models.Message{ID: 1, ChannelID: 10, SenderID: 2}
	left := Access{User: user(2, models.RoleCrew), Channel: ch}

	assert.False(t, CanRead(left))
	assert.True(t, CanEdit(left, own))
	assert.True(t, CanDelete(left, own))
	assert.False(t, CanReact(left, own))
	assert.False(t, CanPin(left, own))

	archived := channel(models.ChannelTeam)
	archived.IsArchived = true
	assert.False(t, CanEdit(Access{User: user(2, models.RoleCrew), Channel: archived}, own))
}

func TestDirectChannelDeleteIsSenderOnly(t *testing.T) {
	ch := channel(models.ChannelDirect)
	msg := &models.Message{ID: 1, ChannelID: 10, SenderID: 2}
	admin := Access{User: user(1, models.RoleAdmin), Channel: ch, Membership: member(models.MemberRoleMember)}
	assert.False(t, CanDelete(admin, msg))
	sender := Access{User: user(2, models.RoleCrew), Channel: ch, Membership: member(models.MemberRoleMember)}
	assert.True(t, CanDelete(sender, msg))
}

func TestCanJoin(t *testing.T) {
	team := channel(models.ChannelTeam)
	assert.True(t, CanJoin(Access{User: user(2, models.RoleCrew), Channel: team}))
	assert.False(t, CanJoin(Access{User: user(2, models.RoleCrew), Channel: team, Membership: member(models.MemberRoleMember)}))

	private := channel(models.ChannelTeam)
	private.IsPrivate = true
	assert.False(t, CanJoin(Access{User: user(2, models.RoleCrew), Channel: private}))

	mgmt := channel(models.ChannelManagement)
	assert.False(t, CanJoin(Access{User: user(2, models.RoleCrew), Channel: mgmt}))
	assert.True(t, CanJoin(Access{User: user(2, models.RoleManager), Channel: mgmt}))
}

func TestAlertRules(t *testing.T) {
	officer := user(2, models.RoleHSEOfficer)
	officer.VesselID = vessel(7)

	assert.True(t, CanCreateAlert(officer, models.ScopeVessel, vessel(7)))
	assert.False(t, CanCreateAlert(officer, models.ScopeVessel, vessel(8)))
	assert.False(t, CanCreateAlert(officer, models.ScopeCompany, nil))
	assert.True(t, CanCreateAlert(user(3, models.RoleHSEManager), models.ScopeCompany, nil))
	assert.False(t, CanCreateAlert(user(4, models.RoleManager), models.ScopeCompany, nil))

	crew := user(5, models.RoleCrew)
	crew.Department = "deck"
	assert.True(t, CanAcknowledge(crew, 1, models.ScopeCompany, nil, ""))
	assert.True(t, CanAcknowledge(crew, 1, models.ScopeDepartment, nil, "deck"))
	assert.False(t, CanAcknowledge(crew, 1, models.ScopeVessel, vessel(7), ""))
	assert.False(t, CanAcknowledge(crew, 2, models.ScopeCompany, nil, ""))
}
