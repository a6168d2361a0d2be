package models

type Role string

const (
	RoleAdmin             Role = "admin"
	RoleManager           Role = "manager"
	RoleHSEManager        Role = "hse_manager"
	RoleHSEOfficer        Role = "hse_officer"
	RoleDepartmentManager Role = "department_manager"
	RoleTechnician        Role = "technician"
	RoleCrew              Role = "crew"
)

// IsManagerTier reports whether r is one of the fleet-wide management roles.
func (r Role) IsManagerTier() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleHSEManager:
		return true
	}
	return false
}

// Identity is the authenticated user a connection acts as.
type Identity struct {
	UserID     int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	CompanyID  int64  `json:"companyId"`
	Department string `json:"department,omitempty"`
	VesselID   *int64 `json:"vesselId,omitempty"`
}

func (i Identity) AssignedTo(vesselID *int64) bool {
	return vesselID != nil && i.VesselID != nil && *i.VesselID == *vesselID
}
