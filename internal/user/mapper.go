package user

import "crewlink/internal/models"

func ConvertUserToIdentity(u *User) *models.Identity {
	return &models.Identity{
		UserID:     u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       models.Role(u.Role),
		CompanyID:  u.CompanyID,
		Department: u.Department,
		VesselID:   u.VesselID,
	}
}
