package hse

import "crewlink/internal/models"

// Rules holds the HSE vocabulary the messaging core defers to.
type Rules struct{}

func (Rules) IsValidScope(scope string) bool {
	switch models.AlertScope(scope) {
	case models.ScopeCompany, models.ScopeVessel, models.ScopeDepartment:
		return true
	}
	return false
}

func (Rules) IsValidSeverity(severity string) bool {
	switch Severity(severity) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Urgent reports whether alerts of this severity are also sent off-band.
func (s Severity) Urgent() bool {
	return s == SeverityHigh || s == SeverityCritical
}
