package models

// AlertScope is the audience of an HSE alert.
type AlertScope string

const (
	ScopeCompany    AlertScope = "company"
	ScopeVessel     AlertScope = "vessel"
	ScopeDepartment AlertScope = "department"
)
