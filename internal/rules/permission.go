package rules

import "github.com/hackgods/salon-scheduling/internal/appointment"

// CanView reports whether v may read a. Clients see only their own
// appointments; stylists and admins see everything.
func CanView(v appointment.Viewer, a appointment.Appointment) bool {
	switch v.Role {
	case appointment.RoleClient:
		return a.ClientID == v.SubjectID
	case appointment.RoleStylist, appointment.RoleAdmin:
		return true
	}
	return false
}

// CanMutate reports whether v may change the interval or status of a.
func CanMutate(v appointment.Viewer, a appointment.Appointment) bool {
	switch v.Role {
	case appointment.RoleStylist:
		return a.StylistID == v.SubjectID
	case appointment.RoleAdmin:
		return true
	}
	return false
}
