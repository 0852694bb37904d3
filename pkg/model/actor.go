package model

// Actor is the opaque identity attached to every mutating operation.
// Credentials are validated upstream; this core only authorizes against
// ownership and role.
type Actor struct {
	ID   string
	Role string
}

const (
	RoleAdmin = "admin"
	RoleOwner = "parking-owner"
	RoleUser  = "user"

	// RoleSensor marks the trusted sensor integration. It may mutate
	// availability on any lot but carries no other privileges.
	RoleSensor = "sensor"
)

// Elevated reports whether the actor may mutate availability on lots it does
// not own.
func (a Actor) Elevated() bool {
	return a.Role == RoleAdmin || a.Role == RoleSensor
}

// CanManage reports whether the actor may perform owner-level mutations
// (edits, soft delete, review moderation targets use their own check).
func (a Actor) CanManage(ownerID string) bool {
	return a.Role == RoleAdmin || (a.ID != "" && a.ID == ownerID)
}
