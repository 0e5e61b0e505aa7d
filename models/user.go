package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role is the role claim carried by a verified credential
type Role string

// Roles known to dispatch
const (
	RoleAdministrator Role = "Administrator"
	RoleDoctor        Role = "Doctor"
	RoleNurse         Role = "Nurse"
)

// StaffRoles are the roles allowed to see and act on dispatch traffic
var StaffRoles = []Role{RoleAdministrator, RoleDoctor, RoleNurse}

// IsStaff reports whether r is one of StaffRoles
func (r Role) IsStaff() bool {
	for _, s := range StaffRoles {
		if r == s {
			return true
		}
	}
	return false
}

// Identity is the verified caller attached to a request or connection
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// User holds the display fields read from the users collection. Users are
// owned by the account service; dispatch only reads them.
type User struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Username string             `json:"username" bson:"username"`
	Email    string             `json:"email" bson:"email"`
	Role     string             `json:"role" bson:"role"`
}
