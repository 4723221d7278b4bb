package models

// Role distinguishes the teacher account from student accounts.
// Valid values: "admin", "student".
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// AdminID is the fixed sentinel id of the single admin identity.
// The admin is never stored as a directory document; it only exists
// behind the hardcoded login shortcut.
const AdminID = "admin"

// UserProfile is a directory entry. Credentials are stored and compared
// in plaintext; this reproduces the client-trusted model of the
// classroom deployment and is deliberately not hardened here.
type UserProfile struct {
	ID          string `bson:"-" json:"id"`
	Username    string `bson:"username" json:"username"`
	Password    string `bson:"password" json:"password"`
	DisplayName string `bson:"displayName" json:"displayName"`
	Role        Role   `bson:"role" json:"role"`
	AvatarColor string `bson:"avatarColor" json:"avatarColor"`
}

// AdminProfile returns the fixed admin identity used by the admin/admin
// login shortcut. Constructed fresh on every call so callers cannot
// mutate shared state.
func AdminProfile() UserProfile {
	return UserProfile{
		ID:          AdminID,
		Username:    "admin",
		DisplayName: "Cô Giáo (Admin)",
		Role:        RoleAdmin,
		AvatarColor: "bg-purple-500",
	}
}
