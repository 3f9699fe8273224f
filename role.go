package relay

// Role identifies who authored a message in the request context.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)
