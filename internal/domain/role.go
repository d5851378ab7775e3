package domain

// Roles carried in the bearer token.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
