package domain

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)
