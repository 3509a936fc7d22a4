package model

// Caller is the already-authenticated identity the host hands to every core
// entry point. The core never authenticates; it only scopes data access by
// tenant.
type Caller struct {
	TenantID string
	UserID   string
}
