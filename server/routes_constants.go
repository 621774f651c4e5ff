package server

// Route path constants
const (
	RouteIndex = "/"

	// Sign-in
	RouteCallback     = "/auth/callback"
	RouteAuthState    = "/auth/state"
	RouteAuthLogout   = "/auth/logout"
	RouteProfileRetry = "/auth/profile/retry"

	RouteHealth = "/health"
)
