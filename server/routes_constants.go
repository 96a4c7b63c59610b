package server

// Route path constants
const (
	// Auth routes
	RouteSignIn  = "/auth/signin"
	RouteSignUp  = "/auth/signup"
	RouteSignOut = "/auth/signout"

	// Dashboard routes (guarded)
	RouteHome            = "/"
	RouteSupplierImport  = "/suppliers/import"
	RouteProfile         = "/profile"
	RouteProfilePassword = "/profile/password"

	// Guard poll target
	RouteSessionCheck = "/session/check"

	// Operational routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Static asset routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)
