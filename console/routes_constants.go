package console

// Route path constants
const (
	RouteHome   = "/"
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	RouteAPISession       = "/api/session"
	RouteAPIMenus         = "/api/menus"
	RouteAPINotifications = "/api/notifications"

	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	apiPrefix = "/api/"
)

// publicRoutes are served without a session.
var publicRoutes = map[string]bool{
	RouteLogin:   true,
	RouteLogout:  true,
	RouteHealth:  true,
	RouteMetrics: true,
}
