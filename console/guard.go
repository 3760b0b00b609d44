package console

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// GuardMiddleware decides every navigation before it reaches a route:
// unauthenticated requests go to the login page, the first authenticated
// request of a session loads the menus, and menu routes check their roles.
func (s *Server) GuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		authenticated := s.session.IsAuthenticated()

		if path == RouteLogin {
			if authenticated && r.Method == http.MethodGet {
				http.Redirect(w, r, RouteHome, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if publicRoutes[path] {
			next.ServeHTTP(w, r)
			return
		}
		if !authenticated {
			s.denyUnauthenticated(w, r)
			return
		}

		if !s.menus.IsLoaded() {
			if _, err := s.menus.LoadMenus(r.Context()); err != nil {
				// A session without a usable menu cannot navigate anywhere.
				log.Warn().Err(err).Msg("Guard: menu load failed, ending session")
				s.session.Logout(r.Context(), s.auth)
				s.denyUnauthenticated(w, r)
				return
			}
		}

		if meta, ok := s.router.Match(r); ok && len(meta.Roles) > 0 && !s.session.HasAnyRole(meta.Roles...) {
			log.Info().Str("path", path).Strs("roles", meta.Roles).Msg("Guard: role check failed")
			if isAPIRequest(r) {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			http.Redirect(w, r, RouteHome, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	http.Redirect(w, r, RouteLogin, http.StatusFound)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, apiPrefix) || wantsJSON(r)
}
