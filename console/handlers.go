package console

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/menu"
	"github.com/jrsteele09/go-admin-console/notify"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"

	loginFailedMessage = "Login failed"
)

var (
	jsonMediaType       = contenttype.NewMediaType("application/json")
	htmlMediaType       = contenttype.NewMediaType("text/html")
	formMediaType       = contenttype.NewMediaType("application/x-www-form-urlencoded")
	negotiatedResponses = []contenttype.MediaType{htmlMediaType, jsonMediaType}
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName  string `json:"appName"`
	Username string `json:"rememberedUsername"`
	Error    string `json:"error,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// PageData is what page.html renders.
type PageData struct {
	AppName       string
	Title         string
	Username      string
	Menus         []menu.DisplayNode
	Notifications []notify.Notification
	Message       string
	Body          string
}

// LoginPageHandler renders the login form, or describes it to a JSON client.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := LoginPageData{
			AppName:  s.config.GetAppName(),
			Username: s.session.RememberedUsername(),
			Error:    r.URL.Query().Get("error"),
		}
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, data)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.templates.render(w, templateLogin, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
		}
	}
}

// LoginSubmissionHandler accepts JSON or form credentials.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asJSON := false
		var req loginRequest

		ctype, err := contenttype.GetMediaType(r)
		switch {
		case err == nil && ctype.Matches(jsonMediaType):
			asJSON = true
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid login request")
				return
			}
		case err == nil && ctype.Matches(formMediaType), r.Header.Get("Content-Type") == "":
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form data", http.StatusBadRequest)
				return
			}
			req.Username = r.FormValue("username")
			req.Password = r.FormValue("password")
			req.Remember = r.FormValue("remember") != ""
		default:
			writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json or a form")
			return
		}

		fail := func(status int, message string) {
			if asJSON {
				writeJSONError(w, status, message)
				return
			}
			http.Redirect(w, r, RouteLogin+"?error="+url.QueryEscape(message), http.StatusSeeOther)
		}

		if req.Username == "" || req.Password == "" {
			fail(http.StatusBadRequest, "Username and password are required")
			return
		}

		if _, err := s.session.Login(r.Context(), s.auth, req.Username, req.Password, req.Remember); err != nil {
			log.Info().Err(err).Str("username", req.Username).Msg("Login failed")
			fail(http.StatusUnauthorized, loginErrorMessage(err))
			return
		}
		log.Info().Str("username", req.Username).Msg("Login succeeded")

		if asJSON {
			writeJSON(w, http.StatusOK, map[string]any{
				"profile":  s.session.ProfileJSON(),
				"redirect": RouteHome,
			})
			return
		}
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

func loginErrorMessage(err error) string {
	var appErr *gateway.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var te *gateway.TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return loginFailedMessage
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.Logout(r.Context(), s.auth)
		if wantsJSON(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"authenticated": s.session.IsAuthenticated(),
			"username":      s.session.Username(),
			"roles":         s.session.Roles(),
			"profile":       s.session.ProfileJSON(),
			"menusLoaded":   s.menus.IsLoaded(),
		}
		if exp, ok := s.session.AccessTokenExpiry(); ok {
			body["expiresAt"] = exp.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) MenusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"menus": s.menus.DisplayMenus(),
			"state": s.menus.State().String(),
		})
	}
}

func (s *Server) NotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.feed.Drain())
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// HomeHandler sends the operator to the configured home page once it is a
// registered menu route, and shows the bare layout otherwise.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		home := s.config.GetHomePath()
		if home != RouteHome && s.router.HasPath(home) {
			http.Redirect(w, r, home, http.StatusFound)
			return
		}
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, map[string]any{"menus": s.menus.DisplayMenus()})
			return
		}
		s.renderPage(w, r, PageData{Title: "Home"})
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, data PageData) {
	data.AppName = s.config.GetAppName()
	data.Username = s.session.Username()
	data.Menus = s.menus.DisplayMenus()
	data.Notifications = s.feed.Drain()

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.templates.render(w, templatePage, data); err != nil {
		log.Err(err).Str("path", r.URL.Path).Msg("Failed to render page template")
	}
}

func wantsJSON(r *http.Request) bool {
	if r.Header.Get("Accept") == "" {
		return false
	}
	accepted, _, err := contenttype.GetAcceptableMediaType(r, negotiatedResponses)
	if err != nil {
		return false
	}
	return accepted.Matches(jsonMediaType)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
