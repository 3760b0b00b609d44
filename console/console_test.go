package console_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-admin-console/backend"
	"github.com/jrsteele09/go-admin-console/console"
	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/menu"
	"github.com/jrsteele09/go-admin-console/notify"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/storage/storagefake"
)

const defaultNav = `[
	{"id":"1","name":"System","path":"/system","sortOrder":1,"children":[
		{"id":"11","name":"Users","path":"/user","componentName":"UserManagement","sortOrder":1},
		{"id":"12","name":"Roles","path":"/role","componentName":"RoleManagement","sortOrder":2,"roles":["superadmin"]}
	]},
	{"id":"2","name":"Reports","path":"/reports","componentName":"ReportCenter","sortOrder":2}
]`

type fakeBackend struct {
	lock      sync.Mutex
	nav       string
	navStatus int
	access    string
	refreshOK bool
	navCalls  int
	logouts   int
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.lock.Lock()
	defer b.lock.Unlock()
	fn(b)
}

func envelope(w http.ResponseWriter, status, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	defer b.lock.Unlock()

	authorized := r.Header.Get("Authorization") == "Bearer "+b.access
	switch r.URL.Path {
	case "/admin/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			envelope(w, http.StatusOK, 40001, "bad credentials", nil)
			return
		}
		envelope(w, http.StatusOK, 0, "", map[string]any{
			"accessToken":  b.access,
			"refreshToken": "R1",
			"userInfo":     map[string]any{"username": body["username"], "roles": []string{"admin"}},
		})
	case "/admin/auth/logout":
		b.logouts++
		envelope(w, http.StatusOK, 0, "", nil)
	case "/admin/auth/refresh":
		if !b.refreshOK {
			envelope(w, http.StatusUnauthorized, 401, "refresh expired", nil)
			return
		}
		b.access = "A2"
		envelope(w, http.StatusOK, 0, "", map[string]string{"accessToken": "A2", "refreshToken": "R2"})
	case "/menu/nav":
		b.navCalls++
		if b.navStatus != 0 {
			envelope(w, b.navStatus, 500, "menu service down", nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":` + b.nav + `}`))
	case "/user/page":
		if !authorized {
			envelope(w, http.StatusUnauthorized, 401, "token expired", nil)
			return
		}
		envelope(w, http.StatusOK, 0, "", map[string]any{"records": []map[string]string{{"id": "u1"}}, "total": 1})
	case "/user":
		if r.Method == http.MethodPost {
			envelope(w, http.StatusOK, 1002, "username exists", nil)
			return
		}
		envelope(w, http.StatusOK, 0, "", nil)
	default:
		http.NotFound(w, r)
	}
}

type harness struct {
	backend *fakeBackend
	session *session.Session
	feed    *notify.Feed
	server  *console.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := &fakeBackend{nav: defaultNav, access: "A1", refreshOK: true}
	api := httptest.NewServer(b)
	t.Cleanup(api.Close)

	t.Setenv("ENV", "TEST")
	t.Setenv("API_BASE_URL", api.URL)
	t.Setenv("HOME_PATH", "/user")
	cfg := config.New()

	sess := session.New(storagefake.NewFakeStore())
	feed := notify.NewFeed(10)
	gw := gateway.New(cfg, sess, feed)
	auth := backend.NewAuth(gw)
	gw.SetRefresher(auth.Refresh)
	gw.OnSessionExpired(func(ctx context.Context) {
		sess.Logout(ctx, auth)
	})

	srv, err := console.New(cfg, console.Deps{
		Session: sess,
		Gateway: gw,
		Auth:    auth,
		Feed:    feed,
		Metrics: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	return &harness{backend: b, session: sess, feed: feed, server: srv}
}

func (h *harness) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(target string) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, target, "", nil)
}

func (h *harness) getJSON(target string) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, target, "", map[string]string{"Accept": "application/json"})
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	rec := h.do(http.MethodPost, console.RouteLogin, `{"username":"root","password":"pw","remember":true}`,
		map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, h.session.IsAuthenticated())
}

func TestGuard_UnauthenticatedRedirectsToLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/user")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, console.RouteLogin, rec.Header().Get("Location"))

	rec = h.get(console.RouteAPIMenus)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "not authenticated")

	require.Equal(t, http.StatusOK, h.get(console.RouteHealth).Code)
	require.Equal(t, http.StatusOK, h.get(console.RouteLogin).Code)
	require.Zero(t, h.backend.navCalls)
}

func TestLogin_FormAndJSON(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, console.RouteLogin, url.Values{"username": {"root"}, "password": {"nope"}}.Encode(),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "error=bad+credentials")
	require.False(t, h.session.IsAuthenticated())

	rec = h.do(http.MethodPost, console.RouteLogin, `{"username":"root"}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, console.RouteLogin, "x", map[string]string{"Content-Type": "text/plain"})
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	h.login(t)

	rec = h.get(console.RouteLogin)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, console.RouteHome, rec.Header().Get("Location"))
}

func TestGuard_LoadsMenusAndRegistersRoutes(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.get(console.RouteHome)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/user", rec.Header().Get("Location"))
	require.True(t, h.server.Menus().IsLoaded())

	rec = h.getJSON("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"records":[{"id":"u1"}],"total":1,"size":0,"current":0}`, rec.Body.String())

	rec = h.get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<h1>Users</h1>")

	rec = h.getJSON("/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"title":"Reports","status":"coming soon"}`, rec.Body.String())

	rec = h.get("/does/not/exist")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, menu.RootPath, rec.Header().Get("Location"))

	rec = h.get(console.RouteAPIMenus)
	require.Equal(t, http.StatusOK, rec.Code)
	var menus struct {
		Menus []menu.DisplayNode `json:"menus"`
		State string             `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &menus))
	require.Equal(t, "loaded", menus.State)
	require.Len(t, menus.Menus, 2)
	require.Equal(t, "Grid", menus.Menus[0].Icon)

	require.Equal(t, 1, h.backend.navCalls)
}

func TestGuard_RoleCheckRedirectsHome(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.get("/role")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, console.RouteHome, rec.Header().Get("Location"))

	rec = h.getJSON("/role")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuard_MenuLoadFailureEndsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.set(func(b *fakeBackend) { b.navStatus = http.StatusInternalServerError })
	h.login(t)

	rec := h.get("/user")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, console.RouteLogin, rec.Header().Get("Location"))
	require.False(t, h.session.IsAuthenticated())
	require.Equal(t, menu.StateUnloaded, h.server.Menus().State())
	require.Equal(t, 1, h.backend.logouts)
}

func TestGuard_NullNavEndsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.set(func(b *fakeBackend) { b.nav = "null" })
	h.login(t)

	rec := h.getJSON("/user")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, h.session.IsAuthenticated())
}

func TestLogout_ResetsRoutes(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.Equal(t, http.StatusOK, h.getJSON("/user").Code)

	rec := h.do(http.MethodPost, console.RouteLogout, "", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.False(t, h.session.IsAuthenticated())
	require.Equal(t, menu.StateUnloaded, h.server.Menus().State())
	require.Equal(t, 1, h.backend.logouts)

	h.login(t)
	require.Equal(t, http.StatusOK, h.getJSON("/user").Code)
	require.Equal(t, 2, h.backend.navCalls)
}

func TestView_RefreshFailureInsideViewLogsOut(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.Equal(t, http.StatusOK, h.getJSON("/user").Code)

	h.backend.set(func(b *fakeBackend) {
		b.access = "rotated-elsewhere"
		b.refreshOK = false
	})

	rec := h.getJSON("/user")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, h.session.IsAuthenticated())
	require.Equal(t, menu.StateUnloaded, h.server.Menus().State())

	rec = h.get("/user")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, console.RouteLogin, rec.Header().Get("Location"))
}

func TestView_RefreshAndReplay(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.Equal(t, http.StatusOK, h.getJSON("/user").Code)

	h.backend.set(func(b *fakeBackend) { b.access = "stale" })
	rec := h.getJSON("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "A2", h.session.AccessToken())
	require.Equal(t, "R2", h.session.RefreshToken())
}

func TestView_AppErrorIsNotified(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.do(http.MethodPost, "/user", `{"username":"root"}`, map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "username exists")

	rec = h.get(console.RouteAPINotifications)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []notify.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	require.Equal(t, "username exists", notes[0].Message)

	rec = h.do(http.MethodPost, "/user", `not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_Endpoint(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rec := h.get(console.RouteAPISession)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Authenticated bool     `json:"authenticated"`
		Username      string   `json:"username"`
		Roles         []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Authenticated)
	require.Equal(t, "root", body.Username)
	require.Equal(t, []string{"admin"}, body.Roles)
}
