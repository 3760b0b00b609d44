package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-admin-console/backend"
	"github.com/jrsteele09/go-admin-console/gateway"
	apperrors "github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/notify"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/jrsteele09/go-admin-console/storage/storagefake"
)

type testConfig struct {
	baseURL string
}

func (c testConfig) GetAPIBaseURL() string            { return c.baseURL }
func (c testConfig) GetRequestTimeout() time.Duration { return 5 * time.Second }
func (c testConfig) GetClientType() string            { return "admin" }

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

type harness struct {
	server  *httptest.Server
	store   *storagefake.FakeStore
	session *session.Session
	feed    *notify.Feed
	client  *gateway.Client
	auth    *backend.Auth
	expired atomic.Int32
}

func newHarness(t *testing.T, handler http.Handler, opts ...gateway.Option) *harness {
	t.Helper()
	h := &harness{
		server: httptest.NewServer(handler),
		store:  storagefake.NewFakeStore(),
		feed:   notify.NewFeed(10),
	}
	t.Cleanup(h.server.Close)

	h.session = session.New(h.store)
	h.client = gateway.New(testConfig{baseURL: h.server.URL}, h.session, h.feed, opts...)
	h.auth = backend.NewAuth(h.client)
	h.client.SetRefresher(h.auth.Refresh)
	h.client.OnSessionExpired(func(ctx context.Context) {
		h.expired.Add(1)
		_ = h.session.Clear(ctx)
	})
	return h
}

func (h *harness) establish(t *testing.T, access, refresh string) {
	t.Helper()
	err := h.session.Establish(context.Background(), &session.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		UserInfo:     json.RawMessage(`{"username":"root","roles":["admin"]}`),
	}, "root", false)
	require.NoError(t, err)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	var got *http.Request
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		writeEnvelope(w, http.StatusOK, 0, "ok", map[string]int{"total": 7})
	}))
	h.establish(t, "A1", "R1")

	var out struct {
		Total int `json:"total"`
	}
	err := h.client.Get(context.Background(), "/user/page", map[string][]string{"current": {"2"}}, &out)
	require.NoError(t, err)
	require.Equal(t, 7, out.Total)

	require.Equal(t, "/user/page", got.URL.Path)
	require.Equal(t, "2", got.URL.Query().Get("current"))
	require.Equal(t, "Bearer A1", got.Header.Get("Authorization"))
	require.Equal(t, "admin", got.Header.Get(gateway.HeaderClientType))
	require.NotEmpty(t, got.Header.Get(gateway.HeaderRequestID))
	require.Zero(t, h.feed.Len())
}

func TestClient_NoTokenSendsNoAuthorization(t *testing.T) {
	var auth string
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, 0, "", nil)
	}))

	require.NoError(t, h.client.Post(context.Background(), "/admin/auth/login", map[string]string{"username": "u"}, nil))
	require.Empty(t, auth)
}

func TestClient_AppErrorNotifies(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/silent" {
			writeEnvelope(w, http.StatusOK, 500, "", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, 1001, "username taken", nil)
	}))
	h.establish(t, "A1", "R1")

	err := h.client.Post(context.Background(), "/user", map[string]string{"username": "root"}, nil)
	var appErr *gateway.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 1001, appErr.Code)
	require.Equal(t, "username taken", appErr.Message)

	err = h.client.Get(context.Background(), "/silent", nil, nil)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "request failed", appErr.Message)

	notes := h.feed.Drain()
	require.Len(t, notes, 2)
	require.Equal(t, notify.LevelError, notes[0].Level)
	require.Equal(t, "username taken", notes[0].Message)
	require.Equal(t, "request failed", notes[1].Message)
}

func TestClient_UnrecognizedEnvelope(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`{"code":0}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":1}`))
	}))

	for _, path := range []string{"/html", "/nocode"} {
		err := h.client.Get(context.Background(), path, nil, nil)
		require.ErrorIs(t, err, apperrors.ErrUnrecognizedEnvelope, path)
		require.False(t, gateway.IsAppError(err))
	}
	require.Zero(t, h.feed.Len())
}

func TestClient_ServerErrorPassesThrough(t *testing.T) {
	var hits atomic.Int32
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(w, http.StatusInternalServerError, 500, "db down", nil)
	}))
	h.establish(t, "A1", "R1")

	err := h.client.Get(context.Background(), "/user/1", nil, nil)
	require.Equal(t, http.StatusInternalServerError, gateway.StatusOf(err))
	var te *gateway.TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "db down", te.Message)
	require.Equal(t, int32(1), hits.Load())
	require.Zero(t, h.feed.Len())
}

func TestClient_TimeoutHasNoStatus(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}), gateway.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	h.establish(t, "A1", "R1")

	err := h.client.Get(context.Background(), "/slow", nil, nil)
	var te *gateway.TransportError
	require.ErrorAs(t, err, &te)
	require.Zero(t, te.Status)
	require.False(t, gateway.IsAuthExpired(err))
}

// tokenBackend accepts only currentAccess and counts refresh calls.
type tokenBackend struct {
	lock          sync.Mutex
	currentAccess string
	nextAccess    string
	nextRefresh   string
	refreshes     atomic.Int32
	dataHits      atomic.Int32
	refreshDelay  time.Duration
	refreshStatus int
	refreshSeen   []string
	replaySeen    []string
}

func (b *tokenBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/admin/auth/login":
		writeEnvelope(w, http.StatusOK, 0, "", map[string]any{
			"accessToken":  "A1",
			"refreshToken": "R1",
			"userInfo":     map[string]any{"username": "root", "roles": []string{"admin"}},
		})
	case "/admin/auth/refresh":
		b.refreshes.Add(1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		time.Sleep(b.refreshDelay)

		b.lock.Lock()
		b.refreshSeen = append(b.refreshSeen, body.RefreshToken)
		if b.refreshStatus != 0 {
			b.lock.Unlock()
			writeEnvelope(w, b.refreshStatus, 401, "refresh token expired", nil)
			return
		}
		b.currentAccess = b.nextAccess
		b.lock.Unlock()
		writeEnvelope(w, http.StatusOK, 0, "", map[string]string{
			"accessToken":  b.nextAccess,
			"refreshToken": b.nextRefresh,
		})
	default:
		b.dataHits.Add(1)
		b.lock.Lock()
		ok := bearer(r) == b.currentAccess
		b.replaySeen = append(b.replaySeen, bearer(r))
		b.lock.Unlock()
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, 401, "token expired", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, 0, "", map[string]string{"path": r.URL.Path})
	}
}

func TestClient_EndToEndRefreshAndReplay(t *testing.T) {
	b := &tokenBackend{currentAccess: "A1", nextAccess: "A2", nextRefresh: "R2"}
	h := newHarness(t, b)
	ctx := context.Background()

	_, err := h.session.Login(ctx, h.auth, "root", "pw", false)
	require.NoError(t, err)
	require.Equal(t, "A1", h.store.Values()[session.KeyAccessToken])

	b.lock.Lock()
	b.currentAccess = "expired"
	b.lock.Unlock()

	var out map[string]string
	require.NoError(t, h.client.Get(ctx, "/user/page", nil, &out))
	require.Equal(t, "/user/page", out["path"])

	values := h.store.Values()
	require.Equal(t, "A2", values[session.KeyAccessToken])
	require.Equal(t, "R2", values[session.KeyRefreshToken])
	require.Equal(t, []string{"R1"}, b.refreshSeen)
	require.Equal(t, []string{"A1", "A2"}, b.replaySeen)
	require.Equal(t, "A2", h.session.AccessToken())
	require.Equal(t, "R2", h.session.RefreshToken())
	require.Zero(t, h.expired.Load())
}

func TestClient_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	const n = 12
	b := &tokenBackend{currentAccess: "A1", nextAccess: "A2", nextRefresh: "R2", refreshDelay: 50 * time.Millisecond}
	reg := prometheus.NewRegistry()
	h := newHarness(t, b, gateway.WithMetrics(gateway.NewMetrics(reg)))
	h.establish(t, "A0", "R1")

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.client.Get(context.Background(), "/role/page", nil, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), b.refreshes.Load())
	require.Equal(t, "A2", h.session.AccessToken())
	require.Equal(t, "R2", h.session.RefreshToken())
	require.Zero(t, h.expired.Load())
	require.Equal(t, float64(1), counterValue(t, reg, "console_gateway_token_refreshes_total", "success"))
}

func TestClient_ReplaysAtMostOnce(t *testing.T) {
	var dataHits, refreshes atomic.Int32
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/auth/refresh" {
			refreshes.Add(1)
			writeEnvelope(w, http.StatusOK, 0, "", map[string]string{"accessToken": "A2", "refreshToken": "R2"})
			return
		}
		dataHits.Add(1)
		writeEnvelope(w, http.StatusForbidden, 403, "forbidden", nil)
	}))
	h.establish(t, "A1", "R1")

	err := h.client.Get(context.Background(), "/permission/page", nil, nil)
	require.Equal(t, http.StatusForbidden, gateway.StatusOf(err))
	require.Equal(t, int32(2), dataHits.Load())
	require.Equal(t, int32(1), refreshes.Load())
	require.Zero(t, h.expired.Load())
}

func TestClient_RefreshFailureEndsSessionOnce(t *testing.T) {
	const n = 8
	b := &tokenBackend{currentAccess: "A2", refreshStatus: http.StatusUnauthorized, refreshDelay: 50 * time.Millisecond}
	h := newHarness(t, b)
	h.establish(t, "A1", "R1")

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.client.Get(context.Background(), "/menu/tree", nil, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		var te *gateway.TransportError
		require.ErrorAs(t, err, &te)
		require.Equal(t, http.StatusUnauthorized, te.Status)
		require.Equal(t, "token expired", te.Message, "caller sees the original error")
	}
	require.Equal(t, int32(1), h.expired.Load())
	require.False(t, h.session.IsAuthenticated())
	require.Empty(t, h.store.Values()[session.KeyAccessToken])
	require.Equal(t, int32(1), b.refreshes.Load())
}

func TestClient_NoRefreshRequestSurfaces401(t *testing.T) {
	b := &tokenBackend{currentAccess: "other", nextAccess: "A2", nextRefresh: "R2"}
	h := newHarness(t, b)
	h.establish(t, "A1", "R1")

	err := h.client.Do(context.Background(), &gateway.Request{Method: http.MethodGet, Path: "/x", NoRefresh: true}, nil)
	require.True(t, gateway.IsAuthExpired(err))
	require.Zero(t, b.refreshes.Load())
	require.Equal(t, "A1", h.session.AccessToken())
}

func TestClient_NoRefreshTokenSurfaces401(t *testing.T) {
	b := &tokenBackend{currentAccess: "other"}
	h := newHarness(t, b)

	err := h.client.Get(context.Background(), "/x", nil, nil)
	require.True(t, gateway.IsAuthExpired(err))
	require.Zero(t, b.refreshes.Load())
	require.Zero(t, h.expired.Load())
}

func TestClient_WithoutRefresherSurfaces401(t *testing.T) {
	b := &tokenBackend{currentAccess: "other"}
	h := newHarness(t, b)
	h.client.SetRefresher(nil)
	h.establish(t, "A1", "R1")

	err := h.client.Get(context.Background(), "/x", nil, nil)
	require.True(t, gateway.IsAuthExpired(err))
	require.Zero(t, b.refreshes.Load())
}

func TestClient_StorageFailureDuringRefreshKeepsOldPair(t *testing.T) {
	b := &tokenBackend{currentAccess: "A2", nextAccess: "A2", nextRefresh: "R2"}
	h := newHarness(t, b)
	h.establish(t, "A1", "R1")
	h.store.SetErr = apperrors.ErrInternal

	err := h.client.Get(context.Background(), "/x", nil, nil)
	require.True(t, gateway.IsAuthExpired(err))
	require.Equal(t, int32(1), h.expired.Load())
}
