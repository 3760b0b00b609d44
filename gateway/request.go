package gateway

import (
	"net/http"
	"net/url"
)

// Request describes one backend call. The replay flag is owned by the
// gateway: it is set on the single resubmission that follows a refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// NoRefresh surfaces 401/403 directly instead of refreshing. The auth
	// endpoints use it so a refresh or logout never triggers another refresh.
	NoRefresh bool

	replay bool
}

// IsReplay reports whether this request is the post-refresh resubmission.
func (r *Request) IsReplay() bool {
	return r.replay
}

func (r *Request) replayed() *Request {
	cp := *r
	cp.replay = true
	return &cp
}
