package console

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/menu"
)

type contextKey string

const routeMetaKey contextKey = "route_meta"

// RouteMetaFrom returns the meta of the menu route serving the request.
func RouteMetaFrom(ctx context.Context) (menu.RouteMeta, bool) {
	meta, ok := ctx.Value(routeMetaKey).(menu.RouteMeta)
	return meta, ok
}

type layoutEntry struct {
	name     string
	path     string
	prefix   bool
	handler  http.Handler
	meta     menu.RouteMeta
	menuItem bool
}

var _ menu.RouteTable = (*Router)(nil)

// Router is the console's route table. Fixed routes live on the root
// router; menu routes live on a layout router reached through the root's
// ParentRoute. The layout router is rebuilt on every change and published
// whole, so a request keeps the table it started with.
type Router struct {
	root *mux.Router

	lock    sync.RWMutex
	base     []layoutEntry
	entries  []layoutEntry
	catchAll *layoutEntry
	layout   *mux.Router
}

func NewRouter() *Router {
	r := &Router{root: mux.NewRouter()}
	r.layout = r.build()
	return r
}

// Root is where fixed routes are registered. Register them before Mount.
func (r *Router) Root() *mux.Router {
	return r.root
}

// Mount attaches the layout under ParentRoute. Every path not claimed by a
// fixed route falls through to it.
func (r *Router) Mount() {
	r.root.PathPrefix("/").Handler(http.HandlerFunc(r.serveLayout)).Name(menu.ParentRoute)
}

// AddBase registers a layout route that survives ResetRoutes.
func (r *Router) AddBase(name, path string, h http.Handler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.base = append(r.base, layoutEntry{name: name, path: path, handler: h})
	r.layout = r.build()
}

func (r *Router) AddRoute(parent string, route menu.Route) error {
	if parent != menu.ParentRoute {
		return errors.Wrapf(errors.ErrUnknownParent, "[Router AddRoute] %q", parent)
	}
	path := route.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries = append(r.entries, layoutEntry{
		name:     route.Name,
		path:     path,
		handler:  route.View,
		meta:     route.Meta,
		menuItem: true,
	})
	r.layout = r.build()
	return nil
}

// HasRoute reports whether a route of that name is registered.
func (r *Router) HasRoute(name string) bool {
	if r.root.Get(name) != nil {
		return true
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.layout.Get(name) != nil
}

// AddCatchAll installs the redirect for unmatched layout paths. It always
// matches after every menu route, however many are added later.
func (r *Router) AddCatchAll(name, redirect string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.catchAll = &layoutEntry{
		name:    name,
		path:    "/",
		prefix:  true,
		handler: http.RedirectHandler(redirect, http.StatusFound),
	}
	r.layout = r.build()
	return nil
}

// ResetRoutes drops every menu route and the catch-all.
func (r *Router) ResetRoutes() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries = nil
	r.catchAll = nil
	r.layout = r.build()
}

// HasPath reports whether a menu route is registered for path.
func (r *Router) HasPath(path string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return slices.ContainsFunc(r.entries, func(e layoutEntry) bool {
		return e.menuItem && e.path == path
	})
}

// Match returns the menu route meta for req, if a menu route matches it.
func (r *Router) Match(req *http.Request) (menu.RouteMeta, bool) {
	var root mux.RouteMatch
	if r.root.Match(req, &root) && root.Route.GetName() != menu.ParentRoute {
		return menu.RouteMeta{}, false
	}

	var match mux.RouteMatch
	if !r.current().Match(req, &match) || match.Route == nil {
		return menu.RouteMeta{}, false
	}
	tpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return menu.RouteMeta{}, false
	}

	name := match.Route.GetName()

	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, e := range r.entries {
		if e.menuItem && e.path == tpl && e.name == name {
			return e.meta, true
		}
	}
	return menu.RouteMeta{}, false
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.root.ServeHTTP(w, req)
}

func (r *Router) current() *mux.Router {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.layout
}

// serveLayout dispatches on a snapshot: a view that ends the session, and
// with it resets the routes, never waits on itself.
func (r *Router) serveLayout(w http.ResponseWriter, req *http.Request) {
	r.current().ServeHTTP(w, req)
}

// build must be called with the lock held.
func (r *Router) build() *mux.Router {
	layout := mux.NewRouter()
	layout.NotFoundHandler = http.NotFoundHandler()
	all := slices.Concat(r.base, r.entries)
	if r.catchAll != nil {
		all = append(all, *r.catchAll)
	}
	for _, e := range all {
		h := e.handler
		if e.menuItem && h != nil {
			h = withMeta(h, e.meta)
		}
		var route *mux.Route
		if e.prefix {
			route = layout.PathPrefix(e.path)
		} else {
			route = layout.Path(e.path)
		}
		route.Handler(h).Name(e.name)
	}
	return layout
}

func withMeta(h http.Handler, meta menu.RouteMeta) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), routeMetaKey, meta)))
	})
}
