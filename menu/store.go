package menu

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State of the menu store.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Fetcher retrieves the current user's navigation tree.
type Fetcher func(ctx context.Context) ([]Node, error)

// RouteTable is the router the store registers generated routes with.
type RouteTable interface {
	AddRoute(parent string, route Route) error
	HasRoute(name string) bool
	AddCatchAll(name, redirect string) error
	ResetRoutes()
}

// EnsureNotFoundRoute adds the catch-all route unless it is already there.
func EnsureNotFoundRoute(table RouteTable) error {
	if table.HasRoute(NotFoundRoute) {
		return nil
	}
	return table.AddCatchAll(NotFoundRoute, RootPath)
}

type loaded struct {
	menus    []Node
	display  []DisplayNode
	routeMap map[string]RouteInfo
}

// Store owns the session's menu state and the routes derived from it.
type Store struct {
	fetch    Fetcher
	registry *Registry
	table    RouteTable
	flight   singleflight.Group

	lock       sync.RWMutex
	state      State
	generation uint64
	current    loaded
}

func NewStore(fetch Fetcher, registry *Registry, table RouteTable) *Store {
	return &Store{
		fetch:    fetch,
		registry: registry,
		table:    table,
	}
}

// LoadMenus fetches the navigation tree and registers its routes. Callers
// arriving while a load is in flight share its result. Once loaded the
// cached tree is returned until Reset.
func (s *Store) LoadMenus(ctx context.Context) ([]Node, error) {
	s.lock.RLock()
	if s.state == StateLoaded {
		menus := cloneNodes(s.current.menus)
		s.lock.RUnlock()
		return menus, nil
	}
	s.lock.RUnlock()

	ch := s.flight.DoChan("menus", func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneNodes(res.Val.([]Node)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) load(ctx context.Context) ([]Node, error) {
	s.lock.Lock()
	s.state = StateLoading
	generation := s.generation
	s.lock.Unlock()

	nav, err := s.fetch(ctx)
	if err == nil && nav == nil {
		err = errors.ErrInvalidNavTree
	}
	if err == nil {
		err = s.RegisterRoutes(nav)
	}
	if err != nil {
		s.fail(generation)
		log.Warn().Err(err).Msg("menu load failed")
		return nil, errors.Wrapf(err, "[Menu] load")
	}

	next := loaded{
		menus:    nav,
		display:  FormatMenus(nav),
		routeMap: BuildRouteMap(nav),
	}

	s.lock.Lock()
	if s.generation != generation {
		// Reset while fetching: the tree belongs to a session that is gone.
		s.lock.Unlock()
		s.table.ResetRoutes()
		return nil, errors.Wrapf(errors.ErrSessionExpired, "[Menu] load")
	}
	s.current = next
	s.state = StateLoaded
	s.lock.Unlock()

	log.Debug().Int("routes", len(next.routeMap)).Msg("menus loaded")
	return nav, nil
}

// fail drops the partial load, including any routes registered before the
// error. A Reset in the meantime already did both.
func (s *Store) fail(generation uint64) {
	s.lock.Lock()
	current := s.generation == generation
	if current {
		s.state = StateUnloaded
		s.current = loaded{}
	}
	s.lock.Unlock()

	if current {
		s.table.ResetRoutes()
	}
}

// RegisterRoutes adds one route per routable node under ParentRoute and then
// makes sure the catch-all exists. Calling it again adds no second catch-all.
func (s *Store) RegisterRoutes(nav []Node) error {
	for _, route := range GenerateRoutes(nav, s.registry.View) {
		if err := s.table.AddRoute(ParentRoute, route); err != nil {
			return errors.Wrapf(err, "[Menu] route %q", route.Name)
		}
	}
	return EnsureNotFoundRoute(s.table)
}

// Reset forgets everything derived from the last load and drops the
// registered routes.
func (s *Store) Reset() {
	s.lock.Lock()
	s.generation++
	s.state = StateUnloaded
	s.current = loaded{}
	s.lock.Unlock()

	s.table.ResetRoutes()
}

func (s *Store) Menus() []Node {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return cloneNodes(s.current.menus)
}

func (s *Store) DisplayMenus() []DisplayNode {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.current.display
}

// RouteByPath looks a path up in the table built from the raw tree.
func (s *Store) RouteByPath(path string) (RouteInfo, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	info, ok := s.current.routeMap[path]
	return info, ok
}

func (s *Store) IsLoaded() bool {
	return s.State() == StateLoaded
}

func (s *Store) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}
