package menu

import (
	"net/http"
	"slices"
	"sync"

	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FallbackView renders any component name the registry does not know.
const FallbackView = "ComingSoon"

// View renders a console page.
type View = http.Handler

// Loader produces a view on first use.
type Loader func() (View, error)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger routes the registry's diagnostics to logger.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry is the closed set of views the backend's component names may
// refer to.
type Registry struct {
	fallback string
	loaders  map[string]Loader
	logger   zerolog.Logger

	lock  sync.Mutex
	views map[string]View
}

// NewRegistry fails when the fallback is not itself registered.
func NewRegistry(fallback string, loaders map[string]Loader, opts ...RegistryOption) (*Registry, error) {
	if _, ok := loaders[fallback]; !ok {
		return nil, errors.Wrapf(errors.ErrUnknownFallback, "[Registry] %q", fallback)
	}
	r := &Registry{
		fallback: fallback,
		loaders:  loaders,
		logger:   log.Logger,
		views:    make(map[string]View),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the registered name to use for componentName. Empty and
// unknown names resolve to the fallback; unknown ones log a warning.
func (r *Registry) Resolve(componentName string) string {
	if componentName == "" {
		return r.fallback
	}
	if _, ok := r.loaders[componentName]; ok {
		return componentName
	}
	r.logger.Warn().Str("component", componentName).Str("fallback", r.fallback).Msg("unknown view component")
	return r.fallback
}

// Names lists the registered component names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// View returns a handler for componentName. The underlying view is loaded on
// the first request it serves.
func (r *Registry) View(componentName string) View {
	return &lazyView{registry: r, name: r.Resolve(componentName)}
}

// Load returns the memoized view for a resolved name. A failed load is retried
// on the next call.
func (r *Registry) Load(name string) (View, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if v, ok := r.views[name]; ok {
		return v, nil
	}
	loader, ok := r.loaders[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "[Registry] view %q", name)
	}
	v, err := loader()
	if err != nil {
		return nil, errors.Wrapf(err, "[Registry] load %q", name)
	}
	r.views[name] = v
	return v, nil
}

type lazyView struct {
	registry *Registry
	name     string
}

func (v *lazyView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	view, err := v.registry.Load(v.name)
	if err != nil {
		v.registry.logger.Error().Err(err).Str("component", v.name).Msg("view unavailable")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	view.ServeHTTP(w, r)
}
