package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-admin-console/gateway"
)

// Operation names a CRUD call whose path can be overridden.
type Operation string

const (
	OpPage   Operation = "page"
	OpByID   Operation = "byId"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PageResult is one page of a paged listing.
type PageResult struct {
	Records []json.RawMessage `json:"records"`
	Total   int64             `json:"total"`
	Size    int64             `json:"size"`
	Current int64             `json:"current"`
}

type ResourceOption func(*Resource)

// WithPath replaces the default path of op. ByID and Delete still append the id.
func WithPath(op Operation, path string) ResourceOption {
	return func(r *Resource) {
		r.paths[op] = path
	}
}

// Resource is the standard CRUD binding for a backend prefix.
type Resource struct {
	gw     Doer
	prefix string
	paths  map[Operation]string
}

func NewResource(gw Doer, prefix string, opts ...ResourceOption) *Resource {
	r := &Resource{
		gw:     gw,
		prefix: NormalizePrefix(prefix),
		paths:  map[Operation]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizePrefix gives prefix a leading slash and drops a trailing one.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func (r *Resource) Prefix() string {
	return r.prefix
}

func (r *Resource) path(op Operation, fallback string) string {
	if p, ok := r.paths[op]; ok {
		return p
	}
	return fallback
}

func (r *Resource) Page(ctx context.Context, params url.Values) (*PageResult, error) {
	var page PageResult
	err := r.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   r.path(OpPage, r.prefix+"/page"),
		Query:  params,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *Resource) ByID(ctx context.Context, id string, out any) error {
	return r.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   r.path(OpByID, r.prefix) + "/" + url.PathEscape(id),
	}, out)
}

func (r *Resource) Create(ctx context.Context, body, out any) error {
	return r.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   r.path(OpCreate, r.prefix),
		Body:   body,
	}, out)
}

func (r *Resource) Update(ctx context.Context, body, out any) error {
	return r.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPut,
		Path:   r.path(OpUpdate, r.prefix),
		Body:   body,
	}, out)
}

func (r *Resource) Delete(ctx context.Context, id string) error {
	return r.gw.Do(ctx, &gateway.Request{
		Method: http.MethodDelete,
		Path:   r.path(OpDelete, r.prefix) + "/" + url.PathEscape(id),
	}, nil)
}
