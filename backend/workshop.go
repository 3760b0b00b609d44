package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-admin-console/gateway"
)

// Workshop lists AI applications by category.
type Workshop struct {
	gw Doer
}

func NewWorkshop(gw Doer) *Workshop {
	return &Workshop{gw: gw}
}

func (w *Workshop) Categories(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := w.gw.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/ai-workshop/categories"}, &out)
	return out, err
}

func (w *Workshop) Applications(ctx context.Context, typeID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := w.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   "/ai-workshop/applications",
		Query:  url.Values{"typeId": {typeID}},
	}, &out)
	return out, err
}

func (w *Workshop) Application(ctx context.Context, appID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := w.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   "/ai-workshop/application/" + url.PathEscape(appID),
	}, &out)
	return out, err
}
