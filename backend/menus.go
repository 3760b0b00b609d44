package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/menu"
)

// Menus is the menu resource plus its navigation endpoints.
type Menus struct {
	*Resource
	gw Doer
}

func NewMenus(gw Doer) *Menus {
	return &Menus{Resource: NewResource(gw, "/menu"), gw: gw}
}

// UserNav returns the navigation tree of the signed-in user.
func (m *Menus) UserNav(ctx context.Context) ([]menu.Node, error) {
	var nav []menu.Node
	if err := m.gw.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/menu/nav"}, &nav); err != nil {
		return nil, err
	}
	return nav, nil
}

// Tree returns the full menu tree for the management view.
func (m *Menus) Tree(ctx context.Context) ([]menu.Node, error) {
	var tree []menu.Node
	if err := m.gw.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/menu/tree"}, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (m *Menus) UpdateStatus(ctx context.Context, id string, status int) error {
	return m.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPut,
		Path:   "/menu/" + url.PathEscape(id) + "/status",
		Query:  url.Values{"status": {strconv.Itoa(status)}},
	}, nil)
}

func (m *Menus) Sort(ctx context.Context, parentID string, orderedIDs []string) error {
	return m.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPut,
		Path:   "/menu/sort",
		Body: map[string]any{
			"parentId":   parentID,
			"orderedIds": orderedIDs,
		},
	}, nil)
}
