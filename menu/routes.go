package menu

import (
	"maps"
	"slices"
	"strings"

	"github.com/jrsteele09/go-admin-console/internal/utils"
)

const (
	// ParentRoute is the layout route every generated route is attached to.
	ParentRoute = "main"
	// NotFoundRoute is the name of the catch-all route.
	NotFoundRoute = "not-found"
	// RootPath is where the catch-all sends unmatched paths.
	RootPath = "/"

	defaultIcon = "Grid"
)

// RouteMeta travels with a route unchanged from the node it came from.
type RouteMeta struct {
	Title string         `json:"title"`
	Icon  string         `json:"icon,omitempty"`
	Roles []string       `json:"roles"`
	Extra map[string]any `json:"extra,omitempty"`
}

// RouteInfo is an entry of the path lookup table.
type RouteInfo struct {
	Path          string    `json:"path"`
	Name          string    `json:"name"`
	ComponentName string    `json:"componentName"`
	Meta          RouteMeta `json:"meta"`
}

// Route is a materialized route ready to be registered.
type Route struct {
	Path          string
	Name          string
	ComponentName string
	View          View
	Meta          RouteMeta
}

// DisplayNode is one entry of the sidebar menu.
type DisplayNode struct {
	ID            string        `json:"id"`
	Path          string        `json:"path"`
	Title         string        `json:"title"`
	Icon          string        `json:"icon"`
	ComponentName string        `json:"componentName,omitempty"`
	Children      []DisplayNode `json:"children,omitempty"`
}

// metaOf builds a node's route meta. Keys of the node's own meta override the
// derived title, icon and roles; anything else lands in Extra.
func metaOf(n Node) RouteMeta {
	meta := RouteMeta{
		Title: n.Name,
		Icon:  n.Icon,
		Roles: slices.Clone(n.Roles),
	}
	if meta.Roles == nil {
		meta.Roles = []string{}
	}

	extra := maps.Clone(n.Meta)
	if v, ok := extra["title"].(string); ok {
		meta.Title = v
		delete(extra, "title")
	}
	if v, ok := extra["icon"].(string); ok {
		meta.Icon = v
		delete(extra, "icon")
	}
	if v, ok := extra["roles"]; ok {
		if roles := utils.ToStringSlice(v); roles != nil {
			meta.Roles = roles
		}
		delete(extra, "roles")
	}
	if len(extra) > 0 {
		meta.Extra = extra
	}
	return meta
}

// BuildRouteMap indexes every node with a path and a component by path.
func BuildRouteMap(nodes []Node) map[string]RouteInfo {
	table := make(map[string]RouteInfo)
	var visit func(n Node)
	visit = func(n Node) {
		if n.Path != "" && n.Routable() {
			table[n.Path] = RouteInfo{
				Path:          n.Path,
				Name:          n.Name,
				ComponentName: n.ComponentName,
				Meta:          metaOf(n),
			}
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, n := range nodes {
		visit(n)
	}
	return table
}

// FormatMenus derives the display tree, sorting every level.
func FormatMenus(nodes []Node) []DisplayNode {
	sorted := SortNodes(nodes)
	out := make([]DisplayNode, 0, len(sorted))
	for _, n := range sorted {
		d := DisplayNode{
			ID:            n.ID,
			Path:          n.Path,
			Title:         n.Name,
			Icon:          n.Icon,
			ComponentName: n.ComponentName,
		}
		if d.Icon == "" {
			d.Icon = defaultIcon
		}
		if len(n.Children) > 0 {
			d.Children = FormatMenus(n.Children)
		}
		out = append(out, d)
	}
	return out
}

// GenerateRoutes walks the tree depth first in display order and returns one
// route per node with a component. Paths are used as the backend sent them;
// nesting only feeds the fallback route name.
func GenerateRoutes(nodes []Node, view func(componentName string) View) []Route {
	var routes []Route
	var visit func(n Node, parentPath string)
	visit = func(n Node, parentPath string) {
		fullPath := n.Path
		if parentPath != "" {
			fullPath = parentPath + "/" + strings.TrimLeft(n.Path, "/")
		}

		if n.Routable() {
			name := n.Name
			if name == "" {
				name = fullPath
			}
			routes = append(routes, Route{
				Path:          n.Path,
				Name:          name,
				ComponentName: n.ComponentName,
				View:          view(n.ComponentName),
				Meta:          metaOf(n),
			})
		}

		for _, c := range SortNodes(n.Children) {
			visit(c, fullPath)
		}
	}
	for _, n := range SortNodes(nodes) {
		visit(n, "")
	}
	return routes
}
