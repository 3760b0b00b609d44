// Package menu turns the backend's navigation tree into a display menu and
// registered console routes, once per authenticated session.
package menu

import (
	"cmp"
	"maps"
	"slices"

	"github.com/jrsteele09/go-admin-console/internal/utils"
)

// Node is one entry of the navigation tree as the backend sends it.
type Node struct {
	ID            string         `json:"id"`
	ParentID      string         `json:"parentId,omitempty"`
	Name          string         `json:"name"`
	Type          int            `json:"type,omitempty"`
	Path          string         `json:"path,omitempty"`
	ComponentName string         `json:"componentName,omitempty"`
	Icon          string         `json:"icon,omitempty"`
	SortOrder     *int           `json:"sortOrder,omitempty"`
	Roles         []string       `json:"roles,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	Children      []Node         `json:"children,omitempty"`
}

// Routable reports whether the node names a component and so becomes a route.
func (n Node) Routable() bool {
	return n.ComponentName != ""
}

// SortNodes returns a copy of nodes ordered by SortOrder ascending, a missing
// order counting as 0. Equal keys keep the order the backend sent.
func SortNodes(nodes []Node) []Node {
	out := slices.Clone(nodes)
	slices.SortStableFunc(out, func(a, b Node) int {
		return cmp.Compare(utils.Value(a.SortOrder), utils.Value(b.SortOrder))
	})
	return out
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		n.Roles = slices.Clone(n.Roles)
		n.Meta = maps.Clone(n.Meta)
		if n.SortOrder != nil {
			n.SortOrder = utils.Ptr(*n.SortOrder)
		}
		n.Children = cloneNodes(n.Children)
		out[i] = n
	}
	return out
}
