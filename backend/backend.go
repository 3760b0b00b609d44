// Package backend binds the admin backend's endpoints to the gateway. Each
// method assembles a path, method and parameters; behavior lives in the
// gateway.
package backend

import (
	"context"

	"github.com/jrsteele09/go-admin-console/gateway"
)

// Doer is the part of the gateway the bindings need.
type Doer interface {
	Do(ctx context.Context, req *gateway.Request, out any) error
}
