package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-admin-console/internal/errors"
)

// refreshKey is the single slot of the refresh flight: at most one refresh
// runs at a time, every other caller joins it.
const refreshKey = "refresh"

func (c *Client) refresher() RefreshFunc {
	c.hookLock.RLock()
	defer c.hookLock.RUnlock()
	return c.refresh
}

func (c *Client) expiredHook() func(context.Context) {
	c.hookLock.RLock()
	defer c.hookLock.RUnlock()
	return c.onExpired
}

// awaitRefresh joins the in-flight refresh or starts one. sentWith is the
// access token the failed request carried: if the session already holds a
// different one, a refresh completed in the meantime and the caller can
// replay straight away.
func (c *Client) awaitRefresh(ctx context.Context, sentWith string) error {
	if current := c.tokens.AccessToken(); current != "" && current != sentWith {
		return nil
	}

	// The flight outlives the caller that started it; the other waiters
	// still need its outcome if that caller goes away.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(refreshKey, func() (any, error) {
		// A flight that finished between the check above and DoChan has
		// already rotated the pair.
		if current := c.tokens.AccessToken(); current != "" && current != sentWith {
			return nil, nil
		}
		// A failed flight already ended the session.
		if c.tokens.RefreshToken() == "" {
			return nil, errors.ErrNoRefreshToken
		}
		return nil, c.runRefresh(flightCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runRefresh performs the refresh call and swaps the pair. On failure the
// session is ended once, here, before any waiter resumes.
func (c *Client) runRefresh(ctx context.Context) error {
	err := c.exchange(ctx)
	if err != nil {
		c.metrics.refreshed("failure")
		log.Warn().Err(err).Msg("Gateway: token refresh failed, ending session")
		if fn := c.expiredHook(); fn != nil {
			fn(ctx)
		}
		return err
	}
	c.metrics.refreshed("success")
	log.Debug().Msg("Gateway: token pair refreshed")
	return nil
}

func (c *Client) exchange(ctx context.Context) error {
	fn := c.refresher()
	if fn == nil {
		return errors.ErrUnsupported
	}
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return errors.ErrNoRefreshToken
	}

	pair, err := fn(ctx, refreshToken)
	if err != nil {
		return errors.Wrapf(errors.ErrRefreshFailed, "%v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return errors.Wrapf(errors.ErrRefreshFailed, "%v", errors.ErrEmptyTokens)
	}
	if err := c.tokens.ReplaceTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return errors.Wrapf(errors.ErrRefreshFailed, "store tokens: %v", err)
	}
	return nil
}
