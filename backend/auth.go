package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-admin-console/gateway"
	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/session"
)

const (
	loginPath   = "/admin/auth/login"
	logoutPath  = "/admin/auth/logout"
	refreshPath = "/admin/auth/refresh"
	kickPath    = "/admin/auth/kick/"
)

type Auth struct {
	gw Doer
}

var _ session.Authenticator = (*Auth)(nil)

func NewAuth(gw Doer) *Auth {
	return &Auth{gw: gw}
}

func (a *Auth) Login(ctx context.Context, username, password string) (*session.LoginResult, error) {
	var res session.LoginResult
	err := a.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   map[string]string{"username": username, "password": password},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout never refreshes: an expired session has nothing left to end.
func (a *Auth) Logout(ctx context.Context) error {
	return a.gw.Do(ctx, &gateway.Request{
		Method:    http.MethodPost,
		Path:      logoutPath,
		NoRefresh: true,
	}, nil)
}

// Refresh has the gateway.RefreshFunc signature.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (gateway.TokenPair, error) {
	var pair gateway.TokenPair
	err := a.gw.Do(ctx, &gateway.Request{
		Method:    http.MethodPost,
		Path:      refreshPath,
		Body:      map[string]string{"refreshToken": refreshToken},
		NoRefresh: true,
	}, &pair)
	if err != nil {
		return gateway.TokenPair{}, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return gateway.TokenPair{}, errors.ErrEmptyTokens
	}
	return pair, nil
}

// Kick forces another user's sessions to end.
func (a *Auth) Kick(ctx context.Context, userID string) error {
	return a.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   kickPath + url.PathEscape(userID),
	}, nil)
}
