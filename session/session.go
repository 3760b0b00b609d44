// Package session holds the operator's credentials and profile, mirrored to
// durable storage. A Session is created by the application root and handed
// to every component that needs it; it is only mutated by Establish (login),
// ReplaceTokens (refresh) and Clear (logout).
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/storage"
)

// Durable storage keys.
const (
	KeyAccessToken        = "accessToken"
	KeyRefreshToken       = "refreshToken"
	KeyUserInfo           = "userInfo"
	KeyRememberedUsername = "rememberedUsername"
)

// Profile is the part of the backend's user record the console reads. The
// full record is kept verbatim, see Session.ProfileJSON.
type Profile struct {
	UserID      string   `json:"userId,omitempty"`
	Username    string   `json:"username,omitempty"`
	TenantID    string   `json:"tenantId,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	UserInfo     json.RawMessage `json:"userInfo,omitempty"`
}

// Authenticator is the backend side of login and logout.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context) error
}

type Session struct {
	store storage.Store

	lock               sync.RWMutex
	token              *oauth2.Token
	profile            Profile
	profileJSON        json.RawMessage
	rememberedUsername string

	hookLock sync.Mutex
	onClear  []func(context.Context)
}

func New(store storage.Store) *Session {
	return &Session{store: store}
}

// Restore loads whatever a previous run left in durable storage. A stored
// profile that no longer decodes is treated as empty.
func (s *Session) Restore(ctx context.Context) error {
	access, _, err := s.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return fmt.Errorf("[Session Restore] access token: %w", err)
	}
	refresh, _, err := s.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("[Session Restore] refresh token: %w", err)
	}
	info, _, err := s.store.Get(ctx, KeyUserInfo)
	if err != nil {
		return fmt.Errorf("[Session Restore] user info: %w", err)
	}
	remembered, _, err := s.store.Get(ctx, KeyRememberedUsername)
	if err != nil {
		return fmt.Errorf("[Session Restore] remembered username: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = newToken(access, refresh)
	s.profile, s.profileJSON = decodeProfile([]byte(info))
	s.rememberedUsername = remembered
	return nil
}

// Login authenticates against the backend and establishes the session.
func (s *Session) Login(ctx context.Context, auth Authenticator, username, password string, remember bool) (*LoginResult, error) {
	res, err := auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.Establish(ctx, res, username, remember); err != nil {
		return nil, err
	}
	log.Info().Str("username", username).Msg("Session established")
	return res, nil
}

// Establish stores a fresh login. When remember is false any previously
// remembered username is forgotten.
func (s *Session) Establish(ctx context.Context, res *LoginResult, username string, remember bool) error {
	if res == nil || res.AccessToken == "" || res.RefreshToken == "" {
		return errors.ErrEmptyTokens
	}
	profile, raw := decodeProfile(res.UserInfo)

	values := map[string]string{
		KeyAccessToken:  res.AccessToken,
		KeyRefreshToken: res.RefreshToken,
		KeyUserInfo:     string(raw),
	}
	if remember {
		values[KeyRememberedUsername] = username
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.store.SetMany(ctx, values); err != nil {
		return fmt.Errorf("[Session Establish] persist: %w", err)
	}
	if !remember {
		if err := s.store.Delete(ctx, KeyRememberedUsername); err != nil {
			return fmt.Errorf("[Session Establish] forget username: %w", err)
		}
		username = ""
	}
	s.token = newToken(res.AccessToken, res.RefreshToken)
	s.profile, s.profileJSON = profile, raw
	s.rememberedUsername = username
	return nil
}

// ReplaceTokens swaps both credentials after a refresh. Storage is written
// before the in-memory pair changes and both happen under one lock, so no
// reader sees an access token from one refresh with a refresh token from
// another. On a storage failure the session keeps its previous pair.
func (s *Session) ReplaceTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return errors.ErrEmptyTokens
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.store.SetMany(ctx, map[string]string{
		KeyAccessToken:  accessToken,
		KeyRefreshToken: refreshToken,
	}); err != nil {
		return fmt.Errorf("[Session ReplaceTokens] persist: %w", err)
	}
	s.token = newToken(accessToken, refreshToken)
	return nil
}

// Clear drops credentials and profile from memory and storage, then runs
// the OnClear hooks. The remembered username survives.
func (s *Session) Clear(ctx context.Context) error {
	s.lock.Lock()
	s.token = nil
	s.profile, s.profileJSON = Profile{}, nil
	err := s.store.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUserInfo)
	s.lock.Unlock()

	s.hookLock.Lock()
	hooks := slices.Clone(s.onClear)
	s.hookLock.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}

	if err != nil {
		return fmt.Errorf("[Session Clear] delete: %w", err)
	}
	return nil
}

// Logout tells the backend the session is over and clears local state. The
// backend call is best effort; its failure never keeps the session alive.
func (s *Session) Logout(ctx context.Context, auth Authenticator) {
	if auth != nil && s.IsAuthenticated() {
		if err := auth.Logout(ctx); err != nil {
			log.Debug().Err(err).Msg("Logout: backend logout failed")
		}
	}
	if err := s.Clear(ctx); err != nil {
		log.Err(err).Msg("Logout: failed to clear session storage")
	}
}

// OnClear registers a hook run after every Clear.
func (s *Session) OnClear(fn func(context.Context)) {
	s.hookLock.Lock()
	defer s.hookLock.Unlock()
	s.onClear = append(s.onClear, fn)
}

func (s *Session) AccessToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

func (s *Session) RefreshToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.RefreshToken
}

// Token returns a copy of the current credential pair, nil when logged out.
func (s *Session) Token() *oauth2.Token {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

func (s *Session) Profile() Profile {
	s.lock.RLock()
	defer s.lock.RUnlock()
	p := s.profile
	p.Roles = slices.Clone(p.Roles)
	p.Permissions = slices.Clone(p.Permissions)
	return p
}

// ProfileJSON returns the user record exactly as the backend sent it.
func (s *Session) ProfileJSON() json.RawMessage {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return slices.Clone(s.profileJSON)
}

func (s *Session) Username() string {
	return s.Profile().Username
}

func (s *Session) RememberedUsername() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.rememberedUsername
}

// Roles returns the profile roles, falling back to a roles claim carried by
// the access token.
func (s *Session) Roles() []string {
	if roles := s.Profile().Roles; len(roles) > 0 {
		return roles
	}
	return rolesOf(s.AccessToken())
}

// HasAnyRole reports whether the operator holds at least one of required.
// An empty requirement is always satisfied.
func (s *Session) HasAnyRole(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	held := s.Roles()
	for _, r := range required {
		if slices.Contains(held, r) {
			return true
		}
	}
	return false
}

// AccessTokenExpiry reports the exp claim of the access token when it is a JWT.
func (s *Session) AccessTokenExpiry() (time.Time, bool) {
	t := s.Token()
	if t == nil || t.Expiry.IsZero() {
		return time.Time{}, false
	}
	return t.Expiry, true
}

func newToken(access, refresh string) *oauth2.Token {
	if access == "" && refresh == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       expiryOf(access),
	}
}

func decodeProfile(raw []byte) (Profile, json.RawMessage) {
	if len(raw) == 0 || string(raw) == "null" {
		return Profile{}, json.RawMessage("{}")
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Msg("Session: discarding undecodable user info")
		return Profile{}, json.RawMessage("{}")
	}
	return p, slices.Clone(json.RawMessage(raw))
}
