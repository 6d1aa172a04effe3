// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/emberdb/goember/internal/query"
)

// AuthType indicates the type of authentication used to obtain an access token.
type AuthType int

const (
	// AuthTypeUnset lets the configuration infer the authenticator from the credentials it carries.
	AuthTypeUnset AuthType = iota
	// AuthTypeNone sends no Authorization header, for engines behind a trusted gateway.
	AuthTypeNone
	// AuthTypePassword exchanges a username and password for an access token.
	AuthTypePassword
	// AuthTypeToken uses a caller supplied access token as is.
	AuthTypeToken
	// AuthTypeClientCredentials exchanges a service account id and secret for an access token.
	AuthTypeClientCredentials
	// AuthTypeKeyPair exchanges a JWT signed with the service account private key for an access token.
	AuthTypeKeyPair
)

var authTypeNames = map[AuthType]string{
	AuthTypeUnset:             "",
	AuthTypeNone:              "none",
	AuthTypePassword:          "password",
	AuthTypeToken:             "token",
	AuthTypeClientCredentials: "client_credentials",
	AuthTypeKeyPair:           "keypair",
}

func (authType AuthType) String() string {
	if name, ok := authTypeNames[authType]; ok {
		return name
	}
	return "unknown"
}

func parseAuthType(value string) (AuthType, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	for t, n := range authTypeNames {
		if n != "" && n == name {
			return t, nil
		}
	}
	return AuthTypeUnset, &EmberError{
		Number:      ErrCodeUnknownAuthenticator,
		SQLState:    SQLStateInvalidAuthorization,
		Message:     errMsgUnknownAuthenticator,
		MessageArgs: []interface{}{value},
	}
}

// inferAuthType picks the authenticator matching the most specific
// credentials present in the config.
func inferAuthType(cfg *Config) AuthType {
	switch {
	case cfg.Token != "":
		return AuthTypeToken
	case cfg.ClientID != "" && cfg.PrivateKey != nil:
		return AuthTypeKeyPair
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		return AuthTypeClientCredentials
	case cfg.User != "":
		return AuthTypePassword
	}
	return AuthTypeNone
}

func validateAuthConfig(cfg *Config) error {
	switch cfg.Authenticator {
	case AuthTypePassword:
		if strings.TrimSpace(cfg.User) == "" {
			return ErrEmptyUsername
		}
		if cfg.Password == "" {
			return ErrEmptyPassword
		}
	case AuthTypeToken:
		if cfg.Token == "" {
			return invalidParameter("token", "")
		}
	case AuthTypeClientCredentials:
		if cfg.ClientID == "" {
			return invalidParameter("client_id", "")
		}
		if cfg.ClientSecret == "" {
			return invalidParameter("client_secret", "")
		}
	case AuthTypeKeyPair:
		if cfg.ClientID == "" {
			return invalidParameter("client_id", "")
		}
		if cfg.PrivateKey == nil {
			return invalidParameter("private_key", "")
		}
	case AuthTypeNone:
	default:
		return &EmberError{
			Number:      ErrCodeUnknownAuthenticator,
			SQLState:    SQLStateInvalidAuthorization,
			Message:     errMsgUnknownAuthenticator,
			MessageArgs: []interface{}{int(cfg.Authenticator)},
		}
	}
	return nil
}

// Credentials is the outcome of a successful authentication.
type Credentials struct {
	AccessToken string
	// ExpiresAt is zero for tokens without a known lifetime.
	ExpiresAt time.Time
	// SessionProperties are defaults the server assigned to the session at
	// login, applied before any property from the config.
	SessionProperties map[string]string
}

// tokenExpiryMargin renews tokens slightly before the server would reject them.
const tokenExpiryMargin = 30 * time.Second

func (c *Credentials) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Add(tokenExpiryMargin).Before(c.ExpiresAt)
}

func (c *Credentials) authorizationHeader() string {
	if c == nil || c.AccessToken == "" {
		return ""
	}
	return fmt.Sprintf(headerBearerToken, c.AccessToken)
}

// Authenticator obtains the credentials sent with every request of a
// connection. Invalidate drops whatever the authenticator remembers so that
// the next Authenticate asks the server again; it is called after the
// server rejects a token.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Credentials, error)
	Invalidate()
}

// newAuthenticator selects the authenticator for cfg.Authenticator. Login
// based authenticators are wrapped with a token cache keyed by host,
// principal and authenticator.
func newAuthenticator(cfg *Config, sr *emberRestful) (Authenticator, error) {
	var (
		inner     Authenticator
		principal string
	)
	switch cfg.Authenticator {
	case AuthTypeNone:
		return noneAuthenticator{}, nil
	case AuthTypeToken:
		return &tokenAuthenticator{token: cfg.Token}, nil
	case AuthTypePassword:
		inner = &passwordAuthenticator{sr: sr, user: cfg.User, password: cfg.Password}
		principal = cfg.User
	case AuthTypeClientCredentials:
		inner = &clientCredentialsAuthenticator{sr: sr, clientID: cfg.ClientID, clientSecret: cfg.ClientSecret}
		principal = cfg.ClientID
	case AuthTypeKeyPair:
		inner = &keyPairAuthenticator{sr: sr, clientID: cfg.ClientID, privateKey: cfg.PrivateKey, audience: sr.baseURL()}
		principal = cfg.ClientID
	default:
		return nil, validateAuthConfig(cfg)
	}
	cache := defaultTokenCache
	if cfg.ClientStoreTemporaryCredential == ConfigBoolTrue {
		cache = newKeyringTokenCache()
	}
	return &cachingAuthenticator{
		inner: inner,
		cache: cache,
		key:   buildCredentialsKey(cfg.Host, principal, cfg.Authenticator),
		now:   time.Now,
	}, nil
}

type noneAuthenticator struct{}

func (noneAuthenticator) Authenticate(context.Context) (*Credentials, error) {
	return &Credentials{}, nil
}

func (noneAuthenticator) Invalidate() {}

type tokenAuthenticator struct {
	token string
}

func (a *tokenAuthenticator) Authenticate(context.Context) (*Credentials, error) {
	return &Credentials{AccessToken: a.token}, nil
}

// Invalidate is a no-op: a rejected static token stays rejected.
func (a *tokenAuthenticator) Invalidate() {}

type passwordAuthenticator struct {
	sr       *emberRestful
	user     string
	password string
}

func (a *passwordAuthenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	body, err := json.Marshal(query.LoginRequest{Username: a.user, Password: a.password})
	if err != nil {
		return nil, err
	}
	headers := map[string]string{headerContentTypeKey: contentTypeApplicationJSON}
	logger.WithContext(ctx).Debugf("password login. user: %v", a.user)
	resp, err := a.sr.FuncPostAuth(ctx, a.sr, loginPath, headers, body, a.sr.LoginTimeout)
	if err != nil {
		return nil, err
	}
	return credentialsFromResponse(resp, time.Now()), nil
}

func (a *passwordAuthenticator) Invalidate() {}

type clientCredentialsAuthenticator struct {
	sr           *emberRestful
	clientID     string
	clientSecret string
}

func (a *clientCredentialsAuthenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	form := url.Values{}
	form.Add("grant_type", "client_credentials")
	form.Add("client_id", a.clientID)
	form.Add("client_secret", a.clientSecret)
	headers := map[string]string{headerContentTypeKey: contentTypeFormURLEncoded}
	logger.WithContext(ctx).Debugf("client credentials login. client_id: %v", a.clientID)
	resp, err := a.sr.FuncPostAuth(ctx, a.sr, tokenPath, headers, []byte(form.Encode()), a.sr.LoginTimeout)
	if err != nil {
		return nil, err
	}
	return credentialsFromResponse(resp, time.Now()), nil
}

func (a *clientCredentialsAuthenticator) Invalidate() {}

func credentialsFromResponse(resp *query.AuthResponse, issued time.Time) *Credentials {
	creds := &Credentials{
		AccessToken:       resp.AccessToken,
		SessionProperties: resp.SessionParameters,
	}
	if resp.ExpiresIn > 0 {
		creds.ExpiresAt = issued.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return creds
}

// cachingAuthenticator serves credentials from a token cache until they
// expire, so that connections to the same host share one login.
type cachingAuthenticator struct {
	mu    sync.Mutex
	inner Authenticator
	cache tokenCache
	key   string
	now   func() time.Time
}

func (a *cachingAuthenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if creds, ok := a.cache.get(a.key); ok && !creds.expired(a.now()) {
		return creds, nil
	}
	creds, err := a.inner.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	a.cache.set(a.key, creds)
	return creds, nil
}

func (a *cachingAuthenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.remove(a.key)
	a.inner.Invalidate()
}
