package goember

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/emberdb/goember/internal/query"
	"github.com/golang-jwt/jwt/v5"
)

type postAuthCall struct {
	path    string
	headers map[string]string
	body    []byte
}

// authStub records FuncPostAuth calls and answers with resp.
type authStub struct {
	mu    sync.Mutex
	calls []postAuthCall
	resp  *query.AuthResponse
	err   error
}

func (s *authStub) postAuth(_ context.Context, _ *emberRestful, path string, headers map[string]string, body []byte, _ time.Duration) (*query.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, postAuthCall{path: path, headers: headers, body: body})
	return s.resp, s.err
}

func (s *authStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newStubRestful(stub *authStub) *emberRestful {
	return &emberRestful{Protocol: "https", Host: "acme.ember.test", Port: 443, FuncPostAuth: stub.postAuth}
}

func TestInferAuthType(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assertNilF(t, err)
	testcases := []struct {
		cfg  Config
		want AuthType
	}{
		{Config{}, AuthTypeNone},
		{Config{User: "u", Password: "p"}, AuthTypePassword},
		{Config{User: "u", Token: "t"}, AuthTypeToken},
		{Config{ClientID: "id", ClientSecret: "s"}, AuthTypeClientCredentials},
		{Config{ClientID: "id", PrivateKey: key}, AuthTypeKeyPair},
	}
	for _, tc := range testcases {
		cfg := tc.cfg
		assertEqualE(t, inferAuthType(&cfg), tc.want)
	}
}

func TestValidateAuthConfig(t *testing.T) {
	assertErrIsE(t, validateAuthConfig(&Config{Authenticator: AuthTypePassword}), ErrEmptyUsername)
	assertErrIsE(t, validateAuthConfig(&Config{Authenticator: AuthTypePassword, User: "u"}), ErrEmptyPassword)
	assertErrIsE(t, validateAuthConfig(&Config{Authenticator: AuthTypeToken}), &EmberError{Number: ErrCodeInvalidParameterValue})
	assertErrIsE(t, validateAuthConfig(&Config{Authenticator: AuthTypeClientCredentials, ClientID: "id"}), &EmberError{Number: ErrCodeInvalidParameterValue})
	assertErrIsE(t, validateAuthConfig(&Config{Authenticator: AuthTypeKeyPair, ClientID: "id"}), &EmberError{Number: ErrCodeInvalidParameterValue})
	assertErrIsE(t, validateAuthConfig(&Config{Authenticator: AuthType(42)}), &EmberError{Number: ErrCodeUnknownAuthenticator})
	assertNilE(t, validateAuthConfig(&Config{Authenticator: AuthTypeNone}))
}

func TestParseAuthType(t *testing.T) {
	at, err := parseAuthType(" Client_Credentials ")
	assertNilF(t, err)
	assertEqualE(t, at, AuthTypeClientCredentials)
	_, err = parseAuthType("saml")
	assertErrIsE(t, err, &EmberError{Number: ErrCodeUnknownAuthenticator})
	assertEqualE(t, AuthTypeKeyPair.String(), "keypair")
	assertEqualE(t, AuthType(99).String(), "unknown")
}

func TestPasswordAuthenticator(t *testing.T) {
	stub := &authStub{resp: &query.AuthResponse{
		AccessToken:       "abc",
		ExpiresIn:         600,
		SessionParameters: map[string]string{"time_zone": "UTC"},
	}}
	a := &passwordAuthenticator{sr: newStubRestful(stub), user: "alice", password: "secret"}
	before := time.Now()
	creds, err := a.Authenticate(context.Background())
	assertNilF(t, err)
	assertEqualE(t, creds.AccessToken, "abc")
	assertEqualE(t, creds.SessionProperties["time_zone"], "UTC")
	assertTrueE(t, creds.ExpiresAt.After(before.Add(9*time.Minute)))
	assertEqualE(t, creds.authorizationHeader(), "Bearer abc")

	assertEqualF(t, stub.count(), 1)
	call := stub.calls[0]
	assertEqualE(t, call.path, loginPath)
	assertEqualE(t, call.headers[headerContentTypeKey], contentTypeApplicationJSON)
	assertEqualE(t, string(call.body), `{"username":"alice","password":"secret"}`)
}

func TestClientCredentialsAuthenticator(t *testing.T) {
	stub := &authStub{resp: &query.AuthResponse{AccessToken: "svc"}}
	a := &clientCredentialsAuthenticator{sr: newStubRestful(stub), clientID: "id-1", clientSecret: "s3cr3t"}
	creds, err := a.Authenticate(context.Background())
	assertNilF(t, err)
	assertEqualE(t, creds.AccessToken, "svc")
	assertTrueE(t, creds.ExpiresAt.IsZero(), "no lifetime means no expiry")

	call := stub.calls[0]
	assertEqualE(t, call.path, tokenPath)
	form, err := url.ParseQuery(string(call.body))
	assertNilF(t, err)
	assertEqualE(t, form.Get("grant_type"), "client_credentials")
	assertEqualE(t, form.Get("client_id"), "id-1")
	assertEqualE(t, form.Get("client_secret"), "s3cr3t")
}

func TestKeyPairAuthenticatorSignsAssertion(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assertNilF(t, err)
	stub := &authStub{resp: &query.AuthResponse{AccessToken: "kp"}}
	sr := newStubRestful(stub)
	a := &keyPairAuthenticator{sr: sr, clientID: "svc-account", privateKey: key, audience: sr.baseURL()}
	_, err = a.Authenticate(context.Background())
	assertNilF(t, err)

	form, err := url.ParseQuery(string(stub.calls[0].body))
	assertNilF(t, err)
	assertEqualE(t, form.Get("client_assertion_type"), clientAssertionType)
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(form.Get("client_assertion"), claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	assertNilF(t, err)
	assertTrueE(t, token.Valid)
	assertEqualE(t, claims.Issuer, "svc-account")
	assertEqualE(t, claims.Subject, "svc-account")
	assertDeepEqualE(t, []string(claims.Audience), []string{"https://acme.ember.test:443"})
	assertNotEqualE(t, claims.ID, "")
	assertEqualE(t, claims.ExpiresAt.Sub(claims.IssuedAt.Time), jwtTokenTimeout)
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	assertNilF(t, err)
	der, err := marshalPKCS8PrivateKey(key)
	assertNilF(t, err)
	parsed, err := parsePKCS8PrivateKey(der)
	assertNilF(t, err)
	assertTrueE(t, parsed.Equal(key))
	_, err = parsePKCS8PrivateKey([]byte("garbage"))
	assertErrIsE(t, err, &EmberError{Number: ErrCodePrivateKeyParseError})
}

func TestCachingAuthenticator(t *testing.T) {
	stub := &authStub{resp: &query.AuthResponse{AccessToken: "cached", ExpiresIn: 3600}}
	now := time.Now()
	a := &cachingAuthenticator{
		inner: &passwordAuthenticator{sr: newStubRestful(stub), user: "u", password: "p"},
		cache: newMemoryTokenCache(),
		key:   buildCredentialsKey("acme.ember.test", "u", AuthTypePassword),
		now:   func() time.Time { return now },
	}
	for i := 0; i < 3; i++ {
		creds, err := a.Authenticate(context.Background())
		assertNilF(t, err)
		assertEqualE(t, creds.AccessToken, "cached")
	}
	assertEqualE(t, stub.count(), 1, "later calls are served from the cache")

	// close to expiry the token is renewed
	now = now.Add(time.Hour - tokenExpiryMargin/2)
	_, err := a.Authenticate(context.Background())
	assertNilF(t, err)
	assertEqualE(t, stub.count(), 2)

	a.Invalidate()
	_, err = a.Authenticate(context.Background())
	assertNilF(t, err)
	assertEqualE(t, stub.count(), 3)
}

func TestCachingAuthenticatorDoesNotCacheFailures(t *testing.T) {
	stub := &authStub{err: &EmberError{Number: ErrCodeAuthenticationFailed}}
	cache := newMemoryTokenCache()
	a := &cachingAuthenticator{
		inner: &passwordAuthenticator{sr: newStubRestful(stub), user: "u", password: "p"},
		cache: cache,
		key:   "k",
		now:   time.Now,
	}
	_, err := a.Authenticate(context.Background())
	assertErrIsE(t, err, &EmberError{Number: ErrCodeAuthenticationFailed})
	_, ok := cache.get("k")
	assertFalseE(t, ok)
}

func TestBuildCredentialsKey(t *testing.T) {
	assertEqualE(t, buildCredentialsKey("acme.ember.test", "Alice", AuthTypePassword),
		"ACME.EMBER.TEST:ALICE:EMBER-GO-DRIVER:PASSWORD")
}

func TestKeyringTokenCache(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	c := &keyringTokenCache{
		memory: newMemoryTokenCache(),
		open:   func() (keyring.Keyring, error) { return ring, nil },
	}
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	c.set("k", &Credentials{AccessToken: "persisted", ExpiresAt: expires})

	item, err := ring.Get("k")
	assertNilF(t, err)
	assertStringContainsE(t, string(item.Data), "persisted")

	// a fresh process only has the keyring
	fresh := &keyringTokenCache{memory: newMemoryTokenCache(), open: c.open}
	creds, ok := fresh.get("k")
	assertTrueF(t, ok)
	assertEqualE(t, creds.AccessToken, "persisted")
	assertTrueE(t, creds.ExpiresAt.Equal(expires))

	fresh.remove("k")
	_, err = ring.Get("k")
	assertErrIsE(t, err, keyring.ErrKeyNotFound)
	_, ok = fresh.get("k")
	assertFalseE(t, ok)
}

func TestKeyringTokenCacheUnavailable(t *testing.T) {
	c := &keyringTokenCache{
		memory: newMemoryTokenCache(),
		open:   func() (keyring.Keyring, error) { return nil, keyring.ErrNoAvailImpl },
	}
	c.set("k", &Credentials{AccessToken: "memory-only"})
	creds, ok := c.get("k")
	assertTrueF(t, ok)
	assertEqualE(t, creds.AccessToken, "memory-only")
	c.remove("k")
	_, ok = c.get("k")
	assertFalseE(t, ok)
}

func TestStaticAuthenticators(t *testing.T) {
	creds, err := (&tokenAuthenticator{token: "static"}).Authenticate(context.Background())
	assertNilF(t, err)
	assertEqualE(t, creds.authorizationHeader(), "Bearer static")
	creds, err = noneAuthenticator{}.Authenticate(context.Background())
	assertNilF(t, err)
	assertEqualE(t, creds.authorizationHeader(), "")
}
