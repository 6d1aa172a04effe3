// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	jwtTokenTimeout     = 60 * time.Second
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// keyPairAuthenticator signs a short lived JWT with the service account key
// and exchanges it for an access token.
type keyPairAuthenticator struct {
	sr         *emberRestful
	clientID   string
	privateKey *rsa.PrivateKey
	audience   string
}

func (a *keyPairAuthenticator) Authenticate(ctx context.Context) (*Credentials, error) {
	assertion, err := prepareJWTToken(a.clientID, a.audience, a.privateKey, time.Now())
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Add("grant_type", "client_credentials")
	form.Add("client_id", a.clientID)
	form.Add("client_assertion_type", clientAssertionType)
	form.Add("client_assertion", assertion)
	headers := map[string]string{headerContentTypeKey: contentTypeFormURLEncoded}
	logger.WithContext(ctx).Debugf("key pair login. client_id: %v", a.clientID)
	resp, err := a.sr.FuncPostAuth(ctx, a.sr, tokenPath, headers, []byte(form.Encode()), a.sr.LoginTimeout)
	if err != nil {
		return nil, err
	}
	return credentialsFromResponse(resp, time.Now()), nil
}

func (a *keyPairAuthenticator) Invalidate() {}

// prepareJWTToken builds the RS256 client assertion. Issuer and subject are
// the client id; the audience is the engine base URL.
func prepareJWTToken(clientID, audience string, key *rsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    clientID,
		Subject:   clientID,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtTokenTimeout)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", &EmberError{
			Number:  ErrCodePrivateKeyParseError,
			Message: "failed to sign the client assertion",
			cause:   err,
		}
	}
	return signed, nil
}

func parsePKCS8PrivateKey(block []byte) (*rsa.PrivateKey, error) {
	privKey, err := x509.ParsePKCS8PrivateKey(block)
	if err != nil {
		return nil, &EmberError{
			Number:  ErrCodePrivateKeyParseError,
			Message: "Error decoding private key using PKCS8.",
			cause:   err,
		}
	}
	rsaKey, ok := privKey.(*rsa.PrivateKey)
	if !ok {
		return nil, &EmberError{
			Number:  ErrCodePrivateKeyParseError,
			Message: "only RSA private keys are supported",
		}
	}
	return rsaKey, nil
}

func marshalPKCS8PrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	keyInBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, &EmberError{
			Number:  ErrCodePrivateKeyParseError,
			Message: "Error encoding private key using PKCS8.",
			cause:   err,
		}
	}
	return keyInBytes, nil
}
