// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
)

const (
	driverName         = "EMBER-GO-DRIVER"
	keyringServiceName = "goember"
)

// tokenCache stores access tokens between logins. Implementations must be
// safe for concurrent use; misses and storage failures are not errors.
type tokenCache interface {
	get(key string) (*Credentials, bool)
	set(key string, creds *Credentials)
	remove(key string)
}

// defaultTokenCache is shared by all connections of the process.
var defaultTokenCache tokenCache = newMemoryTokenCache()

func buildCredentialsKey(host, principal string, authType AuthType) string {
	host = strings.ToUpper(host)
	principal = strings.ToUpper(principal)
	return host + ":" + principal + ":" + driverName + ":" + strings.ToUpper(authType.String())
}

type memoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]*Credentials
}

func newMemoryTokenCache() *memoryTokenCache {
	return &memoryTokenCache{tokens: make(map[string]*Credentials)}
}

func (c *memoryTokenCache) get(key string) (*Credentials, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	creds, ok := c.tokens[key]
	return creds, ok
}

func (c *memoryTokenCache) set(key string, creds *Credentials) {
	if creds == nil || creds.AccessToken == "" {
		logger.Debug("no token provided")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = creds
}

func (c *memoryTokenCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, key)
}

// storedToken is the keyring item payload.
type storedToken struct {
	AccessToken       string            `json:"access_token"`
	ExpiresAt         time.Time         `json:"expires_at"`
	SessionProperties map[string]string `json:"session_properties,omitempty"`
}

// keyringTokenCache persists tokens in the OS keyring so that they survive
// the process. Reads go through an in-memory layer first.
type keyringTokenCache struct {
	memory *memoryTokenCache
	open   func() (keyring.Keyring, error)
}

func newKeyringTokenCache() *keyringTokenCache {
	return &keyringTokenCache{
		memory: newMemoryTokenCache(),
		open: func() (keyring.Keyring, error) {
			return keyring.Open(keyring.Config{
				ServiceName:   keyringServiceName,
				WinCredPrefix: keyringServiceName,
			})
		},
	}
}

func (c *keyringTokenCache) get(key string) (*Credentials, bool) {
	if creds, ok := c.memory.get(key); ok {
		return creds, true
	}
	ring, err := c.open()
	if err != nil {
		logger.Debugf("failed to open the keyring. err: %v", err)
		return nil, false
	}
	item, err := ring.Get(key)
	if err != nil {
		logger.Debugf("token not found in the keyring. err: %v", err)
		return nil, false
	}
	var st storedToken
	if err = json.Unmarshal(item.Data, &st); err != nil {
		logger.Debugf("failed to read JSON. err: %v", err)
		return nil, false
	}
	creds := &Credentials{
		AccessToken:       st.AccessToken,
		ExpiresAt:         st.ExpiresAt,
		SessionProperties: st.SessionProperties,
	}
	c.memory.set(key, creds)
	return creds, true
}

func (c *keyringTokenCache) set(key string, creds *Credentials) {
	c.memory.set(key, creds)
	if creds == nil || creds.AccessToken == "" {
		return
	}
	data, err := json.Marshal(storedToken{
		AccessToken:       creds.AccessToken,
		ExpiresAt:         creds.ExpiresAt,
		SessionProperties: creds.SessionProperties,
	})
	if err != nil {
		logger.Warnf("failed to convert credential to JSON.")
		return
	}
	ring, err := c.open()
	if err != nil {
		logger.Debugf("failed to open the keyring. err: %v", err)
		return
	}
	if err = ring.Set(keyring.Item{Key: key, Data: data, Label: driverName}); err != nil {
		logger.Debugf("failed to write to the keyring. err: %v", err)
	}
}

func (c *keyringTokenCache) remove(key string) {
	c.memory.remove(key)
	ring, err := c.open()
	if err != nil {
		logger.Debugf("failed to open the keyring. err: %v", err)
		return
	}
	if err = ring.Remove(key); err != nil {
		logger.Debugf("failed to delete the token from the keyring. err: %v", err)
	}
}
