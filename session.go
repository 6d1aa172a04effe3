// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"net/url"
	"strings"
	"sync"
)

const (
	sessionKeyDatabase = "database"
	sessionKeyEngine   = "engine"
)

// session holds the target and the properties sent with every statement of
// a connection. SET statements and server updates change it; concurrent
// statements of one connection share it.
type session struct {
	mu       sync.RWMutex
	database string
	engine   string
	account  string
	props    map[string]string
	initial  map[string]string
}

func newSession(cfg *Config) *session {
	s := &session{
		database: cfg.Database,
		engine:   cfg.Engine,
		account:  cfg.Account,
		props:    make(map[string]string, len(cfg.Params)),
		initial:  make(map[string]string, len(cfg.Params)),
	}
	for k, v := range cfg.Params {
		s.props[k] = v
		s.initial[k] = v
	}
	return s
}

// set applies one property. The database and engine keys retarget the
// session instead of being sent as properties.
func (s *session) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *session) setLocked(key, value string) {
	switch strings.ToLower(key) {
	case sessionKeyDatabase:
		s.database = value
	case sessionKeyEngine:
		s.engine = value
	default:
		s.props[key] = value
	}
}

func (s *session) update(values map[string]string) {
	if len(values) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.setLocked(k, v)
	}
}

// applyDefaults adds server assigned defaults the user did not set.
func (s *session) applyDefaults(values map[string]string) {
	if len(values) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		if _, ok := s.props[k]; ok {
			continue
		}
		s.props[k] = v
		s.initial[k] = v
	}
}

// reset drops every property set after the connection was opened.
func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = make(map[string]string, len(s.initial))
	for k, v := range s.initial {
		s.props[k] = v
	}
}

func (s *session) snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.props))
	for k, v := range s.props {
		out[k] = v
	}
	return out
}

func (s *session) target() (database, engine string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.database, s.engine
}

// requestParams renders the session as the query string of a submission.
func (s *session) requestParams() url.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	params := url.Values{}
	for k, v := range s.props {
		params.Set(k, v)
	}
	if s.database != "" {
		params.Set(paramDatabase, s.database)
	}
	if s.engine != "" {
		params.Set(paramEngine, s.engine)
	}
	if s.account != "" {
		params.Set(paramAccount, s.account)
	}
	return params
}
