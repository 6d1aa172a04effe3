// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/emberdb/goember/internal/statement"
	"github.com/google/uuid"
)

// Connection is an authenticated session with an engine. A Connection is
// safe for concurrent use; each Statement created from it runs one batch at
// a time.
type Connection struct {
	cfg     *Config
	rest    *emberRestful
	parser  *statement.Parser
	labels  LabelGenerator
	session *session
	id      string

	mu         sync.Mutex
	statements map[*Statement]struct{}
	closed     atomic.Bool
}

// Connect authenticates with the server described by cfg. Missing
// parameters are filled with their defaults first.
func Connect(ctx context.Context, cfg *Config) (*Connection, error) {
	if err := fillMissingConfigParameters(cfg); err != nil {
		return nil, err
	}
	if err := initLogConfig(cfg.ClientConfigFile); err != nil {
		return nil, err
	}
	if cfg.Tracing != "" {
		if err := logger.SetLogLevel(cfg.Tracing); err != nil {
			return nil, err
		}
	}
	rest, err := newEmberRestful(cfg)
	if err != nil {
		return nil, err
	}
	parser, err := statement.NewParser(statement.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	labels := cfg.LabelGenerator
	if labels == nil {
		labels = NewUUIDLabelGenerator()
	}
	conn := &Connection{
		cfg:        cfg,
		rest:       rest,
		parser:     parser,
		labels:     labels,
		session:    newSession(cfg),
		id:         uuid.NewString(),
		statements: make(map[*Statement]struct{}),
	}
	ctx = conn.logContext(ctx)
	logger.WithContext(ctx).Infof("connecting. host: %v, database: %v, engine: %v, authenticator: %v",
		cfg.Host, cfg.Database, cfg.Engine, cfg.Authenticator)
	creds, err := rest.Auth.Authenticate(ctx)
	if err != nil {
		logger.WithContext(ctx).Errorf("failed to authenticate. err: %v", err)
		return nil, err
	}
	conn.session.applyDefaults(creds.SessionProperties)
	return conn, nil
}

// ConnectDSN parses dsn and connects.
func ConnectDSN(ctx context.Context, dsn string) (*Connection, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, cfg)
}

func (c *Connection) logContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, EmberSessionIDKey, c.id)
}

// NewStatement creates a statement bound to the connection.
func (c *Connection) NewStatement() (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	stmt := &Statement{conn: c, state: newExecutionState()}
	c.statements[stmt] = struct{}{}
	return stmt, nil
}

func (c *Connection) forget(stmt *Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.statements, stmt)
}

// SessionProperties returns a copy of the current session properties.
func (c *Connection) SessionProperties() map[string]string {
	return c.session.snapshot()
}

// SetSessionProperty sets a property sent with every later statement, the
// same way a SET statement does.
func (c *Connection) SetSessionProperty(key, value string) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	c.session.set(key, value)
	return nil
}

// ResetSessionProperties restores the properties the connection was opened with.
func (c *Connection) ResetSessionProperties() error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	c.session.reset()
	return nil
}

// Database returns the database statements currently run against.
func (c *Connection) Database() string {
	db, _ := c.session.target()
	return db
}

// Engine returns the engine statements currently run on.
func (c *Connection) Engine() string {
	_, engine := c.session.target()
	return engine
}

// IsClosed reports whether Close was called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close closes every statement of the connection. Running statements are
// cancelled.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	stmts := make([]*Statement, 0, len(c.statements))
	for s := range c.statements {
		stmts = append(stmts, s)
	}
	c.statements = nil
	c.mu.Unlock()

	var first error
	for _, s := range stmts {
		if err := s.close(); err != nil && first == nil {
			first = err
		}
	}
	c.rest.Client.CloseIdleConnections()
	logger.Debugf("connection closed. session: %v", c.id)
	return first
}
