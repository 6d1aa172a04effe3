// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emberdb/goember/internal/query"
	"github.com/emberdb/goember/internal/statement"
)

const defaultAbortTimeout = 10 * time.Second

// Statement executes SQL batches on a connection. One batch runs at a
// time; Cancel and Close may be called from any goroutine.
type Statement struct {
	conn  *Connection
	state *executionState

	mu      sync.Mutex
	results *ResultChain
}

// Execute splits sql into sub-statements, substitutes params into their
// markers and runs the sub-statements in order. Parameter ids are 1-based
// and params values are SQL literal text, see FormatLiteral.
//
// The returned chain holds the results of the sub-statements that ran, and
// is returned together with the error when a sub-statement failed. Running
// a new batch closes the chain of the previous one.
func (s *Statement) Execute(ctx context.Context, sql string, params map[int]string) (*ResultChain, error) {
	if s.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	subs, err := s.prepare(sql, params)
	if err != nil {
		return nil, err
	}
	chain, err := s.start(subs, false)
	if err != nil {
		return nil, err
	}
	err = s.run(ctx, chain, subs)
	phase := s.state.end(err)
	logger.WithContext(s.conn.logContext(ctx)).Debugf("batch finished. statements: %v, results: %v, state: %v",
		len(subs), chain.Len(), phase)
	return chain, err
}

// ExecuteValues is Execute with the markers bound to args in order. Each
// argument is rendered with FormatLiteral.
func (s *Statement) ExecuteValues(ctx context.Context, sql string, args ...any) (*ResultChain, error) {
	params, err := formatArgs(args)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, sql, params)
}

// Query executes sql and returns the cursor of its first row-producing
// sub-statement.
func (s *Statement) Query(ctx context.Context, sql string, params map[int]string) (*ResultCursor, error) {
	chain, err := s.Execute(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	cursor := chain.FirstCursor()
	if cursor == nil {
		return nil, ErrNoResultSet
	}
	return cursor, nil
}

// ExecuteAsync submits a batch of exactly one statement that is not a SET
// and returns its label without waiting for it to finish. SET statements of
// the batch are applied to the session first. Use Connection.QueryStatus to
// follow the query and Cancel to abort it.
func (s *Statement) ExecuteAsync(ctx context.Context, sql string, params map[int]string) (string, error) {
	if s.conn.IsClosed() {
		return "", ErrConnectionClosed
	}
	subs, err := s.prepare(sql, params)
	if err != nil {
		return "", err
	}
	n := 0
	for _, sub := range subs {
		if sub.Kind != StatementParamSetting {
			n++
		}
	}
	if n != 1 {
		return "", &EmberError{
			Number:      ErrCodeAsyncMultiStatement,
			SQLState:    SQLStateInvalidParameter,
			Message:     errMsgAsyncMultiStatement,
			MessageArgs: []interface{}{n},
		}
	}
	chain, err := s.start(subs, true)
	if err != nil {
		return "", err
	}
	label, err := s.runAsync(ctx, chain, subs)
	s.state.end(err)
	if err != nil {
		return "", err
	}
	return label, nil
}

// prepare parses sql and builds the sub-statements with their final text.
func (s *Statement) prepare(sql string, params map[int]string) ([]SubStatement, error) {
	batch, err := s.conn.parser.Parse(sql)
	if err != nil {
		return nil, toEmberError(err)
	}
	texts, err := batch.Substitute(params)
	if err != nil {
		return nil, toEmberError(err)
	}
	subs := make([]SubStatement, len(batch.Statements))
	for i, raw := range batch.Statements {
		sub := SubStatement{
			Index: i,
			SQL:   strings.TrimSpace(texts[i]),
			Kind:  raw.Kind,
			Label: s.conn.labels.NewLabel(),
		}
		if raw.Kind == StatementParamSetting {
			prop := raw.Property
			if len(raw.Markers) > 0 {
				// the value may come from a marker
				cleaned, err := statement.Clean(texts[i])
				if err != nil {
					return nil, toEmberError(err)
				}
				p, err := statement.ParseProperty(strings.TrimSuffix(strings.TrimSpace(cleaned), ";"))
				if err != nil {
					return nil, toEmberError(err)
				}
				prop = &p
			}
			sub.Key, sub.Value = prop.Key, prop.Value
		}
		subs[i] = sub
	}
	return subs, nil
}

// start closes the previous results and moves the statement to running.
func (s *Statement) start(subs []SubStatement, async bool) (*ResultChain, error) {
	labels := make([]string, len(subs))
	for i, sub := range subs {
		labels[i] = sub.Label
	}
	if err := s.state.begin(labels, async); err != nil {
		return nil, err
	}
	chain := newResultChain()
	s.mu.Lock()
	prev := s.results
	s.results = chain
	s.mu.Unlock()
	if prev != nil {
		if err := prev.Close(); err != nil {
			logger.Debugf("failed to close previous results. err: %v", err)
		}
	}
	return chain, nil
}

func (s *Statement) run(ctx context.Context, chain *ResultChain, subs []SubStatement) error {
	for _, sub := range subs {
		if !s.state.startIssue(sub.Label) {
			logger.WithContext(s.labelContext(ctx, sub.Label)).Debugf("skipping statement %v after cancel", sub.Index)
			continue
		}
		if sub.Kind == StatementParamSetting {
			s.conn.session.set(sub.Key, sub.Value)
			s.state.finishIssue(sub.Label)
			chain.append(nil, sub)
			continue
		}
		cursor, err := s.issue(ctx, sub)
		cancelled := s.state.finishIssue(sub.Label)
		if err != nil {
			if cancelled && !IsCancellation(err) {
				logger.WithContext(s.labelContext(ctx, sub.Label)).Debugf("statement failed after cancel. err: %v", err)
				return newCancellationError(sub.Label)
			}
			return err
		}
		chain.append(cursor, sub)
	}
	return nil
}

func (s *Statement) runAsync(ctx context.Context, chain *ResultChain, subs []SubStatement) (string, error) {
	var label string
	for _, sub := range subs {
		if !s.state.startIssue(sub.Label) {
			continue
		}
		if sub.Kind == StatementParamSetting {
			s.conn.session.set(sub.Key, sub.Value)
			s.state.finishIssue(sub.Label)
			chain.append(nil, sub)
			continue
		}
		resp, err := s.submit(ctx, sub, true)
		cancelled := s.state.finishIssue(sub.Label)
		if err != nil {
			if cancelled && !IsCancellation(err) {
				return "", newCancellationError(sub.Label)
			}
			return "", err
		}
		label, err = asyncLabel(resp, sub.Label)
		if err != nil {
			return "", err
		}
		s.state.submitted(label)
		chain.append(nil, sub)
	}
	return label, nil
}

// asyncLabel reads the acknowledgement of an async submission.
func asyncLabel(resp *queryResponse, label string) (string, error) {
	defer resp.Body.Close()
	var ack query.AsyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil && err != io.EOF {
		return "", newProtocolError(ErrCodeUnexpectedResponse, err)
	}
	if ack.QueryLabel != "" && ack.QueryLabel != label {
		logger.Debugf("server assigned label %v to %v", ack.QueryLabel, label)
		return ack.QueryLabel, nil
	}
	return label, nil
}

// issue runs one sub-statement and decodes its result header.
func (s *Statement) issue(ctx context.Context, sub SubStatement) (*ResultCursor, error) {
	resp, err := s.submit(ctx, sub, false)
	if err != nil {
		return nil, err
	}
	if sub.Kind != StatementQuery {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.Body.Close()
	}
	cursor, err := newResultCursor(resp.Body, s.conn.cfg.MaxResultRows, sub.Label)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return cursor, nil
}

type submitResult struct {
	resp *queryResponse
	err  error
}

// submit sends a sub-statement and waits for the response headers. When ctx
// is done first the query is aborted and a cancellation error is returned.
func (s *Statement) submit(ctx context.Context, sub SubStatement, async bool) (*queryResponse, error) {
	rest := s.conn.rest
	req := &queryRequest{
		SQL:    sub.SQL,
		Label:  sub.Label,
		Params: s.conn.session.requestParams(),
		Async:  async,
	}
	ctx = s.labelContext(ctx, sub.Label)
	logger.WithContext(ctx).Debugf("running statement %v: %v", sub.Index, sub.Kind)

	done := make(chan submitResult, 1)
	go func() {
		resp, err := rest.FuncExecuteQuery(ctx, rest, req)
		done <- submitResult{resp, err}
	}()
	select {
	case r := <-done:
		if r.err == nil {
			s.conn.session.update(r.resp.UpdateParameters)
			return r.resp, nil
		}
		if ctx.Err() == nil {
			return nil, r.err
		}
	case <-ctx.Done():
		go func() {
			if r := <-done; r.resp != nil {
				r.resp.Body.Close()
			}
		}()
	}
	logger.WithContext(ctx).Infof("context done, aborting query. err: %v", ctx.Err())
	s.abort(ctx, sub.Label)
	return nil, newCancellationError(sub.Label)
}

// abort cancels label on the server, ignoring the state of ctx.
func (s *Statement) abort(ctx context.Context, label string) {
	timeout := s.conn.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultAbortTimeout
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	rest := s.conn.rest
	if _, err := rest.FuncAbortQuery(actx, rest, label); err != nil {
		logger.WithContext(ctx).Warnf("failed to abort query. label: %v, err: %v", label, err)
	}
}

func (s *Statement) labelContext(ctx context.Context, label string) context.Context {
	return context.WithValue(s.conn.logContext(ctx), EmberQueryLabelKey, label)
}

// Cancel stops the running batch. Sub-statements not yet sent are
// skipped and the running one is aborted on the server. After an
// asynchronous execution, Cancel aborts the submitted query. Cancelling a
// statement with nothing to cancel is a no-op.
func (s *Statement) Cancel(ctx context.Context) error {
	if s.state.current() == PhaseClosed {
		return ErrStatementClosed
	}
	label := s.state.cancel()
	if label == "" {
		return nil
	}
	ctx = s.labelContext(ctx, label)
	logger.WithContext(ctx).Infof("cancelling query")
	rest := s.conn.rest
	_, err := rest.FuncAbortQuery(ctx, rest, label)
	return err
}

// Results returns the chain of the last batch, or nil.
func (s *Statement) Results() *ResultChain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// State returns the phase of the statement.
func (s *Statement) State() ExecutionPhase {
	return s.state.current()
}

// Close closes the results and aborts a running sub-statement.
func (s *Statement) Close() error {
	err := s.close()
	s.conn.forget(s)
	return err
}

func (s *Statement) close() error {
	label, alreadyClosed := s.state.close()
	if alreadyClosed {
		return nil
	}
	if label != "" {
		s.abort(context.Background(), label)
	}
	s.mu.Lock()
	results := s.results
	s.mu.Unlock()
	if results != nil {
		return results.Close()
	}
	return nil
}
