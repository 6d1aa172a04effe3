// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"context"
	"time"

	"github.com/emberdb/goember/internal/query"
)

// QueryStatus is the state of a labelled query as reported by the server.
type QueryStatus struct {
	Label    string
	Status   string // empty when the server does not know the label
	Error    string
	RowsRead int64
}

// IsRunning reports whether the query is still executing.
func (qs *QueryStatus) IsRunning() bool {
	return qs.Status == query.StatusRunning
}

// IsDone reports whether the query finished, successfully or not.
func (qs *QueryStatus) IsDone() bool {
	switch qs.Status {
	case query.StatusEnded, query.StatusFailed, query.StatusCancelled:
		return true
	}
	return false
}

// Succeeded reports whether the query ran to completion.
func (qs *QueryStatus) Succeeded() bool {
	return qs.Status == query.StatusEnded
}

// QueryStatus fetches the status of a labelled query.
func (c *Connection) QueryStatus(ctx context.Context, label string) (*QueryStatus, error) {
	if c.IsClosed() {
		return nil, ErrConnectionClosed
	}
	respd, err := c.rest.FuncQueryStatus(c.logContext(ctx), c.rest, label)
	if err != nil {
		return nil, err
	}
	return &QueryStatus{
		Label:    label,
		Status:   respd.Status,
		Error:    respd.Error,
		RowsRead: respd.RowsRead,
	}, nil
}

// IsRunning reports whether the labelled query is still executing on the
// server.
func (c *Connection) IsRunning(ctx context.Context, label string) (bool, error) {
	qs, err := c.QueryStatus(ctx, label)
	if err != nil {
		return false, err
	}
	return qs.IsRunning(), nil
}

// Abort cancels a labelled query on the server. It reports false when the
// query was not running, so calling it twice is harmless.
func (c *Connection) Abort(ctx context.Context, label string) (bool, error) {
	if c.IsClosed() {
		return false, ErrConnectionClosed
	}
	ctx = context.WithValue(c.logContext(ctx), EmberQueryLabelKey, label)
	aborted, err := c.rest.FuncAbortQuery(ctx, c.rest, label)
	if err != nil {
		return false, err
	}
	logger.WithContext(ctx).Debugf("abort requested. aborted: %v", aborted)
	return aborted, nil
}

const (
	statusPollInitial = 100 * time.Millisecond
	statusPollMax     = 5 * time.Second
)

// WaitForQuery polls the status of label until the query is no longer
// running or ctx is done. A failed or cancelled query is reported through
// the returned status, not as an error.
func (c *Connection) WaitForQuery(ctx context.Context, label string) (*QueryStatus, error) {
	wait := statusPollInitial
	for {
		qs, err := c.QueryStatus(ctx, label)
		if err != nil {
			return nil, err
		}
		if !qs.IsRunning() {
			return qs, nil
		}
		logger.WithContext(ctx).Tracef("query %v still running, next poll in %v", label, wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return qs, ctx.Err()
		case <-t.C:
		}
		wait = durationMin(2*wait, statusPollMax)
	}
}
