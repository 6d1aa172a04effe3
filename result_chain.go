// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"sync"

	"github.com/emberdb/goember/internal/statement"
)

// StatementKind classifies a sub-statement.
type StatementKind = statement.Kind

const (
	// StatementNonQuery is a command that produces no rows.
	StatementNonQuery = statement.NonQuery
	// StatementQuery is a row-producing statement.
	StatementQuery = statement.Query
	// StatementParamSetting is a SET statement applied to the session.
	StatementParamSetting = statement.ParamSetting
)

// SubStatement describes one sub-statement of an executed batch.
type SubStatement struct {
	Index int    // position in the batch, from 0
	SQL   string // final SQL text, parameters substituted
	Kind  StatementKind
	Label string
	// Key and Value are set for StatementParamSetting.
	Key   string
	Value string
}

// ResultNode is the result of one sub-statement. Cursor is nil for
// statements that produce no rows.
type ResultNode struct {
	Cursor    *ResultCursor
	Statement SubStatement

	chain *ResultChain
	next  *ResultNode
}

// Next returns the result of the following sub-statement, or nil.
func (n *ResultNode) Next() *ResultNode {
	n.chain.mu.Lock()
	defer n.chain.mu.Unlock()
	return n.next
}

// ResultChain holds the results of one batch in submission order. Results
// stay readable until the chain is closed, including after a later
// sub-statement failed.
type ResultChain struct {
	mu     sync.Mutex
	head   *ResultNode
	tail   *ResultNode
	size   int
	closed bool
}

func newResultChain() *ResultChain {
	return &ResultChain{}
}

// append adds a result. A closed chain closes the cursor instead and
// returns false.
func (c *ResultChain) append(cursor *ResultCursor, st SubStatement) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if cursor != nil {
			cursor.Close()
		}
		return false
	}
	n := &ResultNode{Cursor: cursor, Statement: st, chain: c}
	if c.tail == nil {
		c.head = n
	} else {
		c.tail.next = n
	}
	c.tail = n
	c.size++
	return true
}

// Head returns the first result, or nil for an empty chain.
func (c *ResultChain) Head() *ResultNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// Len returns the number of results.
func (c *ResultChain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Nodes returns the results as a slice.
func (c *ResultChain) Nodes() []*ResultNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodes := make([]*ResultNode, 0, c.size)
	for n := c.head; n != nil; n = n.next {
		nodes = append(nodes, n)
	}
	return nodes
}

// FirstCursor returns the cursor of the first row-producing sub-statement.
func (c *ResultChain) FirstCursor() *ResultCursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := c.head; n != nil; n = n.next {
		if n.Cursor != nil {
			return n.Cursor
		}
	}
	return nil
}

// Close closes every cursor of the chain. It is safe to call more than
// once and from several goroutines.
func (c *ResultChain) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	head := c.head
	c.mu.Unlock()

	var first error
	for n := head; n != nil; n = n.next {
		if n.Cursor == nil {
			continue
		}
		if err := n.Cursor.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// IsClosed reports whether Close was called.
func (c *ResultChain) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
