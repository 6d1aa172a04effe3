// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// LabelGenerator produces the labels attached to submitted queries. A label
// identifies one remote query for status polling and abort, so generators
// must not repeat labels within a connection.
type LabelGenerator interface {
	NewLabel() string
}

// LabelGeneratorFunc adapts a function to LabelGenerator.
type LabelGeneratorFunc func() string

// NewLabel calls f.
func (f LabelGeneratorFunc) NewLabel() string {
	return f()
}

type uuidLabelGenerator struct{}

func (uuidLabelGenerator) NewLabel() string {
	return uuid.NewString()
}

// NewUUIDLabelGenerator returns the default generator, producing random
// RFC 4122 labels.
func NewUUIDLabelGenerator() LabelGenerator {
	return uuidLabelGenerator{}
}

// sequenceLabelGenerator prefixes a counter, producing predictable labels
// for logs and tests.
type sequenceLabelGenerator struct {
	prefix string
	next   atomic.Int64
}

// NewSequenceLabelGenerator returns a generator producing prefix-1, prefix-2, ...
func NewSequenceLabelGenerator(prefix string) LabelGenerator {
	return &sequenceLabelGenerator{prefix: prefix}
}

func (g *sequenceLabelGenerator) NewLabel() string {
	return g.prefix + "-" + strconv.FormatInt(g.next.Add(1), 10)
}

// newRequestID returns the id sent with every HTTP request.
func newRequestID() string {
	return uuid.NewString()
}
