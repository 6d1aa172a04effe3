// Package statement scans SQL batches sent to the engine. It splits a batch into
// sub-statements, classifies each one, locates positional parameter markers and
// substitutes literal values into them.
package statement

import (
	"errors"
	"fmt"
)

// Kind classifies a sub-statement by what it does on the engine.
type Kind int

const (
	// NonQuery is a command that produces no rows (DDL, DML, ...).
	NonQuery Kind = iota
	// Query is a row-producing statement.
	Query
	// ParamSetting is a "SET key = value" statement applied to the session.
	ParamSetting
)

func (k Kind) String() string {
	switch k {
	case Query:
		return "QUERY"
	case ParamSetting:
		return "PARAM_SETTING"
	default:
		return "NON_QUERY"
	}
}

var (
	// ErrUnterminatedLiteral is returned when a quoted literal or identifier is never closed.
	ErrUnterminatedLiteral = errors.New("unterminated quoted literal")
	// ErrUnterminatedComment is returned when a block comment is never closed.
	ErrUnterminatedComment = errors.New("unterminated block comment")
	// ErrMalformedSet is returned when a SET statement is not of the form "SET key = value".
	ErrMalformedSet = errors.New("malformed SET statement")
	// ErrMissingParameterValue is returned when a located marker has no supplied value.
	ErrMissingParameterValue = errors.New("missing parameter value")
	// ErrParameterCountMismatch is returned when the number of supplied values differs from the markers.
	ErrParameterCountMismatch = errors.New("parameter count mismatch")
	// ErrParameterPosition is returned when a marker offset falls outside its sub-statement.
	ErrParameterPosition = errors.New("parameter position out of range")
)

// Marker is a positional parameter placeholder found in a sub-statement.
type Marker struct {
	ID       int // 1-based id, sequential for '?', explicit for '$n'
	Position int // byte offset inside the owning sub-statement
	Length   int // width of the placeholder text
}

// Property is the key/value pair carried by a SET statement.
type Property struct {
	Key   string
	Value string
}

// RawStatement is one semicolon-delimited sub-statement of a batch. It is
// immutable once returned by Split.
type RawStatement struct {
	SQL      string // slice of the original batch, trailing comments included
	Cleaned  string // SQL without comments, trimmed, without the terminating ';'
	Kind     Kind
	Markers  []Marker
	Property *Property // set for ParamSetting statements only
}

func (rs RawStatement) String() string {
	return fmt.Sprintf("%v: %v", rs.Kind, rs.Cleaned)
}

// Batch is the ordered list of sub-statements of one SQL text. Callers must
// treat it as read-only: batches are shared through the parser cache.
type Batch struct {
	SQL        string
	Statements []RawStatement
}

// TotalMarkers returns the number of markers across all sub-statements.
func (b *Batch) TotalMarkers() int {
	n := 0
	for _, st := range b.Statements {
		n += len(st.Markers)
	}
	return n
}

// DistinctIDs returns the number of different marker ids in the batch.
func (b *Batch) DistinctIDs() int {
	ids := make(map[int]struct{})
	for _, st := range b.Statements {
		for _, m := range st.Markers {
			ids[m.ID] = struct{}{}
		}
	}
	return len(ids)
}

// HasMarkers reports whether any sub-statement contains a parameter marker.
func (b *Batch) HasMarkers() bool {
	return b.TotalMarkers() > 0
}
