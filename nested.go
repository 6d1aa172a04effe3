// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"fmt"
	"strings"

	"github.com/emberdb/goember/internal/types"
)

// nestedParser decodes array and tuple literals:
//
//	[1,2,NULL]  {1,2}  ('a',(1,2.5))  ["x\"y",'z']
//
// Elements may be quoted with ' or ", a backslash escapes the next byte, and
// an unquoted NULL is a null element.
type nestedParser struct {
	s   string
	pos int
}

func parseNested(s string, d *types.Descriptor) (any, error) {
	p := &nestedParser{s: s}
	v, err := p.value(d)
	if err != nil {
		return nil, newInvalidValueError(s, d.String(), err)
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, newInvalidValueError(s, d.String(), fmt.Errorf("unexpected %q at offset %d", p.s[p.pos:], p.pos))
	}
	return v, nil
}

// elemDescriptor peels one array level off d.
func elemDescriptor(d *types.Descriptor) *types.Descriptor {
	if d.ArrayDepth <= 1 {
		return d.Elem
	}
	return &types.Descriptor{Base: types.ArrayType, ArrayDepth: d.ArrayDepth - 1, Elem: d.Elem}
}

func (p *nestedParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\n' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *nestedParser) value(d *types.Descriptor) (any, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unexpected end of %v value", d.Base)
	}
	switch d.Base {
	case types.ArrayType:
		if p.unquotedNull() {
			return nil, nil
		}
		elem := elemDescriptor(d)
		var out []any
		err := p.list(func() error {
			v, err := p.value(elem)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	case types.TupleType:
		if p.unquotedNull() {
			return nil, nil
		}
		out := make(StructValue, 0, len(d.Fields))
		err := p.list(func() error {
			i := len(out)
			if i >= len(d.Fields) {
				return fmt.Errorf("tuple has more than %d members", len(d.Fields))
			}
			v, err := p.value(d.Fields[i].Type)
			if err != nil {
				return err
			}
			out = append(out, StructField{Name: d.Fields[i].Name, Value: v})
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(out) != len(d.Fields) {
			return nil, fmt.Errorf("tuple has %d members, expected %d", len(out), len(d.Fields))
		}
		return out, nil
	}
	text, quoted, err := p.scalar()
	if err != nil {
		return nil, err
	}
	// inside nested values an unquoted NULL is null for every type
	if !quoted && (isNullField(d.Base, text) || strings.EqualFold(text, "null")) {
		return nil, nil
	}
	return convertValue(d, text, KindDefault)
}

// unquotedNull consumes a bare NULL in place of a nested value.
func (p *nestedParser) unquotedNull() bool {
	rest := p.s[p.pos:]
	if len(rest) >= 4 && strings.EqualFold(rest[:4], "null") {
		p.pos += 4
		return true
	}
	if strings.HasPrefix(rest, `\N`) {
		p.pos += 2
		return true
	}
	return false
}

// list parses "open item, item close" calling item for each element.
func (p *nestedParser) list(item func() error) error {
	open := p.s[p.pos]
	var closeByte byte
	switch open {
	case '[':
		closeByte = ']'
	case '{':
		closeByte = '}'
	case '(':
		closeByte = ')'
	default:
		return fmt.Errorf("expected '[', '{' or '(' at offset %d", p.pos)
	}
	p.pos++
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == closeByte {
		p.pos++
		return nil
	}
	for {
		if err := item(); err != nil {
			return err
		}
		p.skipSpace()
		if p.pos >= len(p.s) {
			return fmt.Errorf("missing %q", closeByte)
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case closeByte:
			p.pos++
			return nil
		default:
			return fmt.Errorf("unexpected %q at offset %d", p.s[p.pos], p.pos)
		}
	}
}

// scalar reads one quoted or bare element.
func (p *nestedParser) scalar() (text string, quoted bool, err error) {
	q := p.s[p.pos]
	if q == '\'' || q == '"' {
		p.pos++
		var b strings.Builder
		for p.pos < len(p.s) {
			c := p.s[p.pos]
			switch {
			case c == '\\' && p.pos+1 < len(p.s):
				b.WriteByte(p.s[p.pos+1])
				p.pos += 2
			case c == q && p.pos+1 < len(p.s) && p.s[p.pos+1] == q:
				b.WriteByte(q)
				p.pos += 2
			case c == q:
				p.pos++
				return b.String(), true, nil
			default:
				b.WriteByte(c)
				p.pos++
			}
		}
		return "", true, fmt.Errorf("unterminated quoted element")
	}
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == ',' || c == ']' || c == '}' || c == ')' {
			break
		}
		p.pos++
	}
	return strings.TrimSpace(p.s[start:p.pos]), false, nil
}
