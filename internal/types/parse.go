package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedType is returned for type strings that do not follow the grammar.
var ErrMalformedType = errors.New("malformed type string")

const (
	nullableKeyword = "nullable"
	lowCardKeyword  = "lowcardinality"
	arrayKeyword    = "array"
	tupleKeyword    = "tuple"
	structKeyword   = "struct"
	nullSuffix      = " null"
	notNullSuffix   = " not null"
)

// LocationLoader resolves timezone names. Tests replace it to control the
// set of zones known to the host.
var LocationLoader = time.LoadLocation

// Parse parses one type string. Enum and map types are read as text, and
// integers wider than 64 bits as decimals. The grammar is case-insensitive:
//
//	Type   := 'ARRAY(' Type ')' | 'NULLABLE(' Type ')' | 'LOWCARDINALITY(' Type ')'
//	        | ('TUPLE' | 'STRUCT') '(' Member (',' Member)* ')'
//	        | ScalarName ['(' Arg (',' Arg)* ')'] | Type ' NULL' | Type ' NOT NULL'
//	Member := [Name | '`' QuotedName '`' | '"' QuotedName '"'] Type
func Parse(typeString string) (*Descriptor, error) {
	d, err := parse(typeString)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedType, typeString, err)
	}
	return d, nil
}

func parse(s string) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty type")
	}
	lower := strings.ToLower(s)

	if strings.HasSuffix(lower, notNullSuffix) {
		return parse(s[:len(s)-len(notNullSuffix)])
	}
	if strings.HasSuffix(lower, nullSuffix) && len(strings.TrimSpace(lower[:len(lower)-len(nullSuffix)])) > 0 {
		d, err := parse(s[:len(s)-len(nullSuffix)])
		if err != nil {
			return nil, err
		}
		d.Nullable = true
		return d, nil
	}

	name, args, hasArgs, err := splitCall(s)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(name) {
	case nullableKeyword:
		if !hasArgs || len(args) != 1 {
			return nil, errors.New("nullable takes exactly one type")
		}
		d, err := parse(args[0])
		if err != nil {
			return nil, err
		}
		d.Nullable = true
		return d, nil
	case lowCardKeyword:
		if !hasArgs || len(args) != 1 {
			return nil, errors.New("lowcardinality takes exactly one type")
		}
		return parse(args[0])
	case arrayKeyword:
		if !hasArgs || len(args) != 1 {
			return nil, errors.New("array takes exactly one type")
		}
		return parseArray(args[0])
	case tupleKeyword, structKeyword:
		if !hasArgs {
			return nil, fmt.Errorf("%v requires members", name)
		}
		return parseTuple(args)
	}
	return parseScalar(name, args)
}

func parseArray(inner string) (*Descriptor, error) {
	elem, err := parse(inner)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{Base: ArrayType, ArrayDepth: 1, Elem: elem}
	if elem.Base == ArrayType && !elem.Nullable {
		d.ArrayDepth = elem.ArrayDepth + 1
		d.Elem = elem.Elem
	}
	return d, nil
}

func parseTuple(members []string) (*Descriptor, error) {
	d := &Descriptor{Base: TupleType}
	for _, m := range members {
		f, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

// parseMember accepts either a bare type or a "name type" pair. Names may be
// quoted with backticks or double quotes.
func parseMember(m string) (Field, error) {
	m = strings.TrimSpace(m)
	if m != "" && (m[0] == '`' || m[0] == '"') {
		end := strings.IndexByte(m[1:], m[0])
		if end < 0 {
			return Field{}, fmt.Errorf("unterminated member name in %q", m)
		}
		name := m[1 : end+1]
		if name == "" {
			return Field{}, fmt.Errorf("empty member name in %q", m)
		}
		t, err := parse(m[end+2:])
		if err != nil {
			return Field{}, err
		}
		return Field{Name: name, Type: t}, nil
	}
	if t, err := parse(m); err == nil {
		return Field{Type: t}, nil
	}
	idx := strings.IndexAny(m, " \t")
	if idx <= 0 {
		return Field{}, fmt.Errorf("invalid member %q", m)
	}
	t, err := parse(m[idx+1:])
	if err != nil {
		return Field{}, err
	}
	return Field{Name: m[:idx], Type: t}, nil
}

func parseScalar(name string, args []string) (*Descriptor, error) {
	bt, ok := LookupBaseType(name)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	d := &Descriptor{Base: bt, Nullable: bt == NullType}
	ps := defaults[bt]
	d.Precision, d.Scale = ps.precision, ps.scale
	switch bt {
	case DecimalType:
		if p, ok := wideIntPrecision[strings.ToLower(name)]; ok {
			d.Precision = p
			break
		}
		if err := applyDecimalArgs(d, args); err != nil {
			return nil, err
		}
	case TimestampType, TimestampTzType:
		if err := applyTimestampArgs(d, args); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func applyDecimalArgs(d *Descriptor, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("decimal takes at most two arguments, got %d", len(args))
	}
	if len(args) > 0 {
		p, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid precision %q", args[0])
		}
		d.Precision, d.Scale = p, 0
	}
	if len(args) > 1 {
		s, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return fmt.Errorf("invalid scale %q", args[1])
		}
		d.Scale = s
	}
	return nil
}

// applyTimestampArgs reads "(scale[, tz])" or "(tz)". A timezone the host
// does not know is dropped and the timestamp is treated as zone-less.
func applyTimestampArgs(d *Descriptor, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("timestamp takes at most two arguments, got %d", len(args))
	}
	var tz string
	switch len(args) {
	case 1:
		arg := strings.TrimSpace(args[0])
		if scale, err := strconv.Atoi(arg); err == nil {
			d.Scale = scale
		} else {
			tz = arg
		}
	case 2:
		scale, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid scale %q", args[0])
		}
		d.Scale = scale
		tz = strings.TrimSpace(args[1])
	}
	tz = strings.Trim(tz, `'"`)
	if tz != "" {
		if _, err := LocationLoader(tz); err == nil {
			d.TimeZone = tz
		}
	}
	return nil
}

// splitCall splits "name(arg, arg)" into its name and top-level arguments.
func splitCall(s string) (name string, args []string, hasArgs bool, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, ")") {
			return "", nil, false, fmt.Errorf("unbalanced parentheses in %q", s)
		}
		return s, nil, false, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, false, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	name = strings.TrimSpace(s[:open])
	if name == "" {
		return "", nil, false, fmt.Errorf("missing type name in %q", s)
	}
	args, err = splitArgs(s[open+1 : len(s)-1])
	if err != nil {
		return "", nil, false, err
	}
	return name, args, true, nil
}

// splitArgs splits on commas that are not nested in parentheses or quotes.
func splitArgs(s string) ([]string, error) {
	var (
		args  []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quote != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	last := strings.TrimSpace(s[start:])
	if last == "" && len(args) == 0 {
		return nil, errors.New("empty argument list")
	}
	if last == "" {
		return nil, fmt.Errorf("trailing comma in %q", s)
	}
	return append(args, last), nil
}
