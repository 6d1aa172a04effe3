// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	dateLiteralLayout      = "2006-01-02"
	timestampLiteralLayout = "2006-01-02 15:04:05.999999"
)

// Date wraps a time.Time that FormatLiteral renders as a date literal.
type Date time.Time

// FormatLiteral renders v as SQL literal text for parameter substitution:
// strings are quoted with embedded quotes and backslashes escaped, times
// become quoted timestamps, byte slices become bytea hex strings and nil
// becomes NULL. Slices and arrays render as array literals.
func FormatLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteString(x), nil
	case []byte:
		if x == nil {
			return "NULL", nil
		}
		return `'\x` + hex.EncodeToString(x) + `'::bytea`, nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x), 32), nil
	case float64:
		return formatFloat(x, 64), nil
	case *big.Float:
		if x == nil {
			return "NULL", nil
		}
		return x.Text('f', -1), nil
	case *big.Int:
		if x == nil {
			return "NULL", nil
		}
		return x.String(), nil
	case time.Time:
		return "'" + x.Format(timestampLiteralLayout) + "'", nil
	case Date:
		return "'" + time.Time(x).Format(dateLiteralLayout) + "'", nil
	case fmt.Stringer:
		return quoteString(x.String()), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return FormatLiteral(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "NULL", nil
		}
		elems := make([]string, rv.Len())
		for i := range elems {
			s, err := FormatLiteral(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			elems[i] = s
		}
		return "[" + strings.Join(elems, ",") + "]", nil
	}
	return "", &EmberError{
		Number:      ErrCodeUnsupportedBindType,
		SQLState:    SQLStateInvalidParameter,
		Message:     errMsgUnsupportedBindType,
		MessageArgs: []interface{}{v},
	}
}

// quoteString escapes backslashes and single quotes.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			b.WriteString(`''`)
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'inf'"
	case math.IsInf(f, -1):
		return "'-inf'"
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

// formatArgs renders positional arguments as values for markers 1..n.
func formatArgs(args []any) (map[int]string, error) {
	values := make(map[int]string, len(args))
	for i, a := range args {
		s, err := FormatLiteral(a)
		if err != nil {
			return nil, err
		}
		values[i+1] = s
	}
	return values, nil
}
