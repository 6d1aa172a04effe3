// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"encoding/hex"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/emberdb/goember/internal/types"
)

// ValueKind is the Go representation requested from a column.
type ValueKind int

const (
	// KindDefault returns the natural Go type of the column type.
	KindDefault ValueKind = iota
	// KindBool returns bool.
	KindBool
	// KindInt32 returns int32.
	KindInt32
	// KindInt64 returns int64.
	KindInt64
	// KindFloat32 returns float32.
	KindFloat32
	// KindFloat64 returns float64.
	KindFloat64
	// KindDecimal returns *big.Float.
	KindDecimal
	// KindString returns the unescaped field text.
	KindString
	// KindBytes returns []byte.
	KindBytes
	// KindTime returns time.Time.
	KindTime
	// KindArray returns []any, nested for multi-dimensional arrays.
	KindArray
	// KindStruct returns StructValue.
	KindStruct
)

var valueKindNames = map[ValueKind]string{
	KindDefault: "default",
	KindBool:    "boolean",
	KindInt32:   "int",
	KindInt64:   "long",
	KindFloat32: "float",
	KindFloat64: "double",
	KindDecimal: "decimal",
	KindString:  "string",
	KindBytes:   "bytes",
	KindTime:    "time",
	KindArray:   "array",
	KindStruct:  "struct",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// decimalPrecisionBits is the smallest mantissa used for decimals. It keeps
// 38 significant digits.
const decimalPrecisionBits = 128

// decimalPrec returns the mantissa size for a decimal column, wide enough for
// its declared number of digits.
func decimalPrec(d *types.Descriptor) uint {
	if d.Precision <= 38 {
		return decimalPrecisionBits
	}
	return uint(d.Precision) * 4
}

// StructField is one member of a decoded tuple or struct value. Name is
// empty for tuple members.
type StructField struct {
	Name  string
	Value any
}

// StructValue is a decoded tuple or struct, in declaration order.
type StructValue []StructField

// Get returns the value of the first member called name.
func (s StructValue) Get(name string) (any, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// defaultKind is the kind returned for KindDefault.
func defaultKind(base types.BaseType) ValueKind {
	switch base {
	case types.IntegerType:
		return KindInt32
	case types.LongType:
		return KindInt64
	case types.RealType:
		return KindFloat32
	case types.DoubleType:
		return KindFloat64
	case types.DecimalType:
		return KindDecimal
	case types.BooleanType:
		return KindBool
	case types.DateType, types.TimestampType, types.TimestampTzType:
		return KindTime
	case types.BinaryType:
		return KindBytes
	case types.ArrayType:
		return KindArray
	case types.TupleType:
		return KindStruct
	}
	return KindString
}

var numericKinds = []ValueKind{KindBool, KindInt32, KindInt64, KindFloat32, KindFloat64, KindDecimal}

// canConvert reports whether values of base can be returned as kind. Every
// type converts to its text; text parses into any scalar kind.
func canConvert(base types.BaseType, kind ValueKind) bool {
	if kind == KindString {
		return true
	}
	var allowed []ValueKind
	switch base {
	case types.NullType:
		return true
	case types.IntegerType, types.LongType, types.RealType, types.DoubleType, types.DecimalType:
		allowed = numericKinds
	case types.BooleanType:
		allowed = []ValueKind{KindBool, KindInt32, KindInt64}
	case types.DateType, types.TimestampType, types.TimestampTzType:
		allowed = []ValueKind{KindTime}
	case types.TextType:
		allowed = append([]ValueKind{KindBytes, KindTime}, numericKinds...)
	case types.BinaryType, types.JSONType, types.GeographyType:
		allowed = []ValueKind{KindBytes}
	case types.ArrayType:
		allowed = []ValueKind{KindArray}
	case types.TupleType:
		allowed = []ValueKind{KindStruct}
	}
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// isNullField reports whether raw is the null sentinel for the type. The
// NULL keyword is a legitimate value of textual types.
func isNullField(base types.BaseType, raw string) bool {
	if base == types.NullType || raw == `\N` {
		return true
	}
	return !base.IsTextual() && strings.EqualFold(raw, "null")
}

// convertValue converts unescaped field text. The caller has checked
// canConvert and null.
func convertValue(d *types.Descriptor, s string, kind ValueKind) (any, error) {
	if kind == KindDefault {
		kind = defaultKind(d.Base)
	}
	switch kind {
	case KindString:
		return s, nil
	case KindBytes:
		if d.Base == types.BinaryType {
			return decodeBytea(s)
		}
		return []byte(s), nil
	case KindBool:
		return parseBool(s)
	case KindInt32:
		v, err := parseInteger(s, 32)
		if err != nil {
			return nil, newInvalidValueError(s, kind.String(), err)
		}
		return int32(v), nil
	case KindInt64:
		v, err := parseInteger(s, 64)
		if err != nil {
			return nil, newInvalidValueError(s, kind.String(), err)
		}
		return v, nil
	case KindFloat32:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return nil, newInvalidValueError(s, kind.String(), err)
		}
		return float32(v), nil
	case KindFloat64:
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, newInvalidValueError(s, kind.String(), err)
		}
		return v, nil
	case KindDecimal:
		v, ok := new(big.Float).SetPrec(decimalPrec(d)).SetString(strings.TrimSpace(s))
		if !ok {
			return nil, newInvalidValueError(s, kind.String(), nil)
		}
		return v, nil
	case KindTime:
		t, err := parseTime(d, s)
		if err != nil {
			return nil, newInvalidValueError(s, kind.String(), err)
		}
		return t, nil
	case KindArray, KindStruct:
		return parseNested(s, d)
	}
	return nil, newInvalidValueError(s, kind.String(), nil)
}

// parseInteger accepts integral text, and integral floating point text such
// as "3.0" or "1e3", within the bit size.
func parseInteger(s string, bitSize int) (int64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 10, bitSize)
	if err == nil {
		return v, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, err
	}
	limit := math.Ldexp(1, bitSize-1)
	if f < -limit || f >= limit {
		return 0, err
	}
	return int64(f), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1", "y", "yes", "on":
		return true, nil
	case "f", "false", "0", "n", "no", "off":
		return false, nil
	}
	return false, newInvalidValueError(s, KindBool.String(), nil)
}

// decodeBytea reads the hex form "\x0a0b". Other text is returned as its bytes.
func decodeBytea(s string) ([]byte, error) {
	if !strings.HasPrefix(s, `\x`) {
		return []byte(s), nil
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, newInvalidValueError(s, KindBytes.String(), err)
	}
	return b, nil
}

// unescapeField reverses the backslash escaping of the tab separated format.
func unescapeField(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case 'x':
			// bytea hex marker is kept for decodeBytea
			b.WriteString(`\x`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
