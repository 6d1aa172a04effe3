package types

import (
	"strings"
)

// BaseType is the base type tag of a column or of a nested element.
type BaseType int

const (
	// IntegerType is a 32-bit (or narrower) integer.
	IntegerType BaseType = iota
	// LongType is a 64-bit integer.
	LongType
	// RealType is a single precision float.
	RealType
	// DoubleType is a double precision float.
	DoubleType
	// DecimalType is a fixed point number with precision and scale.
	DecimalType
	// BooleanType is a boolean.
	BooleanType
	// DateType is a calendar date.
	DateType
	// TimestampType is a timestamp, optionally bound to a named timezone.
	TimestampType
	// TimestampTzType is a timestamp carrying its own offset.
	TimestampTzType
	// TextType is a variable length string.
	TextType
	// BinaryType is a byte array.
	BinaryType
	// ArrayType is an array of arbitrary depth over one element type.
	ArrayType
	// TupleType is a tuple or struct of ordered fields.
	TupleType
	// GeographyType is a geography value in text form.
	GeographyType
	// JSONType is a JSON document.
	JSONType
	// NullType is the type of an untyped NULL.
	NullType
)

var baseTypeNames = map[BaseType]string{
	IntegerType:     "int",
	LongType:        "bigint",
	RealType:        "real",
	DoubleType:      "double",
	DecimalType:     "numeric",
	BooleanType:     "boolean",
	DateType:        "date",
	TimestampType:   "timestamp",
	TimestampTzType: "timestamptz",
	TextType:        "text",
	BinaryType:      "bytea",
	ArrayType:       "array",
	TupleType:       "tuple",
	GeographyType:   "geography",
	JSONType:        "json",
	NullType:        "null",
}

func (bt BaseType) String() string {
	if name, ok := baseTypeNames[bt]; ok {
		return name
	}
	return "unknown"
}

// IsNumeric reports whether values of the type are numbers.
func (bt BaseType) IsNumeric() bool {
	switch bt {
	case IntegerType, LongType, RealType, DoubleType, DecimalType:
		return true
	}
	return false
}

// IsTemporal reports whether values of the type are dates or timestamps.
func (bt BaseType) IsTemporal() bool {
	return bt == DateType || bt == TimestampType || bt == TimestampTzType
}

// IsTextual reports whether the textual form of a value is the value itself,
// in which case the NULL keyword is a legitimate value rather than a sentinel.
func (bt BaseType) IsTextual() bool {
	switch bt {
	case TextType, BinaryType, JSONType, GeographyType:
		return true
	}
	return false
}

// typeNames maps every accepted (lower case) type name to its base type.
var typeNames = map[string]BaseType{
	"int":              IntegerType,
	"integer":          IntegerType,
	"int4":             IntegerType,
	"int8":             IntegerType,
	"int16":            IntegerType,
	"int32":            IntegerType,
	"uint8":            IntegerType,
	"uint16":           IntegerType,
	"smallint":         IntegerType,
	"tinyint":          IntegerType,
	"long":             LongType,
	"bigint":           LongType,
	"int64":            LongType,
	"uint32":           LongType,
	"uint64":           LongType,
	"int128":           DecimalType,
	"uint128":          DecimalType,
	"int256":           DecimalType,
	"uint256":          DecimalType,
	"real":             RealType,
	"float":            RealType,
	"float4":           RealType,
	"float32":          RealType,
	"double":           DoubleType,
	"double precision": DoubleType,
	"float8":           DoubleType,
	"float64":          DoubleType,
	"decimal":          DecimalType,
	"numeric":          DecimalType,
	"boolean":          BooleanType,
	"bool":             BooleanType,
	"date":             DateType,
	"pgdate":           DateType,
	"date32":           DateType,
	"date_ext":         DateType,
	"timestamp":        TimestampType,
	"timestampntz":     TimestampType,
	"timestamp_ext":    TimestampType,
	"datetime":         TimestampType,
	"datetime64":       TimestampType,
	"timestamptz":      TimestampTzType,
	"text":             TextType,
	"string":           TextType,
	"varchar":          TextType,
	"fixedstring":      TextType,
	"enum":             TextType,
	"enum8":            TextType,
	"enum16":           TextType,
	"map":              TextType,
	"bytea":            BinaryType,
	"binary":           BinaryType,
	"geography":        GeographyType,
	"json":             JSONType,
	"null":             NullType,
	"nothing":          NullType,
}

type precisionScale struct {
	precision int
	scale     int
}

// defaults holds the precision and scale reported when a type string carries
// no arguments.
var defaults = map[BaseType]precisionScale{
	IntegerType:     {11, 0},
	LongType:        {20, 0},
	RealType:        {8, 8},
	DoubleType:      {17, 17},
	DecimalType:     {38, 0},
	BooleanType:     {1, 0},
	DateType:        {10, 0},
	TimestampType:   {6, 0},
	TimestampTzType: {6, 0},
}

// wideIntPrecision is the number of digits of the integers wider than 64 bits,
// which are read as decimals of scale 0.
var wideIntPrecision = map[string]int{
	"int128":  39,
	"uint128": 39,
	"int256":  77,
	"uint256": 78,
}

// LookupBaseType returns the base type registered for name, ignoring case
// and repeated inner whitespace.
func LookupBaseType(name string) (BaseType, bool) {
	bt, ok := typeNames[strings.Join(strings.Fields(strings.ToLower(name)), " ")]
	return bt, ok
}
