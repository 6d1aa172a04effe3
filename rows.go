// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/emberdb/goember/internal/types"
)

// Column is one column of a result.
type Column struct {
	Name string
	Type *types.Descriptor
}

type nullState uint8

const (
	nullUnknown nullState = iota
	nullNo
	nullYes
)

// ResultCursor reads the rows of one result. It is forward only and not
// safe for concurrent use. Column indexes are 1-based.
//
//	for cur.Next() {
//		id, err := cur.GetInt64(1)
//		...
//	}
//	if err := cur.Err(); err != nil {
//		...
//	}
type ResultCursor struct {
	label     string
	body      io.ReadCloser
	reader    *bufio.Reader
	columns   []Column
	nameIndex map[string]int
	maxRows   int

	rowNum   int // rows returned by Next
	line     string
	fields   []string
	splitRow int // row number fields were split from

	peeked  bool
	peekOK  bool
	peekVal string
	peekErr error

	lastNull nullState
	done     bool
	closed   bool
	err      error
}

// newResultCursor reads the two header lines. maxRows caps the number of
// rows returned, 0 for no cap.
func newResultCursor(body io.ReadCloser, maxRows int, label string) (*ResultCursor, error) {
	rc := &ResultCursor{
		label:   label,
		body:    body,
		reader:  bufio.NewReaderSize(body, 64*1024),
		maxRows: maxRows,
	}
	if err := rc.readHeader(); err != nil {
		body.Close()
		return nil, err
	}
	logger.Debugf("result header read. label: %v, columns: %v", label, len(rc.columns))
	return rc, nil
}

func (rc *ResultCursor) readHeader() error {
	names, ok, err := rc.readLine()
	if err != nil {
		return err
	}
	if !ok {
		return rc.headerError("missing column names")
	}
	typeLine, ok, err := rc.readLine()
	if err != nil {
		return err
	}
	if !ok {
		return rc.headerError("missing column types")
	}
	nameFields := strings.Split(names, "\t")
	typeFields := strings.Split(typeLine, "\t")
	if len(nameFields) != len(typeFields) {
		return rc.headerError(fmt.Sprintf("%d column names but %d types", len(nameFields), len(typeFields)))
	}
	rc.columns = make([]Column, len(nameFields))
	rc.nameIndex = make(map[string]int, len(nameFields))
	for i := range nameFields {
		d, err := types.Parse(unescapeField(typeFields[i]))
		if err != nil {
			return toEmberError(err)
		}
		name := unescapeField(nameFields[i])
		rc.columns[i] = Column{Name: name, Type: d}
		key := strings.ToLower(name)
		if _, dup := rc.nameIndex[key]; !dup {
			rc.nameIndex[key] = i + 1
		}
	}
	return nil
}

func (rc *ResultCursor) headerError(msg string) error {
	return &EmberError{
		Number:     ErrCodeMalformedHeader,
		QueryLabel: rc.label,
		Message:    "malformed result header: " + msg,
	}
}

// readLine returns the next line without its terminator. ok is false at the
// end of the stream.
func (rc *ResultCursor) readLine() (line string, ok bool, err error) {
	line, err = rc.reader.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			ee := newProtocolError(ErrCodeStreamRead, err)
			ee.QueryLabel = rc.label
			return "", false, ee
		}
		if line == "" {
			return "", false, nil
		}
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, true, nil
}

// nextLine returns the peeked line when there is one.
func (rc *ResultCursor) nextLine() (string, bool, error) {
	if rc.peeked {
		rc.peeked = false
		return rc.peekVal, rc.peekOK, rc.peekErr
	}
	return rc.readLine()
}

func (rc *ResultCursor) peek() (bool, error) {
	if !rc.peeked {
		rc.peekVal, rc.peekOK, rc.peekErr = rc.readLine()
		rc.peeked = true
	}
	return rc.peekOK, rc.peekErr
}

func (rc *ResultCursor) capReached() bool {
	return rc.maxRows > 0 && rc.rowNum >= rc.maxRows
}

// Next advances to the next row. It returns false at the end of the result,
// when the row cap is reached, or on error; Err tells the cases apart.
func (rc *ResultCursor) Next() bool {
	if rc.closed {
		rc.err = ErrCursorClosed
		return false
	}
	if rc.done || rc.err != nil {
		return false
	}
	if rc.capReached() {
		rc.finish()
		return false
	}
	line, ok, err := rc.nextLine()
	if err != nil {
		rc.err = err
		return false
	}
	if !ok {
		rc.finish()
		return false
	}
	if n := strings.Count(line, "\t") + 1; n != len(rc.columns) {
		rc.err = &EmberError{
			Number:      ErrCodeFieldCountMismatch,
			QueryLabel:  rc.label,
			Message:     errMsgFieldCountMismatch,
			MessageArgs: []interface{}{rc.rowNum + 1, n, len(rc.columns)},
		}
		return false
	}
	rc.rowNum++
	rc.line = line
	rc.fields = nil
	rc.lastNull = nullUnknown
	return true
}

func (rc *ResultCursor) finish() {
	rc.done = true
	rc.line = ""
	rc.fields = nil
	rc.lastNull = nullUnknown
}

// Err returns the error that stopped Next, if any.
func (rc *ResultCursor) Err() error {
	return rc.err
}

// currentFields splits the current line once per row.
func (rc *ResultCursor) currentFields() []string {
	if rc.fields == nil || rc.splitRow != rc.rowNum {
		rc.fields = strings.Split(rc.line, "\t")
		rc.splitRow = rc.rowNum
	}
	return rc.fields
}

// Columns returns the result schema.
func (rc *ResultCursor) Columns() []Column {
	return rc.columns
}

// ColumnCount returns the number of columns.
func (rc *ResultCursor) ColumnCount() int {
	return len(rc.columns)
}

// FindColumn returns the 1-based index of the first column called name,
// compared case-insensitively.
func (rc *ResultCursor) FindColumn(name string) (int, error) {
	if rc.closed {
		return 0, ErrCursorClosed
	}
	idx, ok := rc.nameIndex[strings.ToLower(name)]
	if !ok {
		return 0, &EmberError{
			Number:      ErrCodeUnknownColumn,
			SQLState:    SQLStateInvalidParameter,
			Message:     errMsgUnknownColumn,
			MessageArgs: []interface{}{name},
		}
	}
	return idx, nil
}

// RowNumber returns the 1-based number of the current row, 0 before the
// first call to Next.
func (rc *ResultCursor) RowNumber() int {
	return rc.rowNum
}

// Label returns the label of the query that produced the result.
func (rc *ResultCursor) Label() string {
	return rc.label
}

// Get returns column col of the current row as kind. A null field returns
// nil without error.
func (rc *ResultCursor) Get(col int, kind ValueKind) (any, error) {
	if rc.closed {
		return nil, ErrCursorClosed
	}
	if rc.rowNum == 0 || rc.done {
		return nil, ErrNoCurrentRow
	}
	if col < 1 || col > len(rc.columns) {
		return nil, &EmberError{
			Number:      ErrCodeColumnIndexOutOfRange,
			SQLState:    SQLStateInvalidParameter,
			Message:     errMsgColumnIndexOutOfRange,
			MessageArgs: []interface{}{col, len(rc.columns)},
		}
	}
	d := rc.columns[col-1].Type
	if !canConvert(d.Base, kind) {
		return nil, newConversionError(col, d.String(), kind.String())
	}
	raw := rc.currentFields()[col-1]
	if isNullField(d.Base, raw) {
		rc.lastNull = nullYes
		return nil, nil
	}
	rc.lastNull = nullNo
	return convertValue(d, unescapeField(raw), kind)
}

// GetByName is Get with the column looked up by name.
func (rc *ResultCursor) GetByName(name string, kind ValueKind) (any, error) {
	col, err := rc.FindColumn(name)
	if err != nil {
		return nil, err
	}
	return rc.Get(col, kind)
}

// WasNull reports whether the last field read on the current row was null.
func (rc *ResultCursor) WasNull() (bool, error) {
	if rc.closed {
		return false, ErrCursorClosed
	}
	if rc.lastNull == nullUnknown {
		return false, ErrNoFieldRead
	}
	return rc.lastNull == nullYes, nil
}

// IsLast reports whether the current row is the last one. It may read the
// next line of the stream ahead of Next.
func (rc *ResultCursor) IsLast() (bool, error) {
	if rc.closed {
		return false, ErrCursorClosed
	}
	if rc.rowNum == 0 || rc.done {
		return false, nil
	}
	if rc.capReached() {
		return true, nil
	}
	ok, err := rc.peek()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// IsAfterLast reports whether Next has moved past the last row of a
// non-empty result.
func (rc *ResultCursor) IsAfterLast() (bool, error) {
	if rc.closed {
		return false, ErrCursorClosed
	}
	return rc.done && rc.rowNum > 0, nil
}

// IsBeforeFirst reports whether the cursor is before the first row of a
// non-empty result. It may read the first row ahead of Next.
func (rc *ResultCursor) IsBeforeFirst() (bool, error) {
	if rc.closed {
		return false, ErrCursorClosed
	}
	if rc.rowNum > 0 || rc.done {
		return false, nil
	}
	ok, err := rc.peek()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Close releases the stream. It is safe to call more than once.
func (rc *ResultCursor) Close() error {
	if rc.closed {
		return nil
	}
	rc.closed = true
	rc.fields = nil
	return rc.body.Close()
}

// IsClosed reports whether Close was called.
func (rc *ResultCursor) IsClosed() bool {
	return rc.closed
}

func getTyped[T any](rc *ResultCursor, col int, kind ValueKind) (T, error) {
	var zero T
	v, err := rc.Get(col, kind)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, newConversionError(col, rc.columns[col-1].Type.String(), kind.String())
	}
	return t, nil
}

// GetInt32 returns column col as int32, 0 for null.
func (rc *ResultCursor) GetInt32(col int) (int32, error) {
	return getTyped[int32](rc, col, KindInt32)
}

// GetInt64 returns column col as int64, 0 for null.
func (rc *ResultCursor) GetInt64(col int) (int64, error) {
	return getTyped[int64](rc, col, KindInt64)
}

// GetFloat32 returns column col as float32, 0 for null.
func (rc *ResultCursor) GetFloat32(col int) (float32, error) {
	return getTyped[float32](rc, col, KindFloat32)
}

// GetFloat64 returns column col as float64, 0 for null.
func (rc *ResultCursor) GetFloat64(col int) (float64, error) {
	return getTyped[float64](rc, col, KindFloat64)
}

// GetDecimal returns column col as a binary floating point number, nil for
// null. The mantissa holds every digit of the column's declared precision
// (at least 128 bits), but fractions such as 0.1 are rounded to the nearest
// binary value.
func (rc *ResultCursor) GetDecimal(col int) (*big.Float, error) {
	return getTyped[*big.Float](rc, col, KindDecimal)
}

// GetString returns the text of column col, "" for null.
func (rc *ResultCursor) GetString(col int) (string, error) {
	return getTyped[string](rc, col, KindString)
}

// GetBool returns column col as bool, false for null.
func (rc *ResultCursor) GetBool(col int) (bool, error) {
	return getTyped[bool](rc, col, KindBool)
}

// GetTime returns column col as time.Time, the zero time for null.
func (rc *ResultCursor) GetTime(col int) (time.Time, error) {
	return getTyped[time.Time](rc, col, KindTime)
}

// GetBytes returns column col as bytes, nil for null.
func (rc *ResultCursor) GetBytes(col int) ([]byte, error) {
	return getTyped[[]byte](rc, col, KindBytes)
}

// GetArray returns column col as a slice, nested once per array level.
func (rc *ResultCursor) GetArray(col int) ([]any, error) {
	return getTyped[[]any](rc, col, KindArray)
}

// GetStruct returns column col as its members in declaration order.
func (rc *ResultCursor) GetStruct(col int) (StructValue, error) {
	return getTyped[StructValue](rc, col, KindStruct)
}

// Scan copies the current row into dest, one pointer per column. Supported
// pointer types are *any and the pointers to the types of the typed getters.
func (rc *ResultCursor) Scan(dest ...any) error {
	if rc.closed {
		return ErrCursorClosed
	}
	if rc.rowNum == 0 || rc.done {
		return ErrNoCurrentRow
	}
	if len(dest) != len(rc.columns) {
		return &EmberError{
			Number:      ErrCodeColumnIndexOutOfRange,
			Message:     "Scan expects %v destinations, got %v",
			MessageArgs: []interface{}{len(rc.columns), len(dest)},
		}
	}
	for i, d := range dest {
		col := i + 1
		var err error
		switch p := d.(type) {
		case *any:
			*p, err = rc.Get(col, KindDefault)
		case *int32:
			*p, err = rc.GetInt32(col)
		case *int64:
			*p, err = rc.GetInt64(col)
		case *int:
			var v int64
			v, err = rc.GetInt64(col)
			*p = int(v)
		case *float32:
			*p, err = rc.GetFloat32(col)
		case *float64:
			*p, err = rc.GetFloat64(col)
		case **big.Float:
			*p, err = rc.GetDecimal(col)
		case *string:
			*p, err = rc.GetString(col)
		case *bool:
			*p, err = rc.GetBool(col)
		case *time.Time:
			*p, err = rc.GetTime(col)
		case *[]byte:
			*p, err = rc.GetBytes(col)
		case *[]any:
			*p, err = rc.GetArray(col)
		case *StructValue:
			*p, err = rc.GetStruct(col)
		default:
			return &EmberError{
				Number:      ErrCodeUnsupportedBindType,
				Message:     errMsgUnsupportedBindType,
				MessageArgs: []interface{}{d},
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
