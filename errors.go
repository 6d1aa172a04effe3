// Package goember is a Go client for the Ember analytical query engine.
//
// Copyright (c) 2024 Ember Data Inc. All rights reserved.
//
package goember

import (
	"errors"
	"fmt"

	"github.com/emberdb/goember/internal/statement"
	"github.com/emberdb/goember/internal/types"
)

// EmberError is an error type carrying Ember specific information.
type EmberError struct {
	Number      int
	SQLState    string
	QueryLabel  string
	Message     string
	MessageArgs []interface{}
	cause       error
}

func (ee *EmberError) Error() string {
	message := ee.Message
	if len(ee.MessageArgs) > 0 {
		message = fmt.Sprintf(ee.Message, ee.MessageArgs...)
	}
	if ee.QueryLabel != "" {
		return fmt.Sprintf("%06d (%s): %s: %s", ee.Number, ee.SQLState, ee.QueryLabel, message)
	}
	return fmt.Sprintf("%06d (%s): %s", ee.Number, ee.SQLState, message)
}

// Is matches any *EmberError with the same Number.
func (ee *EmberError) Is(target error) bool {
	var other *EmberError
	if !errors.As(target, &other) {
		return false
	}
	return ee.Number == other.Number
}

func (ee *EmberError) Unwrap() error {
	return ee.cause
}

// Kind returns the category of the error code.
func (ee *EmberError) Kind() ErrorKind {
	switch ee.Number / 1000 {
	case 260:
		return ConnectionError
	case 270:
		return ParseError
	case 271:
		return ParameterError
	case 272:
		return ConversionError
	case 273:
		return CancellationError
	case 274:
		return ProtocolError
	case 275:
		return StateError
	case 276:
		return ServerError
	}
	return UnknownError
}

// ErrorKind groups error codes.
type ErrorKind int

const (
	// UnknownError is any code outside the known ranges.
	UnknownError ErrorKind = iota
	// ConnectionError covers configuration, authentication and transport failures.
	ConnectionError
	// ParseError covers malformed SQL text, SET statements and type strings.
	ParseError
	// ParameterError covers marker substitution failures. Raised before any request is sent.
	ParameterError
	// ConversionError is raised per value access.
	ConversionError
	// CancellationError marks a statement that was aborted while running.
	CancellationError
	// ProtocolError covers a malformed result stream.
	ProtocolError
	// StateError covers calls made in the wrong lifecycle state.
	StateError
	// ServerError is an error reported by the engine.
	ServerError
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionError:
		return "ConnectionError"
	case ParseError:
		return "ParseError"
	case ParameterError:
		return "ParameterError"
	case ConversionError:
		return "ConversionError"
	case CancellationError:
		return "CancellationError"
	case ProtocolError:
		return "ProtocolError"
	case StateError:
		return "StateError"
	case ServerError:
		return "ServerError"
	}
	return "UnknownError"
}

// IsCancellation reports whether err, or any error it wraps, is a
// cancellation. Callers treat these as an expected outcome of Cancel.
func IsCancellation(err error) bool {
	var ee *EmberError
	return errors.As(err, &ee) && ee.Kind() == CancellationError
}

// KindOf returns the kind of the first EmberError in err's chain.
func KindOf(err error) ErrorKind {
	var ee *EmberError
	if errors.As(err, &ee) {
		return ee.Kind()
	}
	return UnknownError
}

const (
	// connection and configuration

	// ErrCodeEmptyHost is an error code for the case where a DSN doesn't include a host
	ErrCodeEmptyHost = 260001
	// ErrCodeEmptyUsernameCode is an error code for the case where a DSN doesn't include user parameter
	ErrCodeEmptyUsernameCode = 260002
	// ErrCodeEmptyPasswordCode is an error code for the case where a DSN doesn't include password parameter
	ErrCodeEmptyPasswordCode = 260003
	// ErrCodeFailedToParsePort is an error code for the case where a DSN includes an invalid port number
	ErrCodeFailedToParsePort = 260004
	// ErrCodeInvalidParameterValue is an error code for a DSN or config parameter that cannot be parsed
	ErrCodeInvalidParameterValue = 260005
	// ErrCodeUnknownAuthenticator is an error code for an unsupported authenticator name
	ErrCodeUnknownAuthenticator = 260006
	// ErrCodeAuthenticationFailed is an error code for a rejected login
	ErrCodeAuthenticationFailed = 260007
	// ErrCodeConnectionConfig is an error code for an unreadable connections.toml
	ErrCodeConnectionConfig = 260008
	// ErrCodePrivateKeyParseError is an error code for a private key that cannot be decoded
	ErrCodePrivateKeyParseError = 260009
	// ErrCodeRequestFailed is an error code for an HTTP request that did not produce a response
	ErrCodeRequestFailed = 260010
	// ErrCodeClientConfigFailed is an error code for an unusable client_config.json
	ErrCodeClientConfigFailed = 260011

	// parse

	// ErrCodeUnterminatedLiteral is an error code for a quoted literal or identifier left open
	ErrCodeUnterminatedLiteral = 270001
	// ErrCodeUnterminatedComment is an error code for a block comment left open
	ErrCodeUnterminatedComment = 270002
	// ErrCodeMalformedSet is an error code for a SET statement without exactly one key and value
	ErrCodeMalformedSet = 270003
	// ErrCodeMalformedType is an error code for a type string outside the grammar
	ErrCodeMalformedType = 270004

	// parameters

	// ErrCodeMissingParameterValue is an error code for a marker without a supplied value
	ErrCodeMissingParameterValue = 271001
	// ErrCodeParameterCountMismatch is an error code for a value count that differs from the marker count
	ErrCodeParameterCountMismatch = 271002
	// ErrCodeParameterPosition is an error code for a marker offset outside the statement
	ErrCodeParameterPosition = 271003
	// ErrCodeUnsupportedBindType is an error code for a Go value that has no literal form
	ErrCodeUnsupportedBindType = 271004

	// conversion

	// ErrCodeUnsupportedConversion is an error code for a target kind incompatible with the column type
	ErrCodeUnsupportedConversion = 272001
	// ErrCodeInvalidValue is an error code for field text that cannot be parsed as the column type
	ErrCodeInvalidValue = 272002
	// ErrCodeColumnIndexOutOfRange is an error code for a column index outside 1..N
	ErrCodeColumnIndexOutOfRange = 272003
	// ErrCodeUnknownColumn is an error code for a column name missing from the result
	ErrCodeUnknownColumn = 272004

	// cancellation

	// ErrCodeQueryCancelled is an error code for a statement aborted while running
	ErrCodeQueryCancelled = 273001

	// protocol

	// ErrCodeFieldCountMismatch is an error code for a row whose field count differs from the header
	ErrCodeFieldCountMismatch = 274001
	// ErrCodeMalformedHeader is an error code for a missing or inconsistent header
	ErrCodeMalformedHeader = 274002
	// ErrCodeStreamRead is an error code for a result stream that cannot be read
	ErrCodeStreamRead = 274003
	// ErrCodeCompressedBlock is an error code for a corrupt compression envelope
	ErrCodeCompressedBlock = 274004
	// ErrCodeUnexpectedResponse is an error code for a response body that does not match the request
	ErrCodeUnexpectedResponse = 274005

	// state

	// ErrCodeCursorClosed is an error code for access to a closed cursor
	ErrCodeCursorClosed = 275001
	// ErrCodeNoFieldRead is an error code for WasNull called before any field was read
	ErrCodeNoFieldRead = 275002
	// ErrCodeStatementClosed is an error code for use of a closed statement
	ErrCodeStatementClosed = 275003
	// ErrCodeConnectionClosed is an error code for use of a closed connection
	ErrCodeConnectionClosed = 275004
	// ErrCodeStatementBusy is an error code for executing a statement that is already running
	ErrCodeStatementBusy = 275005
	// ErrCodeAsyncMultiStatement is an error code for an async batch with more than one statement
	ErrCodeAsyncMultiStatement = 275006
	// ErrCodeNoCurrentRow is an error code for value access before Next or after the last row
	ErrCodeNoCurrentRow = 275007
	// ErrCodeNoResultSet is an error code for Query on a batch that produced no rows
	ErrCodeNoResultSet = 275008

	// server

	// ErrCodeQueryFailed is an error code for a statement the engine rejected
	ErrCodeQueryFailed = 276001
	// ErrCodeHTTPStatus is an error code for an unexpected HTTP status without an engine error body
	ErrCodeHTTPStatus = 276002
)

const (
	errMsgFailedToParsePort      = "failed to parse a port number. port: %v"
	errMsgInvalidParameterValue  = "invalid value for parameter %v: %v"
	errMsgUnknownAuthenticator   = "unknown authenticator: %v"
	errMsgUnsupportedConversion  = "cannot convert column %v of type %v to %v"
	errMsgInvalidValue           = "cannot parse %q as %v"
	errMsgColumnIndexOutOfRange  = "column index %v out of range 1..%v"
	errMsgUnknownColumn          = "unknown column %q"
	errMsgFieldCountMismatch     = "row %v has %v fields, expected %v"
	errMsgHTTPStatus             = "HTTP status %v: %v"
	errMsgQueryCancelled         = "query was cancelled"
	errMsgAsyncMultiStatement    = "asynchronous execution takes exactly one statement, got %v"
	errMsgUnsupportedBindType    = "unsupported parameter type %T"
	errMsgCompressedBlockCorrupt = "corrupt compressed block: %v"
	errMsgClientConfigFailed     = "client configuration failed: %v"
)

var (
	// preformatted errors

	// ErrEmptyHost is returned if a DSN doesn't include a host.
	ErrEmptyHost = &EmberError{
		Number:  ErrCodeEmptyHost,
		Message: "host is empty",
	}
	// ErrEmptyUsername is returned if a DSN doesn't include user parameter.
	ErrEmptyUsername = &EmberError{
		Number:  ErrCodeEmptyUsernameCode,
		Message: "user is empty",
	}
	// ErrEmptyPassword is returned if a DSN doesn't include password parameter.
	ErrEmptyPassword = &EmberError{
		Number:  ErrCodeEmptyPasswordCode,
		Message: "password is empty",
	}
	// ErrCursorClosed is returned by any access to a closed cursor.
	ErrCursorClosed = &EmberError{
		Number:  ErrCodeCursorClosed,
		Message: "result cursor is closed",
	}
	// ErrNoFieldRead is returned by WasNull before a field of the current row was read.
	ErrNoFieldRead = &EmberError{
		Number:  ErrCodeNoFieldRead,
		Message: "no field has been read on the current row",
	}
	// ErrNoCurrentRow is returned by getters before Next or after the last row.
	ErrNoCurrentRow = &EmberError{
		Number:  ErrCodeNoCurrentRow,
		Message: "cursor is not positioned on a row",
	}
	// ErrNoResultSet is returned by Query when no sub-statement produced rows.
	ErrNoResultSet = &EmberError{
		Number:  ErrCodeNoResultSet,
		Message: "statement did not produce a result set",
	}
	// ErrStatementClosed is returned by any use of a closed statement.
	ErrStatementClosed = &EmberError{
		Number:  ErrCodeStatementClosed,
		Message: "statement is closed",
	}
	// ErrConnectionClosed is returned by any use of a closed connection.
	ErrConnectionClosed = &EmberError{
		Number:  ErrCodeConnectionClosed,
		Message: "connection is closed",
	}
	// ErrStatementBusy is returned when a statement is executed while already running.
	ErrStatementBusy = &EmberError{
		Number:  ErrCodeStatementBusy,
		Message: "statement is already running",
	}
	// ErrQueryCancelled matches every cancellation error with errors.Is.
	ErrQueryCancelled = &EmberError{
		Number:  ErrCodeQueryCancelled,
		Message: errMsgQueryCancelled,
	}
)

func newCancellationError(label string) *EmberError {
	return &EmberError{
		Number:     ErrCodeQueryCancelled,
		SQLState:   SQLStateQueryCanceled,
		QueryLabel: label,
		Message:    errMsgQueryCancelled,
	}
}

func newConversionError(column int, from, to string) *EmberError {
	return &EmberError{
		Number:      ErrCodeUnsupportedConversion,
		SQLState:    SQLStateInvalidDataTypeConversion,
		Message:     errMsgUnsupportedConversion,
		MessageArgs: []interface{}{column, from, to},
	}
}

func newInvalidValueError(raw, kind string, cause error) *EmberError {
	return &EmberError{
		Number:      ErrCodeInvalidValue,
		SQLState:    SQLStateInvalidDataTypeConversion,
		Message:     errMsgInvalidValue,
		MessageArgs: []interface{}{raw, kind},
		cause:       cause,
	}
}

func newProtocolError(code int, cause error) *EmberError {
	return &EmberError{
		Number:  code,
		Message: cause.Error(),
		cause:   cause,
	}
}

// internalErrorCodes maps sentinel errors of the internal packages to codes.
var internalErrorCodes = []struct {
	sentinel error
	code     int
	sqlState string
}{
	{statement.ErrUnterminatedLiteral, ErrCodeUnterminatedLiteral, SQLStateSyntaxError},
	{statement.ErrUnterminatedComment, ErrCodeUnterminatedComment, SQLStateSyntaxError},
	{statement.ErrMalformedSet, ErrCodeMalformedSet, SQLStateSyntaxError},
	{statement.ErrMissingParameterValue, ErrCodeMissingParameterValue, SQLStateInvalidParameter},
	{statement.ErrParameterCountMismatch, ErrCodeParameterCountMismatch, SQLStateInvalidParameter},
	{statement.ErrParameterPosition, ErrCodeParameterPosition, SQLStateInvalidParameter},
	{types.ErrMalformedType, ErrCodeMalformedType, SQLStateSyntaxError},
}

// toEmberError wraps errors from the internal packages into an EmberError.
// EmberErrors and unknown errors are returned unchanged.
func toEmberError(err error) error {
	if err == nil {
		return nil
	}
	var ee *EmberError
	if errors.As(err, &ee) {
		return err
	}
	for _, m := range internalErrorCodes {
		if errors.Is(err, m.sentinel) {
			return &EmberError{
				Number:   m.code,
				SQLState: m.sqlState,
				Message:  err.Error(),
				cause:    err,
			}
		}
	}
	return err
}
