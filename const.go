// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"fmt"
	"runtime"
)

const (
	headerAuthorizationKey = "Authorization"
	headerContentTypeKey   = "Content-Type"
	headerAcceptKey        = "Accept"
	headerUserAgentKey     = "User-Agent"
	headerContentEncoding  = "Content-Encoding"
	headerAcceptEncoding   = "Accept-Encoding"
	headerRequestID        = "X-Ember-Request-Id"
	headerUpdateParameters = "X-Ember-Update-Parameters"

	headerBearerToken = "Bearer %s"

	contentTypeApplicationJSON = "application/json"
	contentTypeFormURLEncoded  = "application/x-www-form-urlencoded"
	contentTypeTextPlain       = "text/plain; charset=utf-8"
	acceptTypeTabSeparated     = "text/tab-separated-values"
)

const (
	queryPath       = "/"
	cancelPath      = "/cancel"
	statusPath      = "/query/status"
	loginPath       = "/auth/v1/login"
	tokenPath       = "/auth/v1/token"
	outputFormat    = "TabSeparatedWithNamesAndTypes"
	paramQueryLabel = "query_label"
	paramDatabase   = "database"
	paramEngine     = "engine"
	paramAccount    = "account_name"
	paramOutput     = "output_format"
	paramCompress   = "compress"
	paramAsync      = "async"
)

// SQL states attached to errors raised by the client itself.
const (
	SQLStateSyntaxError               = "42601"
	SQLStateInvalidParameter          = "22023"
	SQLStateInvalidDataTypeConversion = "22018"
	SQLStateQueryCanceled             = "57014"
	SQLStateConnectionFailure         = "08006"
	SQLStateInvalidAuthorization      = "28000"
)

const clientType = "Go"

var userAgent = fmt.Sprintf("%v/%v (%v-%v) goember/%v",
	clientType, runtime.Version(), runtime.GOOS, runtime.GOARCH, EmberGoDriverVersion)
