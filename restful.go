// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emberdb/goember/internal/query"
	"github.com/klauspost/compress/gzip"
)

// queryRequest is one sub-statement submission.
type queryRequest struct {
	SQL    string
	Label  string
	Params url.Values // session properties and target (database, engine, account)
	Async  bool
}

// queryResponse is a successful submission. Body yields the decompressed
// result stream, or the JSON acknowledgement of an async submission.
type queryResponse struct {
	Body io.ReadCloser
	// UpdateParameters are session properties the engine changed while
	// running the statement.
	UpdateParameters map[string]string
}

type emberRestful struct {
	Protocol       string
	Host           string
	Port           int
	Compress       bool
	RequestTimeout time.Duration // control request timeout
	LoginTimeout   time.Duration
	MaxRetryCount  int

	Client *http.Client
	Auth   Authenticator

	FuncExecuteQuery func(ctx context.Context, sr *emberRestful, req *queryRequest) (*queryResponse, error)
	FuncAbortQuery   func(ctx context.Context, sr *emberRestful, label string) (bool, error)
	FuncQueryStatus  func(ctx context.Context, sr *emberRestful, label string) (*query.StatusResponse, error)
	FuncPostAuth     func(ctx context.Context, sr *emberRestful, path string, headers map[string]string, body []byte, timeout time.Duration) (*query.AuthResponse, error)
}

func newEmberRestful(cfg *Config) (*emberRestful, error) {
	sr := &emberRestful{
		Protocol:         cfg.Protocol,
		Host:             cfg.Host,
		Port:             cfg.Port,
		Compress:         cfg.Compress,
		RequestTimeout:   cfg.RequestTimeout,
		LoginTimeout:     cfg.LoginTimeout,
		MaxRetryCount:    cfg.MaxRetryCount,
		Client:           &http.Client{Transport: newTransportFactory(cfg).createTransport()},
		FuncExecuteQuery: executeQuery,
		FuncAbortQuery:   abortQuery,
		FuncQueryStatus:  queryStatus,
		FuncPostAuth:     postAuth,
	}
	auth, err := newAuthenticator(cfg, sr)
	if err != nil {
		return nil, err
	}
	sr.Auth = auth
	return sr, nil
}

func (sr *emberRestful) baseURL() string {
	return fmt.Sprintf("%s://%s:%d", sr.Protocol, sr.Host, sr.Port)
}

func (sr *emberRestful) getFullURL(path string, params url.Values) *url.URL {
	fullURL, _ := url.Parse(sr.baseURL() + path)
	if len(params) > 0 {
		fullURL.RawQuery = params.Encode()
	}
	return fullURL
}

// authorize sets the Authorization header from the current credentials.
func (sr *emberRestful) authorize(ctx context.Context, headers map[string]string) error {
	creds, err := sr.Auth.Authenticate(ctx)
	if err != nil {
		return err
	}
	if h := creds.authorizationHeader(); h != "" {
		headers[headerAuthorizationKey] = h
	} else {
		delete(headers, headerAuthorizationKey)
	}
	return nil
}

func newHTTPRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, urlStr, body)
}

// executeQuery submits one statement. It is never retried, except once
// after a 401 since a rejected token means the statement did not run.
func executeQuery(ctx context.Context, sr *emberRestful, req *queryRequest) (*queryResponse, error) {
	params := url.Values{}
	for k, vs := range req.Params {
		params[k] = vs
	}
	params.Set(paramQueryLabel, req.Label)
	params.Set(paramOutput, outputFormat)
	if sr.Compress && !req.Async {
		params.Set(paramCompress, "1")
	}
	if req.Async {
		params.Set(paramAsync, "1")
	}
	fullURL := sr.getFullURL(queryPath, params)
	headers := map[string]string{
		headerContentTypeKey: contentTypeTextPlain,
		headerAcceptKey:      acceptTypeTabSeparated,
		headerAcceptEncoding: "gzip",
		headerUserAgentKey:   userAgent,
		headerRequestID:      newRequestID(),
	}
	logger.WithContext(ctx).Debugf("submitting query. label: %v, async: %v", req.Label, req.Async)

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		if err := sr.authorize(ctx, headers); err != nil {
			return nil, err
		}
		httpReq, err := newHTTPRequest(ctx, http.MethodPost, fullURL.String(), strings.NewReader(req.SQL))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}
		resp, err = sr.Client.Do(httpReq)
		if err != nil {
			return nil, newRequestError(err)
		}
		if resp.StatusCode != http.StatusUnauthorized || attempt > 0 {
			break
		}
		logger.WithContext(ctx).Debug("access token rejected. authenticating again")
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		sr.Auth.Invalidate()
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp, req.Label)
	}
	body, err := decodeBody(resp, sr.Compress && !req.Async)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &queryResponse{
		Body:             body,
		UpdateParameters: parseUpdateParameters(resp.Header.Get(headerUpdateParameters)),
	}, nil
}

// decodeBody unwraps gzip transfer encoding and, when requested, the block
// compression envelope.
func decodeBody(resp *http.Response, blocks bool) (io.ReadCloser, error) {
	body := resp.Body
	if strings.EqualFold(resp.Header.Get(headerContentEncoding), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, newProtocolError(ErrCodeStreamRead, err)
		}
		body = &readCloser{Reader: gz, closers: []io.Closer{gz, resp.Body}}
	}
	if blocks {
		body = newBlockReader(body)
	}
	return body, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// parseUpdateParameters reads "key=value" pairs separated by commas. Values
// are query escaped.
func parseUpdateParameters(header string) map[string]string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	updates := make(map[string]string)
	for _, pair := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		value, err := url.QueryUnescape(kv[1])
		if err != nil {
			value = kv[1]
		}
		updates[strings.ToLower(kv[0])] = value
	}
	return updates
}

// control sends an idempotent control request with retries and one
// re-authentication after a 401.
func (sr *emberRestful) control(ctx context.Context, method, path string, params url.Values, headers map[string]string, body []byte) (*http.Response, error) {
	if sr.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sr.RequestTimeout)
		// the body is read by the caller, so the timeout context lives as
		// long as the response
		resp, err := sr.controlAttempts(ctx, method, path, params, headers, body)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &readCloser{Reader: resp.Body, closers: []io.Closer{resp.Body, cancelCloser(cancel)}}
		return resp, nil
	}
	return sr.controlAttempts(ctx, method, path, params, headers, body)
}

type cancelCloser context.CancelFunc

func (c cancelCloser) Close() error {
	c()
	return nil
}

func (sr *emberRestful) controlAttempts(ctx context.Context, method, path string, params url.Values, headers map[string]string, body []byte) (*http.Response, error) {
	if headers == nil {
		headers = make(map[string]string)
	}
	headers[headerUserAgentKey] = userAgent
	for attempt := 0; ; attempt++ {
		if err := sr.authorize(ctx, headers); err != nil {
			return nil, err
		}
		r := newRetryHTTP(ctx, sr.Client, newHTTPRequest, sr.getFullURL(path, params), headers, sr.RequestTimeout, sr.MaxRetryCount)
		if method == http.MethodPost {
			r = r.doPost().setBody(body)
		}
		resp, err := r.execute()
		if err != nil {
			return nil, newRequestError(err)
		}
		if resp.StatusCode != http.StatusUnauthorized || attempt > 0 {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		sr.Auth.Invalidate()
	}
}

// abortQuery asks the engine to cancel a labelled query. It reports false
// when the engine no longer knows the label, which is the case for queries
// that already completed or were cancelled before.
func abortQuery(ctx context.Context, sr *emberRestful, label string) (bool, error) {
	logger.WithContext(ctx).Debugf("aborting query. label: %v", label)
	params := url.Values{}
	params.Set(paramQueryLabel, label)
	resp, err := sr.control(ctx, http.MethodPost, cancelPath, params, nil, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	case http.StatusNotFound, http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	return false, errorFromResponse(resp, label)
}

func queryStatus(ctx context.Context, sr *emberRestful, label string) (*query.StatusResponse, error) {
	params := url.Values{}
	params.Set(paramQueryLabel, label)
	headers := map[string]string{headerAcceptKey: contentTypeApplicationJSON}
	resp, err := sr.control(ctx, http.MethodGet, statusPath, params, headers, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var respd query.StatusResponse
		if err = json.NewDecoder(resp.Body).Decode(&respd); err != nil {
			logger.WithContext(ctx).Errorf("failed to decode JSON. err: %v", err)
			return nil, newProtocolError(ErrCodeUnexpectedResponse, err)
		}
		if respd.QueryLabel == "" {
			respd.QueryLabel = label
		}
		return &respd, nil
	case http.StatusNotFound:
		return &query.StatusResponse{QueryLabel: label}, nil
	}
	return nil, errorFromResponse(resp, label)
}

func postAuth(ctx context.Context, sr *emberRestful, path string, headers map[string]string, body []byte, timeout time.Duration) (*query.AuthResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	fullURL := sr.getFullURL(path, nil)
	if headers == nil {
		headers = make(map[string]string)
	}
	headers[headerUserAgentKey] = userAgent
	headers[headerAcceptKey] = contentTypeApplicationJSON
	resp, err := newRetryHTTP(ctx, sr.Client, newHTTPRequest, fullURL, headers, timeout, sr.MaxRetryCount).
		doPost().
		setBody(body).
		execute()
	if err != nil {
		return nil, newRequestError(err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var respd query.AuthResponse
		if err = json.NewDecoder(resp.Body).Decode(&respd); err != nil {
			logger.WithContext(ctx).Errorf("failed to decode JSON. err: %v", err)
			return nil, newProtocolError(ErrCodeUnexpectedResponse, err)
		}
		if respd.AccessToken == "" {
			return nil, &EmberError{
				Number:   ErrCodeAuthenticationFailed,
				SQLState: SQLStateInvalidAuthorization,
				Message:  "authentication response carries no access token",
			}
		}
		return &respd, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		b, _ := io.ReadAll(resp.Body)
		logger.WithContext(ctx).Errorf("authentication FAILED. HTTP: %v", resp.StatusCode)
		return nil, &EmberError{
			Number:   ErrCodeAuthenticationFailed,
			SQLState: SQLStateInvalidAuthorization,
			Message:  query.ParseErrorBody(b).Text(),
		}
	}
	return nil, errorFromResponse(resp, "")
}

// errorFromResponse converts a non 200 response into an EmberError, using
// the engine error body when there is one.
func errorFromResponse(resp *http.Response, label string) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Errorf("failed to extract HTTP response body. err: %v", err)
	}
	errResp := query.ParseErrorBody(b)
	if errResp.QueryLabel != "" {
		label = errResp.QueryLabel
	}
	if text := errResp.Text(); text != "" {
		logger.Debugf("HTTP: %v, label: %v, error: %v", resp.StatusCode, label, text)
		return &EmberError{
			Number:     ErrCodeQueryFailed,
			SQLState:   errResp.Code(),
			QueryLabel: label,
			Message:    text,
		}
	}
	return &EmberError{
		Number:      ErrCodeHTTPStatus,
		QueryLabel:  label,
		Message:     errMsgHTTPStatus,
		MessageArgs: []interface{}{resp.StatusCode, http.StatusText(resp.StatusCode)},
	}
}

func newRequestError(err error) error {
	return &EmberError{
		Number:   ErrCodeRequestFailed,
		SQLState: SQLStateConnectionFailure,
		Message:  err.Error(),
		cause:    err,
	}
}
