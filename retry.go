// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"
)

var random *rand.Rand

func init() {
	random = rand.New(rand.NewSource(time.Now().UnixNano()))
}

type waitAlgo struct {
	mutex *sync.Mutex   // required for random.Int63n
	base  time.Duration // base wait time
	cap   time.Duration // maximum wait time
}

func randDuration(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(random.Int63n(int64(n)))
}

// decorrelated jitter backoff
func (w *waitAlgo) decorr(attempt int, sleep time.Duration) time.Duration {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	t := 3*sleep - w.base
	switch {
	case t > 0:
		return durationMin(w.cap, randDuration(t)+w.base)
	case t < 0:
		return durationMin(w.cap, randDuration(-t)+3*sleep)
	}
	return w.base
}

func durationMin(d1, d2 time.Duration) time.Duration {
	if d1 < d2 {
		return d1
	}
	return d2
}

var defaultWaitAlgo = &waitAlgo{
	mutex: &sync.Mutex{},
	base:  1 * time.Second,
	cap:   16 * time.Second,
}

type requestFunc func(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error)

type clientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// retryHTTP sends one idempotent control request, retrying connection
// failures, 429 and 5xx responses. Other statuses are returned to the caller
// unchanged. Query submission never goes through retryHTTP: resending a
// statement could run it twice.
type retryHTTP struct {
	ctx        context.Context
	client     clientInterface
	req        requestFunc
	method     string
	fullURL    *url.URL
	headers    map[string]string
	body       []byte
	timeout    time.Duration
	maxRetries int
	wait       *waitAlgo
}

func newRetryHTTP(ctx context.Context,
	client clientInterface,
	req requestFunc,
	fullURL *url.URL,
	headers map[string]string,
	timeout time.Duration,
	maxRetries int) *retryHTTP {
	return &retryHTTP{
		ctx:        ctx,
		client:     client,
		req:        req,
		method:     http.MethodGet,
		fullURL:    fullURL,
		headers:    headers,
		timeout:    timeout,
		maxRetries: maxRetries,
		wait:       defaultWaitAlgo,
	}
}

func (r *retryHTTP) doPost() *retryHTTP {
	r.method = http.MethodPost
	return r
}

func (r *retryHTTP) setBody(body []byte) *retryHTTP {
	r.body = body
	return r
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (r *retryHTTP) execute() (res *http.Response, err error) {
	totalTimeout := r.timeout
	retryCounter := 0
	sleepTime := time.Duration(0)

	for {
		req, err := r.req(r.ctx, r.method, r.fullURL.String(), bytes.NewReader(r.body))
		if err != nil {
			return nil, err
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}
		// a fresh id per attempt keeps server side request logs apart
		req.Header.Set(headerRequestID, newRequestID())
		res, err = r.client.Do(req)
		if err == nil && !isRetryableStatus(res.StatusCode) {
			return res, nil
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			logger.WithContext(r.ctx).Debugf(
				"failed http connection. no response is returned. err: %v. retrying...", err)
		} else {
			logger.WithContext(r.ctx).Debugf(
				"failed http connection. HTTP Status: %v. retrying...", res.StatusCode)
		}
		if retryCounter >= r.maxRetries {
			if err != nil {
				return nil, err
			}
			return res, nil
		}
		if res != nil {
			// drain so that the connection can be reused
			_, _ = io.Copy(io.Discard, res.Body)
			res.Body.Close()
		}

		sleepTime = r.wait.decorr(retryCounter, sleepTime)
		if totalTimeout > 0 {
			totalTimeout -= sleepTime
			if totalTimeout <= 0 {
				if err != nil {
					return nil, fmt.Errorf("timeout. err: %v. Hanging?", err)
				}
				return nil, fmt.Errorf("timeout. HTTP Status: %v. Hanging?", res.StatusCode)
			}
		}
		retryCounter++
		logger.WithContext(r.ctx).Debugf("sleeping %v. to timeout: %v. retrying", sleepTime, totalTimeout)

		await := time.NewTimer(sleepTime)
		select {
		case <-await.C:
		case <-r.ctx.Done():
			await.Stop()
			return nil, r.ctx.Err()
		}
	}
}
