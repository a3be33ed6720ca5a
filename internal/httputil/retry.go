// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by components that talk to
// the content feed.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the base duration for exponential backoff between
// attempts. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxAttempts = 3

// Transient reports whether an HTTP status is worth retrying: 429 and all
// 5xx responses. Everything else, including 4xx client errors, is final.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request with a bounded number of attempts.
// Network errors and transient statuses (429, 5xx) are retried; other
// responses return immediately. The wait between attempts doubles from
// RetryBaseDelay, except on 429 when a parseable Retry-After header wins.
//
// When maxAttempts is 0 the default (3) is used. The request body must be
// nil or replayable; pages are fetched with plain GETs so this holds. After
// the last attempt the final response (or the final network error) is
// returned so the caller can inspect it. A cancelled context interrupts the
// backoff wait and returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	delay := RetryBaseDelay
	for attempt := 1; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil && !Transient(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= maxAttempts {
			return resp, err
		}

		wait := delay
		if err == nil {
			if ra := retryAfter(resp); ra > 0 {
				wait = ra
			}
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		delay *= 2

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryAfter reads a delay-seconds Retry-After header from a 429 response.
// Absent, malformed, or HTTP-date values yield zero and the caller's backoff
// applies.
func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
