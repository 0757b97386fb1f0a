/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy controls backoff between attempts. The delay starts at
// Backoff, doubles per retry and is capped at MaxBackoff; a uniform
// jitter of up to a quarter of the current delay is added before each
// sleep.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Backoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

// StatusError is returned for any response with status >= 400 that is
// not recovered by retries.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Status, strings.TrimSpace(e.Body))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool { return e.Status == http.StatusTooManyRequests || e.Status >= 500 }

// HTTPClient issues authenticated requests against the Jira base URL
// with retry/backoff for transient failures.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	retry   RetryPolicy
	log     zerolog.Logger
	sleep   func(time.Duration)
}

type HTTPOptions struct {
	BaseURL  string
	PAT      string
	CABundle string // path to a PEM bundle; empty means system roots
	Timeout  time.Duration
	Retry    RetryPolicy
}

func NewHTTPClient(opts HTTPOptions, log zerolog.Logger) (*HTTPClient, error) {
	if opts.BaseURL == "" { return nil, fmt.Errorf("jira: empty baseURL") }
	if opts.Retry.MaxAttempts <= 0 { opts.Retry = DefaultRetryPolicy() }
	if opts.Timeout <= 0 { opts.Timeout = 30 * time.Second }
	transport := http.DefaultTransport
	if opts.CABundle != "" {
		pem, err := os.ReadFile(opts.CABundle)
		if err != nil { return nil, fmt.Errorf("jira: read ca bundle: %w", err) }
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("jira: no certificates in %s", opts.CABundle) }
		transport = &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.PAT,
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		retry:   opts.Retry,
		log:     log,
		sleep:   time.Sleep,
	}, nil
}

func (c *HTTPClient) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// do performs one logical request with retries. Only transport errors
// and 429/5xx responses are retried; any other status >= 400 fails on
// the first attempt.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil { return nil, err }
		payload = b
	}
	if !strings.HasPrefix(path, "/") { path = "/" + path }
	u := c.baseURL + path

	delay := c.retry.Backoff
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			jitter := rand.N(delay/4 + 1)
			c.sleep(delay + jitter)
			delay = min(delay*2, c.retry.MaxBackoff)
		}
		var r io.Reader
		if payload != nil { r = bytes.NewReader(payload) }
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil { return nil, err }
		if payload != nil { req.Header.Set("Content-Type", "application/json") }
		if c.token != "" { req.Header.Set("Authorization", "Bearer "+c.token) }

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Str("m", method).Str("p", path).Int("attempt", attempt).Msg("jira request failed")
			continue
		}
		b, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			serr := &StatusError{Status: resp.StatusCode, Body: string(b)}
			if !serr.Retryable() { return nil, serr }
			lastErr = serr
			c.log.Warn().Int("status", resp.StatusCode).Str("m", method).Str("p", path).Int("attempt", attempt).Msg("retrying jira request")
			continue
		}
		if readErr != nil { lastErr = readErr; continue }
		return b, nil
	}
	return nil, lastErr
}
