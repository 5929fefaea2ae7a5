//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of AssetETL.
//
// AssetETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// AssetETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with AssetETL. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/assetetl/core"
)

// HTTPReaderError provides structured error information for HTTP reader operations.
type HTTPReaderError struct {
	Op         string
	StatusCode int
	URL        string
	Err        error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http reader %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP reader.
type HTTPReaderStats struct {
	RequestCount  int64
	RecordsRead   int64
	BytesRead     int64
	RetryCount    int64
	RateLimitHits int64
	FetchDuration time.Duration
}

// AuthConfig defines authentication configuration.
type AuthConfig struct {
	Type        string // "bearer" or "apikey"
	Token       string
	HeaderName  string
	HeaderValue string
}

// HTTPReaderOptions configures the paged inventory reader.
type HTTPReaderOptions struct {
	Method          string
	Headers         map[string]string
	QueryParams     map[string]string
	Auth            *AuthConfig
	PageSize        int
	LimitParam      string
	OffsetParam     string
	MaxPages        int
	DataPath        string // dotted path to the row array in each page
	TotalField      string // dotted path to the total row count, optional
	Timeout         time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	RateLimit       time.Duration
	MaxResponseSize int64
	UserAgent       string
	CustomClient    *http.Client
	Logger          *slog.Logger
}

// ReaderOptionHTTP is a functional option for HTTPReaderOptions.
type ReaderOptionHTTP func(*HTTPReaderOptions)

func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

func WithHTTPQueryParams(params map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		for k, v := range params {
			opts.QueryParams[k] = v
		}
	}
}

func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "bearer", Token: token}
	}
}

func WithHTTPAPIKey(headerName, apiKey string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "apikey", HeaderName: headerName, HeaderValue: apiKey}
	}
}

// WithHTTPPageSize sets the rows requested per page.
func WithHTTPPageSize(size int) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.PageSize = size
	}
}

// WithHTTPPageParams names the limit and offset query parameters.
func WithHTTPPageParams(limit, offset string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.LimitParam = limit
		opts.OffsetParam = offset
	}
}

func WithHTTPMaxPages(pages int) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.MaxPages = pages
	}
}

func WithHTTPDataPath(path string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.DataPath = path
	}
}

func WithHTTPTotalField(path string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.TotalField = path
	}
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Timeout = timeout
	}
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

func WithHTTPRateLimit(delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RateLimit = delay
	}
}

func WithHTTPUserAgent(userAgent string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.UserAgent = userAgent
	}
}

func WithHTTPClient(client *http.Client) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.CustomClient = client
	}
}

func WithHTTPLogger(l *slog.Logger) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Logger = l
	}
}

// HTTPReader implements core.DataSource and core.ProgressSource for a paged
// inventory API using offset/limit paging.
type HTTPReader struct {
	baseURL         *url.URL
	client          *http.Client
	opts            *HTTPReaderOptions
	logger          *slog.Logger
	stats           HTTPReaderStats
	progress        core.Progress
	currentData     []core.Record
	currentIndex    int
	hasMoreData     bool
	offset          int
	lastRequestTime time.Time
}

// NewHTTPReader creates a paged reader for rawURL.
func NewHTTPReader(rawURL string, options ...ReaderOptionHTTP) (*HTTPReader, error) {
	opts := &HTTPReaderOptions{
		Method:          http.MethodGet,
		Headers:         make(map[string]string),
		QueryParams:     make(map[string]string),
		PageSize:        2000,
		LimitParam:      "limit",
		OffsetParam:     "offset",
		DataPath:        "assets",
		TotalField:      "total",
		Timeout:         30 * time.Second,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		MaxResponseSize: 100 * 1024 * 1024,
		UserAgent:       "AssetETL-HTTPReader/1.0",
	}
	for _, option := range options {
		option(opts)
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, &HTTPReaderError{Op: "validate", URL: rawURL, Err: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &HTTPReaderError{Op: "validate", URL: rawURL, Err: fmt.Errorf("url must be absolute")}
	}
	if opts.PageSize <= 0 {
		return nil, &HTTPReaderError{Op: "validate", URL: rawURL, Err: fmt.Errorf("page size must be positive, got %d", opts.PageSize)}
	}
	if opts.Auth != nil && opts.Auth.Type != "bearer" && opts.Auth.Type != "apikey" {
		return nil, &HTTPReaderError{Op: "validate", URL: rawURL, Err: fmt.Errorf("unsupported auth type: %s", opts.Auth.Type)}
	}

	client := opts.CustomClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPReader{
		baseURL:     base,
		client:      client,
		opts:        opts,
		logger:      logger.With("component", "http_reader"),
		hasMoreData: true,
	}, nil
}

// Read implements the core.DataSource interface.
func (hr *HTTPReader) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &HTTPReaderError{Op: "read", URL: hr.baseURL.String(), Err: ctx.Err()}
	default:
	}

	for hr.currentIndex >= len(hr.currentData) {
		if !hr.hasMoreData {
			return nil, io.EOF
		}
		if err := hr.loadNextPage(ctx); err != nil {
			return nil, err
		}
	}

	record := hr.currentData[hr.currentIndex]
	hr.currentIndex++
	hr.stats.RecordsRead++
	return record, nil
}

// Progress implements the core.ProgressSource interface.
func (hr *HTTPReader) Progress() core.Progress {
	return hr.progress
}

// Close implements the core.DataSource interface.
func (hr *HTTPReader) Close() error {
	return nil
}

// Stats returns HTTP reader statistics.
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.stats
}

func (hr *HTTPReader) loadNextPage(ctx context.Context) error {
	if hr.opts.RateLimit > 0 && !hr.lastRequestTime.IsZero() {
		if wait := hr.opts.RateLimit - time.Since(hr.lastRequestTime); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return &HTTPReaderError{Op: "rate_limit", URL: hr.baseURL.String(), Err: ctx.Err()}
			}
		}
	}

	requestURL := hr.pageURL()
	start := time.Now()
	data, err := hr.executeRequestWithRetry(ctx, requestURL)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	hr.lastRequestTime = time.Now()
	hr.stats.RequestCount++
	hr.stats.FetchDuration += elapsed

	records, total, err := hr.parsePage(data)
	if err != nil {
		return &HTTPReaderError{Op: "parse", URL: requestURL, Err: err}
	}

	hr.currentData = records
	hr.currentIndex = 0
	hr.offset += len(records)
	hr.progress.PageNumber++
	hr.progress.FetchSecondsTotal += elapsed.Seconds()
	if total >= 0 {
		hr.progress.RowsToFetchTotal = total
		hr.progress.PagesToFetchTotal = (total + hr.opts.PageSize - 1) / hr.opts.PageSize
	}

	switch {
	case len(records) == 0:
		hr.hasMoreData = false
	case hr.opts.MaxPages > 0 && hr.progress.PageNumber >= hr.opts.MaxPages:
		hr.hasMoreData = false
	case total >= 0:
		hr.hasMoreData = hr.offset < total
	default:
		hr.hasMoreData = len(records) >= hr.opts.PageSize
	}

	hr.logger.Debug("fetched page",
		"page", hr.progress.PageNumber,
		"rows", len(records),
		"total", total,
		"seconds", elapsed.Seconds())
	return nil
}

// pageURL builds the URL for the current page.
func (hr *HTTPReader) pageURL() string {
	u := *hr.baseURL
	q := u.Query()
	for k, v := range hr.opts.QueryParams {
		q.Set(k, v)
	}
	if hr.opts.LimitParam != "" {
		q.Set(hr.opts.LimitParam, strconv.Itoa(hr.opts.PageSize))
	}
	if hr.opts.OffsetParam != "" {
		q.Set(hr.opts.OffsetParam, strconv.Itoa(hr.offset))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// executeRequestWithRetry retries rate limits and server errors with exponential backoff.
func (hr *HTTPReader) executeRequestWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= hr.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := hr.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &HTTPReaderError{Op: "retry", URL: requestURL, Err: ctx.Err()}
			}
			hr.stats.RetryCount++
		}

		data, err := hr.executeRequest(ctx, requestURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var httpErr *HTTPReaderError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests {
				hr.stats.RateLimitHits++
				continue
			}
			if httpErr.StatusCode >= 500 {
				continue
			}
			if httpErr.Op == "request" && ctx.Err() == nil {
				continue
			}
		}
		break
	}
	return nil, lastErr
}

func (hr *HTTPReader) executeRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, hr.opts.Method, requestURL, nil)
	if err != nil {
		return nil, &HTTPReaderError{Op: "create_request", URL: requestURL, Err: err}
	}
	req.Header.Set("User-Agent", hr.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range hr.opts.Headers {
		req.Header.Set(k, v)
	}
	if auth := hr.opts.Auth; auth != nil {
		switch auth.Type {
		case "bearer":
			req.Header.Set("Authorization", "Bearer "+auth.Token)
		case "apikey":
			req.Header.Set(auth.HeaderName, auth.HeaderValue)
		}
	}

	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, &HTTPReaderError{Op: "request", URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HTTPReaderError{
			Op:         "status_check",
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, hr.opts.MaxResponseSize))
	if err != nil {
		return nil, &HTTPReaderError{Op: "read_response", URL: requestURL, Err: err}
	}
	hr.stats.BytesRead += int64(len(data))
	return data, nil
}

// parsePage returns the page rows and the total row count, or -1 when the
// page does not report one.
func (hr *HTTPReader) parsePage(data []byte) ([]core.Record, int, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var response interface{}
	if err := decoder.Decode(&response); err != nil {
		return nil, -1, fmt.Errorf("json unmarshal failed: %w", err)
	}

	total := -1
	if hr.opts.TotalField != "" {
		if v, err := extractPath(response, hr.opts.TotalField); err == nil {
			if n, ok := v.(json.Number); ok {
				if i, err := n.Int64(); err == nil {
					total = int(i)
				}
			}
		}
	}

	rows := response
	if _, isList := response.([]interface{}); !isList && hr.opts.DataPath != "" {
		extracted, err := extractPath(response, hr.opts.DataPath)
		if err != nil {
			return nil, -1, fmt.Errorf("data path extraction failed: %w", err)
		}
		rows = extracted
	}

	list, ok := rows.([]interface{})
	if !ok {
		return nil, -1, fmt.Errorf("expected a list of rows, got %T", rows)
	}
	records := make([]core.Record, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, -1, fmt.Errorf("row %d is %T, not an object", i, item)
		}
		records = append(records, core.Record(m))
	}
	return records, total, nil
}

// extractPath walks a dotted path through nested objects.
func extractPath(data interface{}, path string) (interface{}, error) {
	current := data
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot traverse path %s: expected object", part)
		}
		if current, ok = m[part]; !ok {
			return nil, fmt.Errorf("path element %s not found", part)
		}
	}
	return current, nil
}
