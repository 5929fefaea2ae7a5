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

package tags

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LabelerFuncs adapts two ordinary functions to the Labeler interface.
type LabelerFuncs struct {
	AddFunc    func(ctx context.Context, assets []Fragment, labels []string) error
	RemoveFunc func(ctx context.Context, assets []Fragment, labels []string) error
}

// Add implements Labeler.
func (l LabelerFuncs) Add(ctx context.Context, assets []Fragment, labels []string) error {
	if l.AddFunc == nil {
		return nil
	}
	return l.AddFunc(ctx, assets, labels)
}

// Remove implements Labeler.
func (l LabelerFuncs) Remove(ctx context.Context, assets []Fragment, labels []string) error {
	if l.RemoveFunc == nil {
		return nil
	}
	return l.RemoveFunc(ctx, assets, labels)
}

// HTTPLabeler posts label changes as JSON to a labels endpoint.
// Additions use PUT and removals use DELETE on the same URL.
type HTTPLabeler struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// HTTPLabelerOption configures an HTTPLabeler.
type HTTPLabelerOption func(*HTTPLabeler)

// WithBearerToken authenticates requests with a bearer token.
func WithBearerToken(token string) HTTPLabelerOption {
	return func(l *HTTPLabeler) {
		l.headers["Authorization"] = "Bearer " + token
	}
}

// WithLabelHeader adds a custom request header.
func WithLabelHeader(key, value string) HTTPLabelerOption {
	return func(l *HTTPLabeler) {
		l.headers[key] = value
	}
}

// WithLabelClient replaces the HTTP client.
func WithLabelClient(c *http.Client) HTTPLabelerOption {
	return func(l *HTTPLabeler) {
		l.client = c
	}
}

// NewHTTPLabeler creates a labeler for the given endpoint.
func NewHTTPLabeler(url string, opts ...HTTPLabelerOption) *HTTPLabeler {
	l := &HTTPLabeler{
		url:     url,
		headers: map[string]string{"Content-Type": "application/json"},
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type labelRequest struct {
	Entities []Fragment `json:"entities"`
	Labels   []string   `json:"labels"`
}

// Add implements Labeler.
func (l *HTTPLabeler) Add(ctx context.Context, assets []Fragment, labels []string) error {
	return l.send(ctx, http.MethodPut, assets, labels)
}

// Remove implements Labeler.
func (l *HTTPLabeler) Remove(ctx context.Context, assets []Fragment, labels []string) error {
	return l.send(ctx, http.MethodDelete, assets, labels)
}

func (l *HTTPLabeler) send(ctx context.Context, method string, assets []Fragment, labels []string) error {
	body, err := json.Marshal(labelRequest{Entities: assets, Labels: labels})
	if err != nil {
		return fmt.Errorf("encode label request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create label request: %w", err)
	}
	for k, v := range l.headers {
		req.Header.Set(k, v)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s labels: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s labels: HTTP %d: %s", strings.ToLower(method), resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
