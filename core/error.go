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

package core

import (
	"context"
	"errors"
	"fmt"
)

// Package core defines the error handling types for the AssetETL library.
//
// This file contains the configuration error type, sentinels, and handler adapters.

// ErrConfig is matched by every configuration error via errors.Is.
var ErrConfig = errors.New("invalid configuration")

// ConfigError reports a fatal configuration problem detected before or during a run.
type ConfigError struct {
	Option string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Option, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports ErrConfig as a match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(option, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Option: option, Err: fmt.Errorf(format, args...)}
}

// ErrorHandler is notified about isolated failures that do not abort a run,
// such as a failing custom callback.
type ErrorHandler interface {
	// HandleError receives the failure. The returned error is logged, never propagated.
	HandleError(ctx context.Context, record Record, err error) error
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
// Allows ordinary functions to be used as error handlers.
type ErrorHandlerFunc func(ctx context.Context, record Record, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, record Record, err error) error {
	return f(ctx, record, err)
}
