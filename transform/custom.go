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

package transform

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/aaronlmathis/assetetl/core"
)

// CustomCallbackError records one failed custom callback. The batch it was
// given continues through the pipeline as it was before the call.
type CustomCallbackError struct {
	Index int
	Name  string
	Err   error
}

func (e *CustomCallbackError) Error() string {
	return fmt.Sprintf("custom callback %s failed: %v", e.Name, e.Err)
}

func (e *CustomCallbackError) Unwrap() error {
	return e.Err
}

func (p *Pipeline) doCustomCallbacks(ctx context.Context, rows []core.Record) ([]core.Record, error) {
	for i, cb := range p.custom {
		out, err := callCustom(ctx, p, cb.fn, copyRows(rows))
		if err != nil {
			cbErr := &CustomCallbackError{Index: i, Name: cb.name, Err: err}
			p.customErrs = append(p.customErrs, cbErr)
			p.metrics.CustomError(cb.name)
			p.echo(ctx, levelError, cbErr.Error())
			if p.handler != nil {
				var first core.Record
				if len(rows) > 0 {
					first = rows[0]
				}
				if herr := p.handler.HandleError(ctx, first, cbErr); herr != nil {
					p.logger.Warn("custom callback error handler failed", "callback", cb.name, "error", herr)
				}
			}
			continue
		}
		rows = out
	}
	return rows, nil
}

func callCustom(ctx context.Context, p *Pipeline, fn RowsFunc, rows []core.Record) (out []core.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, p, rows)
}

func copyRows(rows []core.Record) []core.Record {
	out := make([]core.Record, len(rows))
	for i, r := range rows {
		out[i] = r.DeepCopy()
	}
	return out
}

func funcName(fn RowsFunc) string {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
