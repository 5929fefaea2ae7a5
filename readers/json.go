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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aaronlmathis/assetetl/core"
)

// JSONReaderError wraps JSON decoding errors with the position of the record.
type JSONReaderError struct {
	Op     string
	Record int64
	Err    error
}

func (e *JSONReaderError) Error() string {
	return fmt.Sprintf("json reader %s (record %d): %v", e.Op, e.Record, e.Err)
}

func (e *JSONReaderError) Unwrap() error {
	return e.Err
}

// JSONReader implements core.DataSource for a JSON array of objects, a single
// object, or a stream of objects such as JSON lines. Numbers decode as json.Number.
type JSONReader struct {
	br      *bufio.Reader
	decoder *json.Decoder
	closer  io.Closer
	inArray bool
	count   int64
}

// NewJSONReader creates a reader over r. Close closes r.
func NewJSONReader(r io.ReadCloser) *JSONReader {
	return &JSONReader{br: bufio.NewReader(r), closer: r}
}

// OpenJSONFile opens path for reading; "-" reads stdin, which is not closed.
func OpenJSONFile(path string) (*JSONReader, error) {
	if path == "-" {
		return NewJSONReader(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &JSONReaderError{Op: "open", Err: err}
	}
	return NewJSONReader(f), nil
}

// Read implements the core.DataSource interface.
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j.decoder == nil {
		if err := j.start(); err != nil {
			return nil, err
		}
	}

	if j.inArray && !j.decoder.More() {
		return nil, io.EOF
	}

	var record core.Record
	if err := j.decoder.Decode(&record); err != nil {
		if err == io.EOF && !j.inArray {
			return nil, io.EOF
		}
		return nil, &JSONReaderError{Op: "decode", Record: j.count, Err: err}
	}
	j.count++
	return record, nil
}

// start skips leading whitespace and a byte-order mark, then consumes the
// opening bracket when the input is an array.
func (j *JSONReader) start() error {
	j.decoder = json.NewDecoder(j.br)
	j.decoder.UseNumber()
	for {
		r, _, err := j.br.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &JSONReaderError{Op: "read", Err: err}
		}
		switch r {
		case ' ', '\t', '\r', '\n', '\uFEFF':
			continue
		}
		if err := j.br.UnreadRune(); err != nil {
			return &JSONReaderError{Op: "read", Err: err}
		}
		if r == '[' {
			if _, err := j.decoder.Token(); err != nil {
				return &JSONReaderError{Op: "decode", Err: err}
			}
			j.inArray = true
		}
		return nil
	}
}

// Count returns the number of records read.
func (j *JSONReader) Count() int64 {
	return j.count
}

// Close implements the core.DataSource interface.
func (j *JSONReader) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
