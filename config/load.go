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

package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load overlays a YAML document onto the defaults of a variant. Keys absent
// from the document keep their defaults and unknown keys are ignored.
func Load(r io.Reader, v Variant) (Options, error) {
	opts := Defaults(v)
	if err := yaml.NewDecoder(r).Decode(&opts); err != nil && err != io.EOF {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

// LoadFile reads options from a YAML file. An empty path yields the defaults.
func LoadFile(path string, v Variant) (Options, error) {
	if path == "" {
		return Defaults(v), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Options{}, fmt.Errorf("open options: %w", err)
	}
	defer f.Close()
	return Load(f, v)
}
