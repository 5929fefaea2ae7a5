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
	"context"
	"errors"
	"fmt"

	"github.com/aaronlmathis/assetetl/core"
)

// Package tags tracks which assets should be labeled during an export and
// applies the labels in bulk once the stream ends.

// ErrAlreadyFlushed is returned by a second Flush.
var ErrAlreadyFlushed = errors.New("tags already flushed")

// Fragment identifies one asset for a label call.
type Fragment struct {
	PrimaryID string `json:"internal_axon_id"`
}

// Labeler applies and removes labels on assets.
type Labeler interface {
	Add(ctx context.Context, assets []Fragment, labels []string) error
	Remove(ctx context.Context, assets []Fragment, labels []string) error
}

// TrackerError wraps tracking and flushing failures with context.
type TrackerError struct {
	Op  string
	Err error
}

func (e *TrackerError) Error() string {
	return fmt.Sprintf("tags %s: %v", e.Op, e.Err)
}

func (e *TrackerError) Unwrap() error {
	return e.Err
}

// Tracker accumulates deduplicated asset identities for label addition and removal.
type Tracker struct {
	add        []Fragment
	remove     []Fragment
	addSeen    map[string]bool
	removeSeen map[string]bool
	flushed    bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		addSeen:    make(map[string]bool),
		removeSeen: make(map[string]bool),
	}
}

// TrackAdd records the identity of every row for label addition.
func (t *Tracker) TrackAdd(rows []core.Record) error {
	return t.track("track_add", rows, &t.add, t.addSeen)
}

// TrackRemove records the identity of every row for label removal.
func (t *Tracker) TrackRemove(rows []core.Record) error {
	return t.track("track_remove", rows, &t.remove, t.removeSeen)
}

func (t *Tracker) track(op string, rows []core.Record, list *[]Fragment, seen map[string]bool) error {
	for _, row := range rows {
		raw, ok := row[core.PrimaryIDField]
		if !ok || raw == nil {
			return &TrackerError{Op: op, Err: fmt.Errorf("row has no %s", core.PrimaryIDField)}
		}
		id := fmt.Sprintf("%v", raw)
		if seen[id] {
			continue
		}
		seen[id] = true
		*list = append(*list, Fragment{PrimaryID: id})
	}
	return nil
}

// Added returns the assets tracked for label addition, in first-seen order.
func (t *Tracker) Added() []Fragment {
	return append([]Fragment(nil), t.add...)
}

// Removed returns the assets tracked for label removal, in first-seen order.
func (t *Tracker) Removed() []Fragment {
	return append([]Fragment(nil), t.remove...)
}

// Flush issues at most one bulk add and one bulk remove call. A call is made
// only when both its asset list and its label list are non-empty. Flush may
// run once per tracker.
func (t *Tracker) Flush(ctx context.Context, labeler Labeler, addLabels, removeLabels []string) error {
	if t.flushed {
		return &TrackerError{Op: "flush", Err: ErrAlreadyFlushed}
	}
	t.flushed = true

	needAdd := len(t.add) > 0 && len(addLabels) > 0
	needRemove := len(t.remove) > 0 && len(removeLabels) > 0
	if (needAdd || needRemove) && labeler == nil {
		return &TrackerError{Op: "flush", Err: errors.New("no labeler configured")}
	}

	if needAdd {
		if err := labeler.Add(ctx, t.Added(), addLabels); err != nil {
			return &TrackerError{Op: "add", Err: err}
		}
	}
	if needRemove {
		if err := labeler.Remove(ctx, t.Removed(), removeLabels); err != nil {
			return &TrackerError{Op: "remove", Err: err}
		}
	}
	return nil
}
