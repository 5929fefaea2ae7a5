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
	"log/slog"
	"strings"
)

type echoLevel int

const (
	levelInfo echoLevel = iota
	levelWarn
	levelError
)

// echo sends a message to the console when do_echo is on, and to the logger
// otherwise.
func (p *Pipeline) echo(ctx context.Context, level echoLevel, msg string) {
	if p.opts.DoEcho {
		prefix := "[SUCCESS] "
		switch level {
		case levelWarn:
			prefix = "[WARNING] "
		case levelError:
			prefix = "[ERROR] "
		}
		fmt.Fprintln(p.console, prefix+msg)
		return
	}

	lvl := slog.LevelInfo
	switch level {
	case levelWarn:
		lvl = slog.LevelWarn
	case levelError:
		lvl = slog.LevelError
	}
	p.logger.Log(ctx, lvl, msg)
}

func (p *Pipeline) echoColumns(ctx context.Context) {
	if p.columnsEchoed {
		return
	}
	p.columnsEchoed = true

	join := "\n   - "
	selected := make([]string, 0, len(p.selection.Fields()))
	for _, f := range p.selection.Fields() {
		selected = append(selected, fmt.Sprintf("%-40s %q (%s, %s)", f.NameQual, f.Title(), f.TypeNorm, f.Kind))
	}
	p.echo(ctx, levelInfo, "Selected Columns: "+join+strings.Join(selected, join))
	p.echo(ctx, levelInfo, "Final Columns: "+join+strings.Join(p.FinalColumns(), join))
}

// echoPageProgress reports progress every page_progress rows, and always for
// the first and the last row.
func (p *Pipeline) echoPageProgress(ctx context.Context) {
	every := p.opts.PageProgress
	if every <= 0 {
		return
	}
	msg, ok := progressLine(p.state.RowsProcessedTotal, p.state.RowsToFetchTotal, p.state.PageNumber,
		p.state.PagesToFetchTotal, p.state.FetchSecondsTotal, every)
	if ok {
		p.echo(ctx, levelInfo, msg)
	}
}

func progressLine(proc, total, page, pages int, seconds float64, every int) (string, bool) {
	if !(proc%every == 0 || proc >= total || proc <= 1) {
		return "", false
	}
	percent := 0.0
	if total > 0 {
		percent = float64(proc) / float64(total) * 100
	}
	rowsWidth := len(fmt.Sprint(total))
	pagesWidth := len(fmt.Sprint(pages))
	return fmt.Sprintf("PROGRESS: %7s [ROWS: %*d / %d] [PAGES: %*d / %d] in %.2f seconds so far",
		fmt.Sprintf("%.2f%%", percent), rowsWidth, proc, total, pagesWidth, page, pages, seconds), true
}
