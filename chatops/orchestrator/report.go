/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

const testSummaryLines = 5

// Report renders the single message posted for an event. Chat answers are
// returned as is.
func (o *Outcome) Report() string {
	if !o.Failed() && o.Reached == StateAnswered {
		return o.Detail
	}

	var sb strings.Builder
	if o.Failed() {
		fmt.Fprintf(&sb, "❌ processing error at stage %s:\n```\n%v\n```\n", o.Stage, o.Err)
		if o.Output != "" {
			fmt.Fprintf(&sb, "\nOutput:\n```\n%s\n```\n", strings.TrimRight(o.Output, "\n"))
		}
	} else {
		fmt.Fprintf(&sb, "✅ %s\n", o.Detail)
		if o.PullRequestURL != "" {
			fmt.Fprintf(&sb, "Pull request: %s\n", o.PullRequestURL)
		}
		if o.Warning != "" {
			fmt.Fprintf(&sb, "⚠️ %s\n", o.Warning)
		}
		if o.Test != nil {
			if s := o.Test.Summary(testSummaryLines); s != "" {
				fmt.Fprintf(&sb, "\nTests passed:\n```\n%s\n```\n", s)
			}
		}
	}

	if len(o.Timeline) > 0 {
		sb.WriteString("\n")
		writeTimeline(&sb, o.Timeline)
	}
	return sb.String()
}

func writeTimeline(w io.Writer, steps []Step) {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithHeader([]string{"Stage", "State", "Time", "Result"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
	for _, s := range steps {
		result := "ok"
		if s.Err != nil {
			result = "failed"
		}
		_ = table.Append([]string{s.Stage, string(s.State), s.Duration.Round(time.Millisecond).String(), result})
	}
	_ = table.Render()
}
