package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/forPelevin/subcue/internal/types"
)

const maxFailureRows = 10

func printSummary(w io.Writer, dir string, m types.Manifest) {
	fmt.Fprintln(w, renderSummary(dir, m))
}

func renderSummary(dir string, m types.Manifest) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Item", "Value"})
	tw.AppendRow(table.Row{"Run", m.RunID})
	tw.AppendRow(table.Row{"Cues", strconv.Itoa(m.Cues)})
	tw.AppendRow(table.Row{"Source subtitles", filepath.Join(dir, m.SourceSRT)})
	if m.TargetSRT != "" {
		tw.AppendRow(table.Row{"Translated subtitles", filepath.Join(dir, m.TargetSRT)})
		tw.AppendRow(table.Row{"Engine", m.Engine})
		tw.AppendRow(table.Row{"Translated", strconv.Itoa(m.Translated)})
		tw.AppendRow(table.Row{"Kept original", strconv.Itoa(m.FallenBack)})
		tw.AppendRow(table.Row{"Skipped (blank)", strconv.Itoa(m.Skipped)})
	} else {
		tw.AppendRow(table.Row{"Translation", "not run"})
	}
	for _, ass := range []string{m.SourceASS, m.TargetASS} {
		if ass != "" {
			tw.AppendRow(table.Row{"ASS subtitles", filepath.Join(dir, ass)})
		}
	}
	for i, f := range m.Failures {
		if i == maxFailureRows {
			tw.AppendRow(table.Row{"…", fmt.Sprintf("%d more failures in manifest", len(m.Failures)-maxFailureRows)})
			break
		}
		tw.AppendRow(table.Row{fmt.Sprintf("Cue %d failed", f.Index), f.Error})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, WidthMax: 80},
	})
	return tw.Render()
}
