package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

var summaryHeaders = []string{"TABLE", "FILES", "ROWS", "DUPLICATES", "MERGED", "ADDED", "IGNORED", "STATUS"}

// statusColumn is the index of STATUS in summaryHeaders.
const statusColumn = 7

// RenderIngestSummary lays out one row per table result. Colors are dropped
// automatically when stdout is not a terminal.
func RenderIngestSummary(results []csvingest.TableResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Table,
			strconv.Itoa(len(r.Files)),
			strconv.FormatInt(r.RowsLoaded(), 10),
			strconv.FormatInt(r.Duplicates, 10),
			strconv.FormatInt(r.RowsMerged, 10),
			joinOrDash(r.AddedColumns),
			joinOrDash(r.IgnoredColumns),
			status(r),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		Headers(summaryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow || row < 0 || row >= len(rows):
				return HeaderStyle
			case col == statusColumn:
				return statusStyle(rows[row][col])
			case col >= 1 && col <= 4:
				return NumberStyle
			}
			return CellStyle
		})
	return t.Render()
}

func status(r csvingest.TableResult) string {
	switch {
	case r.Failed:
		return StatusFailed
	case r.Skipped:
		return StatusSkipped
	}
	return StatusLoaded
}

func statusStyle(s string) lipgloss.Style {
	switch s {
	case StatusFailed:
		return ErrorStyle
	case StatusSkipped:
		return WarningStyle
	}
	return SuccessStyle
}

func joinOrDash(cols []string) string {
	if len(cols) == 0 {
		return "-"
	}
	return strings.Join(cols, ", ")
}
