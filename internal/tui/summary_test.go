package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

func TestRenderIngestSummary(t *testing.T) {
	out := RenderIngestSummary([]csvingest.TableResult{
		{
			Table:          "people",
			Files:          []csvingest.FileResult{{RowsLoaded: 3}, {RowsLoaded: 2}},
			Duplicates:     1,
			RowsMerged:     4,
			AddedColumns:   []string{"email"},
			IgnoredColumns: nil,
		},
		{Table: "visits", Skipped: true},
		{Table: "tags", Failed: true},
	})

	lines := strings.Split(out, "\n")
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "DUPLICATES")

	people := lineWith(lines, "people")
	assert.Contains(t, people, "email")
	assert.Contains(t, people, StatusLoaded)
	assert.Contains(t, people, " 5 ")

	assert.Contains(t, lineWith(lines, "visits"), StatusSkipped)
	assert.Contains(t, lineWith(lines, "tags"), StatusFailed)
}

func TestRenderIngestSummary_Empty(t *testing.T) {
	out := RenderIngestSummary(nil)
	assert.Contains(t, out, "STATUS")
	assert.NotContains(t, out, StatusLoaded)
}

func lineWith(lines []string, s string) string {
	for _, l := range lines {
		if strings.Contains(l, s) {
			return l
		}
	}
	return ""
}
