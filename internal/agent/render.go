package agent

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tickerchat/tickerchat/internal/store"
)

// renderResult formats an executed result for the assistant reply: a row
// count line followed by a fenced text table in store column order.
func renderResult(result store.Result) string {
	if result.RowCount == 0 {
		return "Query returned 0 rows."
	}

	tw := table.NewWriter()
	header := make(table.Row, 0, len(result.Columns))
	for _, column := range result.Columns {
		header = append(header, column)
	}
	tw.AppendHeader(header)
	for _, row := range result.Rows {
		tw.AppendRow(table.Row(row))
	}
	tw.SetStyle(table.StyleLight)

	return fmt.Sprintf("Query Results (%d rows):\n```\n%s\n```", result.RowCount, tw.Render())
}
