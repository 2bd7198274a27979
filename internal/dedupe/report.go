package dedupe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report renders a merge pass result as a human-readable table for the
// CLI.
func Report(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scanned %d albums: %d clusters, %d absorbed, %d duplicate tracks removed\n",
		r.AlbumsScanned, r.Clusters, r.Absorbed, r.TracksRemoved)
	if len(r.Merges) == 0 {
		return b.String()
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Survivor", "Artist", "Title", "Absorbed", "Tracks Removed"})
	for _, m := range r.Merges {
		tw.AppendRow(table.Row{
			m.SurvivorID,
			m.Artist,
			m.Title,
			strconv.Itoa(len(m.AbsorbedIDs)),
			strconv.Itoa(m.TracksRemoved),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	b.WriteString(tw.Render())
	b.WriteByte('\n')
	return b.String()
}
