package output

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
	"github.com/JakeFAU/steam-vanity-checker/internal/resume"
)

// RunSummary is what the check command reports once a run ends.
type RunSummary struct {
	Snapshot     progress.Snapshot
	Skipped      int
	Dropped      int
	FullLog      string
	AvailableLog string
	Exported     []string
}

func newTable(w io.Writer, title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.Style().Options.SeparateRows = false
	return tbl
}

// WriteRunSummary renders the end-of-run table.
func WriteRunSummary(w io.Writer, sum RunSummary) {
	snap := sum.Snapshot
	tbl := newTable(w, "Run "+snap.RunID.String())
	tbl.AppendRows([]table.Row{
		{"Checked", humanize.Comma(int64(snap.Checked))},
		{"Available", humanize.Comma(int64(snap.Available))},
		{"Taken", humanize.Comma(int64(snap.Taken))},
		{"Errors", humanize.Comma(int64(snap.Errors))},
		{"Skipped (resume)", humanize.Comma(int64(sum.Skipped))},
	})
	if sum.Dropped > 0 {
		tbl.AppendRow(table.Row{"Interrupted", humanize.Comma(int64(sum.Dropped))})
	}
	tbl.AppendRow(table.Row{"Elapsed", progress.FormatClock(snap.Elapsed)})
	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"Full log", sum.FullLog})
	tbl.AppendRow(table.Row{"Available log", sum.AvailableLog})
	for _, uri := range sum.Exported {
		tbl.AppendRow(table.Row{"Exported", uri})
	}
	tbl.Render()
}

// WriteStats renders a replayed full log. At most maxNames available names
// are listed; 0 lists none.
func WriteStats(w io.Writer, path string, sum resume.Summary, maxNames int) {
	tbl := newTable(w, path)
	tbl.AppendRows([]table.Row{
		{"Lines", humanize.Comma(int64(sum.Lines))},
		{"Corrupt lines", humanize.Comma(int64(sum.Corrupt))},
		{"Distinct candidates", humanize.Comma(int64(sum.Distinct))},
		{"Available", humanize.Comma(int64(sum.Available))},
		{"Taken", humanize.Comma(int64(sum.Taken))},
		{"Errors", humanize.Comma(int64(sum.Errors))},
	})
	if !sum.First.IsZero() {
		tbl.AppendRow(table.Row{"First check", fmt.Sprintf("%s (%s)", sum.First.Format("2006-01-02 15:04:05"), humanize.Time(sum.First))})
		tbl.AppendRow(table.Row{"Last check", fmt.Sprintf("%s (%s)", sum.Last.Format("2006-01-02 15:04:05"), humanize.Time(sum.Last))})
	}
	tbl.Render()

	if maxNames <= 0 || len(sum.AvailableNames) == 0 {
		return
	}
	names := table.NewWriter()
	names.SetOutputMirror(w)
	names.SetStyle(table.StyleLight)
	names.Style().Format.Header = text.FormatDefault
	names.AppendHeader(table.Row{"#", "Available name"})
	for i, n := range sum.AvailableNames {
		if i == maxNames {
			names.AppendSeparator()
			names.AppendRow(table.Row{"", fmt.Sprintf("... %s more", humanize.Comma(int64(len(sum.AvailableNames)-maxNames)))})
			break
		}
		names.AppendRow(table.Row{i + 1, n})
	}
	names.Render()
}
