// Package output renders run progress and summaries for a terminal.
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/JakeFAU/steam-vanity-checker/internal/progress"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Printer writes per-record and status lines. It satisfies progress.Printer.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool

	plus    *color.Color
	minus   *color.Color
	bang    *color.Color
	name    *color.Color
	taken   *color.Color
	errored *color.Color
	status  *color.Color
}

// NewPrinter builds a Printer writing to out.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		noColor: noColor,
		plus:    color.New(color.FgHiGreen),
		minus:   color.New(color.FgHiRed),
		bang:    color.New(color.FgHiMagenta),
		name:    color.New(color.FgHiWhite, color.Bold),
		taken:   color.New(color.FgHiYellow),
		errored: color.New(color.FgHiRed),
		status:  color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{p.plus, p.minus, p.bang, p.name, p.taken, p.errored, p.status} {
			c.DisableColor()
		}
	}
	return p
}

// Record prints one finished check.
func (p *Printer) Record(rec vanity.CheckRecord, snap progress.Snapshot) {
	counter := fmt.Sprintf("[%s/%s]", humanize.Comma(int64(snap.Checked)), totalLabel(snap))
	var line string
	switch rec.Status {
	case vanity.StatusAvailable:
		line = fmt.Sprintf("[%s] %s AVAILABLE: %s", p.plus.Sprint("+"), counter, p.name.Sprint(rec.Candidate))
	case vanity.StatusTaken:
		line = fmt.Sprintf("[%s] %s %s: %s", p.minus.Sprint("-"), counter, p.taken.Sprint("taken"), rec.Candidate)
	default:
		line = fmt.Sprintf("[%s] %s %s: %s (%s)", p.bang.Sprint("!"), counter, p.errored.Sprint("error"), rec.Candidate, describe(rec))
	}
	p.println(line)
}

// Status prints the aggregate status line.
func (p *Printer) Status(snap progress.Snapshot) {
	p.println(p.status.Sprint(progress.FormatStatus(snap)))
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, line)
}

func totalLabel(snap progress.Snapshot) string {
	if !snap.TotalKnown() {
		return "?"
	}
	return humanize.Comma(int64(snap.Total))
}

func describe(rec vanity.CheckRecord) string {
	code := "no response"
	if rec.HTTPStatus > 0 {
		code = fmt.Sprintf("HTTP %d", rec.HTTPStatus)
	}
	if rec.Note == "" {
		return code
	}
	return code + ", " + rec.Note
}
