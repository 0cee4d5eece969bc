package resume

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/JakeFAU/steam-vanity-checker/internal/sink"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Summary aggregates a full log. Only the latest row per candidate counts.
type Summary struct {
	Lines     int
	Corrupt   int
	Distinct  int
	Available int
	Taken     int
	Errors    int
	First     time.Time
	Last      time.Time
	// AvailableNames keeps log order.
	AvailableNames []string
}

// Summarize replays the full log at path. Candidates are normalized with
// norm, so the counts match what a resumed run would skip. A nil norm keeps
// candidates as written.
func Summarize(path string, norm *vanity.Normalizer) (Summary, error) {
	file, err := os.Open(path) //nolint:gosec // operator supplied path
	if errors.Is(err, os.ErrNotExist) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("open log: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only

	var (
		sum    Summary
		latest = make(map[string]vanity.CheckRecord)
		order  []string
	)
	err = eachLine(file, func(_ int, text string, tooLong bool) {
		if text == "" && !tooLong {
			return
		}
		rec, err := decode(text, tooLong, norm)
		if errors.Is(err, sink.ErrHeaderLine) {
			return
		}
		sum.Lines++
		if err != nil {
			sum.Corrupt++
			return
		}
		if _, ok := latest[rec.Candidate]; !ok {
			order = append(order, rec.Candidate)
		}
		latest[rec.Candidate] = rec
		if sum.First.IsZero() || rec.CheckedAt.Before(sum.First) {
			sum.First = rec.CheckedAt
		}
		if rec.CheckedAt.After(sum.Last) {
			sum.Last = rec.CheckedAt
		}
	})
	if err != nil {
		return Summary{}, fmt.Errorf("scan log: %w", err)
	}
	sum.Distinct = len(order)
	for _, c := range order {
		switch rec := latest[c]; rec.Status {
		case vanity.StatusAvailable:
			sum.Available++
			sum.AvailableNames = append(sum.AvailableNames, c)
		case vanity.StatusTaken:
			sum.Taken++
		case vanity.StatusError:
			sum.Errors++
		}
	}
	return sum, nil
}
