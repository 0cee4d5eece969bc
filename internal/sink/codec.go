package sink

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// Header is the first row of a fresh full log.
var Header = []string{"username", "status", "http_status", "timestamp", "note"}

// NoHTTPStatus is written in place of a status code when no response was received.
const NoHTTPStatus = "-"

// legacyTimeLayout is accepted when replaying logs written by earlier tooling.
const legacyTimeLayout = "2006-01-02 15:04:05"

// EncodeRecord renders rec as one CSV line including the trailing newline.
func EncodeRecord(rec vanity.CheckRecord) ([]byte, error) {
	code := NoHTTPStatus
	if rec.HTTPStatus > 0 {
		code = strconv.Itoa(rec.HTTPStatus)
	}
	note := strings.NewReplacer("\r", " ", "\n", " ").Replace(rec.Note)
	return encodeRow([]string{
		rec.Candidate,
		string(rec.Status),
		code,
		rec.CheckedAt.UTC().Format(time.RFC3339),
		note,
	})
}

func encodeRow(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrHeaderLine is returned by DecodeLine for the header row.
var ErrHeaderLine = errors.New("header line")

// DecodeLine parses one full-log line. The candidate is returned as written;
// callers normalize it.
func DecodeLine(line string) (vanity.CheckRecord, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if errors.Is(err, io.EOF) {
		return vanity.CheckRecord{}, fmt.Errorf("empty line")
	}
	if err != nil {
		return vanity.CheckRecord{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(fields) < 4 {
		return vanity.CheckRecord{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	if fields[0] == Header[0] && fields[1] == Header[1] {
		return vanity.CheckRecord{}, ErrHeaderLine
	}
	status, err := vanity.ParseStatus(fields[1])
	if err != nil {
		return vanity.CheckRecord{}, err
	}
	rec := vanity.CheckRecord{Candidate: strings.TrimSpace(fields[0]), Status: status}
	if code := strings.TrimSpace(fields[2]); code != "" && code != NoHTTPStatus {
		n, err := strconv.Atoi(code)
		if err != nil || n < 0 {
			return vanity.CheckRecord{}, fmt.Errorf("bad http status %q", code)
		}
		rec.HTTPStatus = n
	}
	ts := strings.TrimSpace(fields[3])
	if rec.CheckedAt, err = time.Parse(time.RFC3339, ts); err != nil {
		if rec.CheckedAt, err = time.Parse(legacyTimeLayout, ts); err != nil {
			return vanity.CheckRecord{}, fmt.Errorf("bad timestamp %q", ts)
		}
	}
	if len(fields) > 4 {
		rec.Note = fields[4]
	}
	return rec, nil
}
