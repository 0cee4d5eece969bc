package resume

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxLineBytes bounds one full-log row. Real rows are well under 1 KiB, so
// anything longer is a torn or garbage line.
const maxLineBytes = 64 * 1024

// eachLine calls fn for every line of r, numbered from 1. A line longer than
// maxLineBytes is passed with tooLong set and its text dropped, so one bad
// line never stops the replay.
func eachLine(r io.Reader, fn func(n int, text string, tooLong bool)) error {
	br := bufio.NewReaderSize(r, maxLineBytes)
	n := 0
	for {
		chunk, err := br.ReadSlice('\n')
		tooLong := false
		for errors.Is(err, bufio.ErrBufferFull) {
			tooLong = true
			_, err = br.ReadSlice('\n')
		}
		if tooLong || len(chunk) > 0 {
			n++
			text := ""
			if !tooLong {
				text = strings.TrimRight(string(chunk), "\r\n")
			}
			fn(n, text, tooLong)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", n+1, err)
		}
	}
}
