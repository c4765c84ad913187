// Package tabular reads delimited text exports (CSV, TSV) into ordered
// rows keyed by header name.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row maps a header name to the raw cell text of one record. A column that
// is missing from a short row is simply not present in the map.
type Row map[string]string

// Get returns the cell for the first of names present in the row. It lets
// callers accept a column under more than one header spelling.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v, ok := r[n]; ok {
			return v
		}
	}
	return ""
}

// Options controls parsing.
type Options struct {
	// Delimiter separates fields. Zero means comma.
	Delimiter rune
}

// ErrNoHeader is returned when the source has no header row.
var ErrNoHeader = errors.New("source has no header row")

// ReadFile opens path and reads every record into memory.
func ReadFile(path string, opts Options) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}

// Read parses the whole of r. The first record is the header; header names
// are trimmed and a leading UTF-8 byte order mark is dropped. Rows with more
// cells than there are headers keep only the headed cells.
func Read(r io.Reader, opts Options) ([]Row, error) {
	cr := csv.NewReader(stripBOM(r))
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(rows)+1, err)
		}
		if isBlank(record) {
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i >= len(record) {
				break
			}
			if name == "" {
				continue
			}
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseDelimiter maps a user-facing delimiter name to a rune. It accepts a
// single character or one of "comma", "tab", "semicolon", "pipe".
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "comma", ",":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "semicolon", ";":
		return ';', nil
	case "pipe", "|":
		return '|', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r[0], nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
