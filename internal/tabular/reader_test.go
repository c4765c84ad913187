package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadMapsHeaderToCells(t *testing.T) {
	src := "Subproject ID,Title,Total Budget\n" +
		"SP-1,Road A,\"₱1,500,000\"\n" +
		"SP-2,Road B,n/a\n"

	rows, err := Read(strings.NewReader(src), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["Subproject ID"] != "SP-1" || rows[0]["Total Budget"] != "₱1,500,000" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["Title"] != "Road B" || rows[1]["Total Budget"] != "n/a" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestReadStripsBOMAndTrimsHeaders(t *testing.T) {
	src := "\xEF\xBB\xBF Subproject ID , Status\nSP-9,Ongoing\n"
	rows, err := Read(strings.NewReader(src), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := rows[0]["Subproject ID"]; got != "SP-9" {
		t.Errorf("Subproject ID = %q, want SP-9 (header keys: %v)", got, rows[0])
	}
	if got := rows[0]["Status"]; got != "Ongoing" {
		t.Errorf("Status = %q, want Ongoing", got)
	}
}

func TestReadRaggedAndBlankRows(t *testing.T) {
	src := "a,b,c\n1,2\n,,\n4,5,6,7\n"
	rows, err := Read(strings.NewReader(src), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (blank row skipped)", len(rows))
	}
	if _, ok := rows[0]["c"]; ok {
		t.Error("short row should not carry a value for c")
	}
	if rows[1]["c"] != "6" || len(rows[1]) != 3 {
		t.Errorf("long row = %v, want only headed cells", rows[1])
	}
}

func TestReadTSV(t *testing.T) {
	src := "code\tname\nX1\tFirst\n"
	rows, err := Read(strings.NewReader(src), Options{Delimiter: '\t'})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rows[0]["name"] != "First" {
		t.Errorf("name = %q, want First", rows[0]["name"])
	}
}

func TestReadEmptySource(t *testing.T) {
	_, err := Read(strings.NewReader(""), Options{})
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}
}

func TestReadHeaderOnly(t *testing.T) {
	rows, err := Read(strings.NewReader("a,b\n"), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestRowGetAliases(t *testing.T) {
	r := Row{"Longitutde": "125.1"}
	if got := r.Get("Longitude", "Longitutde"); got != "125.1" {
		t.Errorf("Get = %q, want 125.1", got)
	}
	if got := r.Get("Nope"); got != "" {
		t.Errorf("Get missing = %q, want empty", got)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", ',', false},
		{"comma", ',', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"semicolon", ';', false},
		{"|", '|', false},
		{"#", '#', false},
		{"ab", 0, true},
		{`"`, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelimiter(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
