package mcp

import (
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      int
		min      int
		max      int
		expected int
	}{
		{"value in range", 5, 1, 10, 5},
		{"value below min", -3, 1, 10, 1},
		{"value above max", 15, 1, 10, 10},
		{"value equals min", 1, 1, 10, 1},
		{"empty range", 4, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clamp(tt.val, tt.min, tt.max)
			if got != tt.expected {
				t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.expected)
			}
		})
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Error("ReadOnlyHint should be true")
	}
	if ann.DestructiveHint != nil {
		t.Error("DestructiveHint should be unset for read-only tools")
	}
}

func TestToolErrorIsNotFatal(t *testing.T) {
	res, err := toolError("bad %s", "input")
	if err != nil {
		t.Fatalf("toolError returned a protocol error: %v", err)
	}
	if !res.IsError {
		t.Error("result should be flagged as an error")
	}
}
