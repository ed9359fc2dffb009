package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/narrator/pkg/snapshot"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		current  string
		want     string
	}{
		{"appended line", "A\nB", "A\nB\nC", "C"},
		{"first run returns everything", "", "A\n\n B \nC", "A\n\n B \nC"},
		{"unchanged", "A\nB\nC", "A\nB\nC", ""},
		{"order follows current", "B", "C\nA\nB\nD", "C\nA\nD"},
		{"blank lines dropped", "A", "A\n\n   \nB", "B"},
		{"whitespace is not a change", "  A  \nB", "A\n\tB", ""},
		{"removed lines ignored", "A\nB\nC", "A", ""},
		{"duplicates in current kept", "A", "B\nB", "B\nB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snapshot.Diff(tt.previous, tt.current))
		})
	}
}

func TestDiff_Properties(t *testing.T) {
	contents := []string{
		"single",
		"line one\nline two\nline three",
		"Überschrift\nText mit Umlauten\n2024-01-01",
	}

	for _, x := range contents {
		assert.Empty(t, snapshot.Diff(x, x), "diff(X, X) is empty")
		assert.Equal(t, x, snapshot.Diff("", x), "diff(\"\", X) is X")
	}
}

func TestDiff_ReappearingLineIsNewAgain(t *testing.T) {
	first := "A\nB"
	second := "A"
	third := "A\nB"

	assert.Empty(t, snapshot.Diff(first, second))
	assert.Equal(t, "B", snapshot.Diff(second, third))
}
