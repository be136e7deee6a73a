package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompareOutputsLaw(t *testing.T) {
	// Property 4: equal iff stripping trailing whitespace and removing
	// blank lines makes the two files byte-equal.
	cases := []struct {
		name     string
		a, b     string
		wantSame bool
	}{
		{"identical", "42\n", "42\n", true},
		{"trailing space", "42 \n", "42\n", true},
		{"trailing tab", "42\t\n", "42", true},
		{"blank lines", "1\n\n2\n\n", "1\n2\n", true},
		{"different value", "41\n", "42\n", false},
		{"extra token", "4 2\n", "42\n", false},
		{"leading space differs", " 42\n", "42\n", false},
		{"no trailing newline", "42", "42\n", true},
	}
	dir := t.TempDir()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := writeTemp(t, dir, tc.name+"_a.txt", tc.a)
			b := writeTemp(t, dir, tc.name+"_b.txt", tc.b)
			got, err := compareOutputs(a, b)
			if err != nil {
				t.Fatalf("compareOutputs: %v", err)
			}
			if got != tc.wantSame {
				t.Fatalf("compareOutputs(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.wantSame)
			}
		})
	}
}

func TestCompareOutputsMissingFile(t *testing.T) {
	dir := t.TempDir()
	existing := writeTemp(t, dir, "exists.txt", "42\n")
	if _, err := compareOutputs(filepath.Join(dir, "missing.txt"), existing); err == nil {
		t.Fatal("expected error for missing actual file")
	}
	if _, err := compareOutputs(existing, filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatal("expected error for missing expected file")
	}
}
