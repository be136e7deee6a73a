package runner

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// compareOutputs implements the answer-comparison law: two files are equal
// iff, after stripping trailing whitespace from every line and discarding
// blank lines, they are byte-equal line-for-line. This is GNU diff's
// `-w -B` contract and must be implemented to that contract rather than
// via a looser "collapse all whitespace" rule, so e.g. "a b" and "ab"
// remain distinct while "a \n\n" and "a" compare equal.
func compareOutputs(actualPath, expectedPath string) (bool, error) {
	actual, err := os.Open(actualPath)
	if err != nil {
		return false, err
	}
	defer actual.Close()

	expected, err := os.Open(expectedPath)
	if err != nil {
		return false, err
	}
	defer expected.Close()

	aLines := significantLines(actual)
	eLines := significantLines(expected)

	for {
		aLine, aOK := aLines()
		eLine, eOK := eLines()
		if !aOK && !eOK {
			return true, nil
		}
		if aOK != eOK {
			return false, nil
		}
		if aLine != eLine {
			return false, nil
		}
	}
}

// significantLines returns an iterator over r's lines with trailing
// whitespace stripped and blank lines skipped, matching `diff -w -B`.
func significantLines(r io.Reader) func() (string, bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	return func() (string, bool) {
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), " \t\r")
			if line == "" {
				continue
			}
			return line, true
		}
		return "", false
	}
}
