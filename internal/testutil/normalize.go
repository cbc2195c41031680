package testutil

import (
	"strings"
)

// Dedent removes the common leading tab indentation from the lines of s
// and trims leading blank lines, so expected DTS output can be written
// indented inside Go raw strings.
func Dedent(s string) string {
	s = strings.TrimLeft(s, "\n")
	lines := strings.Split(s, "\n")

	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, "\t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return s
	}

	for i, line := range lines {
		if len(line) >= common {
			lines[i] = line[common:]
		} else {
			lines[i] = strings.TrimLeft(line, "\t")
		}
	}
	return strings.Join(lines, "\n")
}
