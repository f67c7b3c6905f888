package checks

import (
	"os"
	"strconv"
	"strings"
)

// ReadFailedStages reads the failed-stages file written by the aggregate
// entry point. A missing, empty or unreadable file yields nil.
func ReadFailedStages(path string) []int {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return ParseFailedStages(string(data))
}

// ParseFailedStages parses newline-separated stage numbers. Blank lines and
// lines that are not integers are skipped; repeats are dropped.
func ParseFailedStages(s string) []int {
	var ids []int
	seen := make(map[int]bool)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
