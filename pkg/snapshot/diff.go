package snapshot

import "strings"

// Diff returns the lines of current that do not appear in previous, in the
// order they appear in current. Lines are trimmed and blank lines dropped.
// An empty previous means the source is new and current is returned as is.
//
// A line that vanished from the last snapshot and later comes back is
// reported as new again, because Save replaces the snapshot instead of
// merging it.
func Diff(previous, current string) string {
	if previous == "" {
		return current
	}

	seen := make(map[string]struct{})
	for _, line := range strings.Split(previous, "\n") {
		seen[strings.TrimSpace(line)] = struct{}{}
	}

	var fresh []string
	for _, line := range strings.Split(current, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		fresh = append(fresh, line)
	}

	return strings.Join(fresh, "\n")
}
