// Package installed persists which packages have been installed, and at
// which version, so that repeat runs can skip them.
//
// The on-disk record is plain UTF-8 text, one `name@version` entry per line.
package installed

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Record maps a package name to the last version installed successfully.
type Record map[string]int

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for name, version := range r {
		out[name] = version
	}
	return out
}

// Legacy returns the record implied by the old single-line format, which
// stored just "1" once the IDE bootstrap had completed.
func Legacy() Record {
	return Record{
		"Cloud9 IDE":    1,
		"c9.ide.collab": 1,
		"c9.ide.find":   1,
	}
}

var legacyPattern = regexp.MustCompile(`^\s*1\s*$`)

// Parse decodes a durable record. Lines that are not `name@version` are
// returned in skipped and otherwise ignored. Names are taken verbatim, so
// surrounding spaces survive a Serialize round trip.
func Parse(data []byte) (record Record, skipped []string) {
	if legacyPattern.Match(data) {
		return Legacy(), nil
	}

	record = make(Record)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		name, version, err := parseEntry(line)
		if err != nil {
			skipped = append(skipped, line)
			continue
		}
		record[name] = version
	}
	return record, skipped
}

// parseEntry splits on the last "@" so that names such as "node@20" survive.
func parseEntry(line string) (string, int, error) {
	idx := strings.LastIndexByte(line, '@')
	if idx <= 0 || idx == len(line)-1 {
		return "", 0, fmt.Errorf("malformed entry %q", line)
	}

	name := line[:idx]
	version, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	if err != nil {
		return "", 0, fmt.Errorf("malformed version in %q: %w", line, err)
	}
	if strings.TrimSpace(name) == "" {
		return "", 0, fmt.Errorf("empty package name in %q", line)
	}
	return name, version, nil
}

// Serialize encodes r with entries sorted by name. A name containing a line
// break cannot be represented; manifests reject such names.
func Serialize(r Record) []byte {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "%s@%d\n", name, r[name])
	}
	return buf.Bytes()
}
