package segment

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadSpanFile reads an analysis span from a segments text file. The first
// non-blank, non-comment line holds "start end" (extra columns ignored).
func ReadSpanFile(path string) (Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Segment{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return ParseSpan(line)
	}
	if err := sc.Err(); err != nil {
		return Segment{}, err
	}
	return Segment{}, fmt.Errorf("%s: no segment found", path)
}

// ParseSpan parses "start end" into a valid Segment.
func ParseSpan(line string) (Segment, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return Segment{}, fmt.Errorf("invalid segment %q: expected \"start end\"", line)
	}
	start, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Segment{}, fmt.Errorf("invalid start %q: %w", parts[0], err)
	}
	end, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Segment{}, fmt.Errorf("invalid end %q: %w", parts[1], err)
	}
	seg := Segment{Start: start, End: end}
	if !seg.Valid() {
		return Segment{}, fmt.Errorf("invalid segment %q: start must be before end", line)
	}
	return seg, nil
}
