package event

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Column aliases accepted in trigger CSV headers. The second name in each
// group is the Omicron column name.
var columnAliases = map[string]string{
	"time":           "time",
	"peak_time":      "time",
	"frequency":      "frequency",
	"central_freq":   "frequency",
	"peak_frequency": "frequency",
	"significance":   "significance",
	"snr":            "significance",
	"duration":       "duration",
}

// CSVDirSource reads one <channel>.csv file per channel from Dir.
type CSVDirSource struct {
	Dir string

	// ChannelName maps a file stem to a channel name. Identity when nil.
	ChannelName func(stem string) string
}

// IFOChannelName turns "K1-CAL-MOCK" into "K1:CAL-MOCK", matching the
// detector-prefixed naming used by trigger generators that cannot write a
// colon into a file name.
func IFOChannelName(stem string) string {
	return strings.Replace(stem, "-", ":", 1)
}

func (s CSVDirSource) files() (map[string]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		stem := strings.TrimSuffix(filepath.Base(m), ".csv")
		name := stem
		if s.ChannelName != nil {
			name = s.ChannelName(stem)
		}
		out[name] = m
	}
	return out, nil
}

// Channels lists the channels found in Dir.
func (s CSVDirSource) Channels(context.Context) ([]string, error) {
	files, err := s.files()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Dir, err)
	}
	out := make([]string, 0, len(files))
	for ch := range files {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out, nil
}

// Read parses the channel's CSV file.
func (s CSVDirSource) Read(_ context.Context, channel string) ([]Event, error) {
	files, err := s.files()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Dir, err)
	}
	path, ok := files[channel]
	if !ok {
		return nil, fmt.Errorf("no trigger file for channel %q in %s", channel, s.Dir)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, channel)
}

// ReadCSV parses trigger rows from r. The first row is a header naming the
// columns (see columnAliases); duration is optional and defaults to 0.
func ReadCSV(r io.Reader, channel string) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		if canon, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			cols[canon] = i
		}
	}
	for _, required := range []string{"time", "frequency", "significance"} {
		if _, ok := cols[required]; !ok {
			return nil, &DataIntegrityError{Channel: channel, Index: -1,
				Reason: fmt.Sprintf("missing %q column in header %v", required, header)}
		}
	}

	var out []Event
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		var e Event
		e.Channel = channel
		fields := []struct {
			name string
			dst  *float64
		}{
			{"time", &e.Time},
			{"frequency", &e.Frequency},
			{"significance", &e.Significance},
			{"duration", &e.Duration},
		}
		for _, fld := range fields {
			idx, ok := cols[fld.name]
			if !ok {
				continue
			}
			if idx >= len(rec) {
				return nil, &DataIntegrityError{Channel: channel, Index: row, Field: fld.name, Reason: "is missing"}
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
			if err != nil {
				return nil, &DataIntegrityError{Channel: channel, Index: row, Field: fld.name,
					Reason: fmt.Sprintf("is not a number: %q", rec[idx])}
			}
			*fld.dst = v
		}
		out = append(out, e)
	}
	return out, nil
}

// WriteCSV writes events in the format ReadCSV accepts.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "frequency", "snr", "duration"}); err != nil {
		return err
	}
	for _, e := range events {
		rec := []string{
			strconv.FormatFloat(e.Time, 'f', -1, 64),
			strconv.FormatFloat(e.Frequency, 'f', -1, 64),
			strconv.FormatFloat(e.Significance, 'f', -1, 64),
			strconv.FormatFloat(e.Duration, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
