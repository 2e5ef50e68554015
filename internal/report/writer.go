package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/fsutil"
	"github.com/banshee-data/veto.report/internal/monitoring"
	"github.com/banshee-data/veto.report/internal/veto"
)

var logf = monitoring.Component("report")

// Artifact file names written by Writer.WriteAll.
const (
	RoundsFile    = "rounds.csv"
	SegmentsFile  = "segments.txt"
	RemainingFile = "remaining.csv"
	ResultFile    = "result.json"
	PlotFile      = "rounds.png"
	ChartFile     = "report.html"
)

type artifact struct {
	name  string
	write func(io.Writer) error
}

// Writer writes the artifacts of a run into Dir.
type Writer struct {
	FS  fsutil.FileSystem
	Dir string

	// SkipPlot disables the PNG, which dominates write time for long runs.
	SkipPlot bool
}

// NewWriter creates a Writer on the OS filesystem.
func NewWriter(dir string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Dir: dir}
}

// WriteAll writes every artifact for res and returns the paths written.
func (w *Writer) WriteAll(res *veto.Result) ([]string, error) {
	if res == nil {
		return nil, fmt.Errorf("write report: nil result")
	}
	if err := w.FS.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	steps := []artifact{
		{RoundsFile, func(out io.Writer) error { return WriteRoundsCSV(out, res.Rounds) }},
		{SegmentsFile, func(out io.Writer) error { return WriteSegments(out, res.Segments) }},
		{RemainingFile, func(out io.Writer) error { return writeRemaining(out, res.Remaining) }},
		{ResultFile, func(out io.Writer) error { return writeResultJSON(out, res) }},
		{ChartFile, func(out io.Writer) error { return WriteRoundsHTML(out, res.Primary, res.Rounds) }},
	}
	if !w.SkipPlot {
		steps = append(steps, artifact{PlotFile, func(out io.Writer) error { return WriteRoundsPNG(out, res.Primary, res.Rounds) }})
	}

	paths := make([]string, 0, len(steps))
	for _, s := range steps {
		path := filepath.Join(w.Dir, s.name)
		if err := w.writeFile(path, s.write); err != nil {
			return paths, fmt.Errorf("write %s: %w", s.name, err)
		}
		paths = append(paths, path)
	}
	logf("wrote %d artifacts for run %s to %s", len(paths), res.RunID, w.Dir)
	return paths, nil
}

func (w *Writer) writeFile(path string, write func(io.Writer) error) error {
	f, err := w.FS.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRemaining(w io.Writer, remaining *event.Population) error {
	if remaining.Len() == 0 {
		return event.WriteCSV(w, nil)
	}
	return event.WriteCSV(w, remaining.Events())
}

func writeResultJSON(w io.Writer, res *veto.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
