// Package report renders veto run results: a CSV round table, a segment
// list, a PNG of cumulative efficiency and deadtime, and an interactive HTML
// chart.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/veto.report/internal/segment"
	"github.com/banshee-data/veto.report/internal/veto"
)

// RoundsHeader is the header row of the round table.
var RoundsHeader = []string{
	"round", "winner", "threshold", "window", "significance",
	"observed", "expected", "use_percentage",
	"live_before", "live_after", "vetoed",
	"efficiency", "deadtime", "efficiency_over_deadtime",
}

func formatG(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// RoundRow formats one round for the round table.
func RoundRow(r veto.RoundRecord) []string {
	return []string{
		strconv.Itoa(r.Round),
		r.Winner,
		formatG(r.Point.Threshold),
		formatG(r.Point.Window),
		formatG(r.Significance),
		strconv.Itoa(r.Observed),
		formatG(r.Expected),
		fmt.Sprintf("%.6f", r.UsePercentage),
		strconv.Itoa(r.LiveBefore),
		strconv.Itoa(r.LiveAfter),
		strconv.Itoa(len(r.VetoedIDs)),
		fmt.Sprintf("%.6f", r.Efficiency),
		fmt.Sprintf("%.6f", r.Deadtime),
		fmt.Sprintf("%.6f", r.EfficiencyOverDeadtime()),
	}
}

// WriteRoundsCSV writes the round table, header first.
func WriteRoundsCSV(w io.Writer, rounds []veto.RoundRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RoundsHeader); err != nil {
		return err
	}
	for _, r := range rounds {
		if err := cw.Write(RoundRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSegments writes one "start end" line per segment, the format read back
// by segment.ReadSpanFile and by most segment tooling.
func WriteSegments(w io.Writer, set segment.Set) error {
	for _, s := range set {
		if _, err := fmt.Fprintf(w, "%s %s\n",
			strconv.FormatFloat(s.Start, 'f', -1, 64),
			strconv.FormatFloat(s.End, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}
