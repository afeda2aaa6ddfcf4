package analysis

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ExportCSV writes one row per driving phase to filename: type, start,
// duration, and any per-phase stats collected during analysis.
func ExportCSV(a *Analysis, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"Phase", "Start", "Duration (s)", "Avg Speed"}); err != nil {
		return err
	}

	for _, phase := range a.DrivingBehavior.Phases {
		record := []string{
			phase.Type,
			phase.StartTime.Format("2006-01-02T15:04:05Z07:00"),
			fmt.Sprintf("%.1f", phase.Duration.Seconds()),
			fmt.Sprintf("%.1f", phase.Stats["avg_speed"]),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	return nil
}
