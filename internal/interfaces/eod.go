package interfaces

import "time"

// EodSummarizer turns a day of the trade log into a CSV report.
type EodSummarizer interface {
	// SummarizeDay writes the report for t's UTC day and returns its path.
	// An empty path with a nil error means there was nothing to report.
	SummarizeDay(t time.Time) (csvPath string, err error)

	// ShouldRunNow reports whether the previous UTC day has trades newer
	// than its report, and returns that day.
	ShouldRunNow() (bool, time.Time)
}
