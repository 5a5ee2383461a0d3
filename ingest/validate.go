package ingest

import (
	"time"
)

// Required canonical columns per file type. Checked after NormalizeColumns.
var (
	RequiredStepColumns   = []string{ColStepNumber, ColStepType, ColStepName, ColStatus}
	RequiredDetailColumns = []string{ColDateTime, ColVoltage, ColCurrent}
)

// statsColumns are the detail columns that get min/max/mean statistics.
var statsColumns = []string{ColVoltage, ColCurrent, ColCapacity}

// dateTimeLayouts are tried in order when parsing the date_time column.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	time.RFC3339,
}

// ColumnStats holds min/max/mean for one numeric column. Valid is false
// when the column is absent or no value could be parsed; callers must not
// substitute zero for an invalid stat.
type ColumnStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Valid bool    `json:"valid"`
}

// FileReport is the validation report for one input file.
type FileReport struct {
	RowCount           int                    `json:"row_count"`
	ColumnCount        int                    `json:"column_count"`
	HasRequiredColumns bool                   `json:"has_required_columns"`
	MissingColumns     []string               `json:"missing_columns,omitempty"`
	Stats              map[string]ColumnStats `json:"stats,omitempty"`
	StepTypeCounts     map[string]int         `json:"step_type_counts,omitempty"`
	TimeRangeValid     bool                   `json:"time_range_valid"`
	TimeMin            time.Time              `json:"time_min,omitempty"`
	TimeMax            time.Time              `json:"time_max,omitempty"`
}

// Validate computes the advisory validation report for a step/detail file
// pair. The overall flag is the AND of: both files have their required
// columns and both files have at least one row. It gates downstream
// ingestion, but enforcement is the caller's responsibility.
func Validate(stepFrame, detailFrame *Frame) (bool, *FileReport, *FileReport) {
	stepReport := validateStepFrame(stepFrame)
	detailReport := validateDetailFrame(detailFrame)

	overall := stepReport.HasRequiredColumns && detailReport.HasRequiredColumns &&
		stepReport.RowCount > 0 && detailReport.RowCount > 0
	return overall, stepReport, detailReport
}

func validateStepFrame(f *Frame) *FileReport {
	report := &FileReport{
		RowCount:    f.NumRows(),
		ColumnCount: f.NumColumns(),
	}
	report.MissingColumns = f.MissingColumns(RequiredStepColumns)
	report.HasRequiredColumns = len(report.MissingColumns) == 0
	report.StepTypeCounts = countStepTypes(f)
	report.TimeMin, report.TimeMax, report.TimeRangeValid = timeRange(f)
	return report
}

func validateDetailFrame(f *Frame) *FileReport {
	report := &FileReport{
		RowCount:    f.NumRows(),
		ColumnCount: f.NumColumns(),
		Stats:       make(map[string]ColumnStats, len(statsColumns)),
	}
	report.MissingColumns = f.MissingColumns(RequiredDetailColumns)
	report.HasRequiredColumns = len(report.MissingColumns) == 0

	for _, col := range statsColumns {
		report.Stats[col] = columnStats(f, col)
	}

	report.TimeMin, report.TimeMax, report.TimeRangeValid = timeRange(f)
	return report
}

func countStepTypes(f *Frame) map[string]int {
	if !f.HasColumn(ColStepType) {
		return nil
	}
	counts := make(map[string]int)
	for i := 0; i < f.NumRows(); i++ {
		if v, ok := f.Value(i, ColStepType); ok {
			counts[v]++
		}
	}
	return counts
}

// columnStats computes min/max/mean over the parseable values of one
// column. An absent column yields Valid=false, not a numeric default.
func columnStats(f *Frame, col string) ColumnStats {
	if !f.HasColumn(col) {
		return ColumnStats{Valid: false}
	}
	var (
		min, max, sum float64
		n             int
	)
	for i := 0; i < f.NumRows(); i++ {
		v, err := f.Float(i, col)
		if err != nil {
			continue
		}
		if n == 0 || v < min {
			min = v
		}
		if n == 0 || v > max {
			max = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return ColumnStats{Valid: false}
	}
	return ColumnStats{Min: min, Max: max, Mean: sum / float64(n), Valid: true}
}

// timeRange returns the min/max of the date_time column. Any parse failure
// marks the range invalid rather than raising.
func timeRange(f *Frame) (time.Time, time.Time, bool) {
	if !f.HasColumn(ColDateTime) || f.NumRows() == 0 {
		return time.Time{}, time.Time{}, false
	}
	var min, max time.Time
	for i := 0; i < f.NumRows(); i++ {
		raw, ok := f.Value(i, ColDateTime)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		t, err := parseDateTime(raw)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		if i == 0 || t.Before(min) {
			min = t
		}
		if i == 0 || t.After(max) {
			max = t
		}
	}
	return min, max, true
}

func parseDateTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
