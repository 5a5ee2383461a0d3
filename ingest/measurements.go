package ingest

import (
	"fmt"
	"math"
	"strings"

	"github.com/sam831212/battery-etl/logger"
	"github.com/sam831212/battery-etl/repository"
	"github.com/sam831212/battery-etl/repository/models"
)

// DefaultBatchSize bounds memory and transaction size for measurement
// insertion.
const DefaultBatchSize = 1000

// RequiredMeasurementColumns must be present (post-normalization) before
// any measurement write happens.
var RequiredMeasurementColumns = []string{ColStepNumber, ColExecutionTime, ColVoltage, ColCurrent}

// IngestStats reports aggregate per-row outcomes to the caller. Rows whose
// step_number has no mapping entry are dropped without touching either
// counter, so Saved+Errors can be less than the input row count.
type IngestStats struct {
	Saved  int `json:"saved"`
	Errors int `json:"errors"`
}

// IngestMeasurements batches, coerces and persists the detail rows bound to
// the step mapping produced by RegisterSteps.
//
// Structural problems (missing required columns, join-key coercion failure)
// abort before any write. A row whose step_number is not in the mapping is
// skipped silently: it belongs to a step the user excluded from the
// selection, which is expected. A per-row numeric coercion failure counts
// as an error and skips only that row. Each batch commits independently; a
// failed batch counts all its rows as errors and does not roll back prior
// batches.
func IngestMeasurements(repo *repository.Repository, detail *Frame, mapping map[int]uint, batchSize int, log logger.Logger) (IngestStats, *repository.RepositoryError) {
	var stats IngestStats

	if missing := detail.MissingColumns(RequiredMeasurementColumns); len(missing) > 0 {
		return stats, &repository.RepositoryError{
			Code:    repository.ErrCodeStructural,
			Message: "Detail file is missing required columns",
			Detail:  fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")),
		}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	// Coerce the join key for every row up front. Type drift on
	// step_number is a sign of upstream corruption and aborts the whole
	// ingestion, unlike per-row value errors below.
	stepNumbers := make([]int, detail.NumRows())
	for i := 0; i < detail.NumRows(); i++ {
		n, err := detail.Int(i, ColStepNumber)
		if err != nil {
			return stats, &repository.RepositoryError{
				Code:    repository.ErrCodeStructural,
				Message: "Failed to coerce step_number to integer",
				Detail:  err.Error(),
			}
		}
		stepNumbers[i] = n
	}

	total := detail.NumRows()
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}

		batch := make([]models.Measurement, 0, end-start)
		for i := start; i < end; i++ {
			stepID, ok := mapping[stepNumbers[i]]
			if !ok {
				// Step excluded from the user's selection.
				continue
			}
			m, err := buildMeasurement(detail, i, stepID)
			if err != nil {
				stats.Errors++
				continue
			}
			batch = append(batch, m)
		}

		if repoErr := repo.InsertMeasurementBatch(batch); repoErr != nil {
			log.Error("Measurement batch failed", "rows", len(batch), "err", repoErr.Error())
			stats.Errors += len(batch)
			continue
		}
		stats.Saved += len(batch)
	}

	return stats, nil
}

// buildMeasurement coerces one detail row. Voltage, current, capacity and
// energy round to 3 decimal places; temperature and state-of-charge to 1.
func buildMeasurement(f *Frame, row int, stepID uint) (models.Measurement, error) {
	m := models.Measurement{StepID: stepID}

	executionTime, err := f.Float(row, ColExecutionTime)
	if err != nil {
		return m, err
	}
	m.ExecutionTime = executionTime

	voltage, err := f.Float(row, ColVoltage)
	if err != nil {
		return m, err
	}
	m.Voltage = round(voltage, 3)

	current, err := f.Float(row, ColCurrent)
	if err != nil {
		return m, err
	}
	m.Current = round(current, 3)

	if v, ok := nonEmpty(f, row, ColTemperature); ok {
		parsed, err := f.Float(row, ColTemperature)
		if err != nil {
			return m, fmt.Errorf("temperature %q: %w", v, err)
		}
		m.Temperature = round(parsed, 1)
	}
	if v, ok := nonEmpty(f, row, ColCapacity); ok {
		parsed, err := f.Float(row, ColCapacity)
		if err != nil {
			return m, fmt.Errorf("capacity %q: %w", v, err)
		}
		m.Capacity = round(parsed, 3)
	}
	if v, ok := nonEmpty(f, row, ColEnergy); ok {
		parsed, err := f.Float(row, ColEnergy)
		if err != nil {
			return m, fmt.Errorf("energy %q: %w", v, err)
		}
		m.Energy = round(parsed, 3)
	}
	if v, ok := nonEmpty(f, row, ColStateOfCharge); ok {
		parsed, err := f.Float(row, ColStateOfCharge)
		if err != nil {
			return m, fmt.Errorf("state_of_charge %q: %w", v, err)
		}
		soc := round(parsed, 1)
		m.StateOfCharge = &soc
	}

	return m, nil
}

func nonEmpty(f *Frame, row int, col string) (string, bool) {
	v, ok := f.Value(row, col)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
