package ingest

import (
	"math"

	"github.com/sam831212/battery-etl/logger"
	"github.com/sam831212/battery-etl/repository/models"
)

// ParseSteps builds Step records from a normalized step frame, keeping only
// rows whose step_number is in selected (nil or empty selects everything).
// Rows missing step_number or step_type are skipped with a logged warning,
// not an abort; partial step registration is tolerated. The registrar's
// completeness check against the selection catches anything that matters.
//
// c_rate is |current| / nominalCapacity when nominalCapacity > 0, else 0.0.
// It never divides by zero.
func ParseSteps(f *Frame, nominalCapacity float64, selected []int, log logger.Logger) []models.Step {
	selectedSet := make(map[int]bool, len(selected))
	for _, n := range selected {
		selectedSet[n] = true
	}

	var steps []models.Step
	for i := 0; i < f.NumRows(); i++ {
		stepNumber, err := f.Int(i, ColStepNumber)
		if err != nil {
			log.Info("Skipping step row without step number", "row", i, "err", err.Error())
			continue
		}
		stepType, ok := f.Value(i, ColStepType)
		if !ok || stepType == "" {
			log.Info("Skipping step row without step type", "row", i, "step_number", stepNumber)
			continue
		}
		if len(selectedSet) > 0 && !selectedSet[stepNumber] {
			continue
		}

		step := models.Step{
			StepNumber: stepNumber,
			StepType:   stepType,
		}
		if v, ok := f.Value(i, ColStepName); ok {
			step.StepName = v
		}
		if v, ok := f.Value(i, ColStatus); ok {
			step.Status = v
		}
		if v, err := f.Float(i, ColVoltage); err == nil {
			step.EndVoltage = v
		}
		if v, err := f.Float(i, ColCapacity); err == nil {
			step.Capacity = v
		}
		if v, err := f.Float(i, ColEnergy); err == nil {
			step.Energy = v
		}
		if v, err := f.Float(i, ColTemperature); err == nil {
			step.Temperature = v
		}
		if current, err := f.Float(i, ColCurrent); err == nil && nominalCapacity > 0 {
			step.CRate = math.Abs(current) / nominalCapacity
		}

		steps = append(steps, step)
	}
	return steps
}

// ApplyStepBoundaries fills each step's time bounds and boundary voltages
// from its first and last detail sample, ordered by execution_time. These
// are the samples downsampling always retains, so the values are stable
// whether or not the detail frame gets filtered afterwards. An end voltage
// already carried by the step file is kept.
func ApplyStepBoundaries(steps []models.Step, detail *Frame) {
	type boundary struct {
		firstRow, lastRow   int
		firstTime, lastTime float64
	}
	byStep := make(map[int]*boundary)
	for i := 0; i < detail.NumRows(); i++ {
		stepNumber, err := detail.Int(i, ColStepNumber)
		if err != nil {
			continue
		}
		executionTime, err := detail.Float(i, ColExecutionTime)
		if err != nil {
			continue
		}
		b, seen := byStep[stepNumber]
		if !seen {
			byStep[stepNumber] = &boundary{firstRow: i, lastRow: i, firstTime: executionTime, lastTime: executionTime}
			continue
		}
		if executionTime < b.firstTime {
			b.firstTime = executionTime
			b.firstRow = i
		}
		if executionTime >= b.lastTime {
			b.lastTime = executionTime
			b.lastRow = i
		}
	}

	for i := range steps {
		b, ok := byStep[steps[i].StepNumber]
		if !ok {
			continue
		}
		if v, err := detail.Float(b.firstRow, ColVoltage); err == nil {
			steps[i].StartVoltage = v
		}
		if steps[i].EndVoltage == 0 {
			if v, err := detail.Float(b.lastRow, ColVoltage); err == nil {
				steps[i].EndVoltage = v
			}
		}
		if raw, ok := detail.Value(b.firstRow, ColDateTime); ok {
			if t, err := parseDateTime(raw); err == nil {
				steps[i].StartTime = &t
			}
		}
		if raw, ok := detail.Value(b.lastRow, ColDateTime); ok {
			if t, err := parseDateTime(raw); err == nil {
				steps[i].EndTime = &t
			}
		}
	}
}
