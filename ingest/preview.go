package ingest

import (
	"bytes"
	"fmt"
	"strings"
)

// StepPreview is one parsed step row, returned to the UI so the user can
// choose the subset of steps to ingest.
type StepPreview struct {
	StepNumber int    `json:"step_number"`
	StepType   string `json:"step_type"`
	StepName   string `json:"step_name,omitempty"`
	Status     string `json:"status,omitempty"`
}

// PreviewSteps parses a step file and returns the parseable step rows.
// Rows missing a step number or type are left out, matching what step
// registration would later skip.
func PreviewSteps(content []byte) ([]StepPreview, error) {
	f, err := ReadCSV(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse step file: %w", err)
	}
	NormalizeColumns(f)

	if missing := f.MissingColumns([]string{ColStepNumber, ColStepType}); len(missing) > 0 {
		return nil, fmt.Errorf("step file is missing columns: %s", strings.Join(missing, ", "))
	}

	var previews []StepPreview
	for i := 0; i < f.NumRows(); i++ {
		stepNumber, err := f.Int(i, ColStepNumber)
		if err != nil {
			continue
		}
		stepType, ok := f.Value(i, ColStepType)
		if !ok || stepType == "" {
			continue
		}
		preview := StepPreview{StepNumber: stepNumber, StepType: stepType}
		if v, ok := f.Value(i, ColStepName); ok {
			preview.StepName = v
		}
		if v, ok := f.Value(i, ColStatus); ok {
			preview.Status = v
		}
		previews = append(previews, preview)
	}
	return previews, nil
}
