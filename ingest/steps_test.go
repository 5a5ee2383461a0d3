package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam831212/battery-etl/logger"
)

func stepFrameFromCSV(t *testing.T, csv string) *Frame {
	t.Helper()
	f, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return NormalizeColumns(f)
}

func TestParseSteps_SelectionFilter(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status\n"+
		"1,charge,CC charge,finished\n"+
		"2,rest,rest,finished\n"+
		"3,discharge,CC discharge,finished\n")

	steps := ParseSteps(f, 0, []int{1, 3}, logger.NewNop())

	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 3, steps[1].StepNumber)
}

func TestParseSteps_EmptySelectionKeepsEverything(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status\n"+
		"1,charge,CC charge,finished\n"+
		"2,rest,rest,finished\n")

	steps := ParseSteps(f, 0, nil, logger.NewNop())
	assert.Len(t, steps, 2)
}

func TestParseSteps_SkipsRowsMissingIdentity(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status\n"+
		",charge,no number,finished\n"+
		"2,,no type,finished\n"+
		"3,discharge,ok,finished\n")

	steps := ParseSteps(f, 0, nil, logger.NewNop())

	require.Len(t, steps, 1)
	assert.Equal(t, 3, steps[0].StepNumber)
}

func TestParseSteps_CRate(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status,Current\n"+
		"1,charge,CC charge,finished,1.5\n"+
		"2,discharge,CC discharge,finished,-3.0\n")

	steps := ParseSteps(f, 2.0, nil, logger.NewNop())

	require.Len(t, steps, 2)
	assert.InDelta(t, 0.75, steps[0].CRate, 1e-9)
	assert.InDelta(t, 1.5, steps[1].CRate, 1e-9)
}

func TestParseSteps_ZeroNominalCapacityDisablesCRate(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status,Current\n"+
		"1,charge,CC charge,finished,1.5\n")

	steps := ParseSteps(f, 0, nil, logger.NewNop())

	require.Len(t, steps, 1)
	assert.Equal(t, 0.0, steps[0].CRate)
}

func TestApplyStepBoundaries(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status\n"+
		"1,charge,CC charge,finished\n"+
		"2,discharge,CC discharge,finished\n")
	steps := ParseSteps(f, 0, nil, logger.NewNop())
	require.Len(t, steps, 2)

	detail := detailFromCSV(t, "Date_Time,Step_Index,Step_Time,Voltage,Current\n"+
		"2024-05-01 10:00:00,1,0,3.60,1.0\n"+
		"2024-05-01 10:00:05,1,5,3.72,1.0\n"+
		"2024-05-01 10:00:06,2,0,3.70,-1.0\n"+
		"2024-05-01 10:00:09,2,3,3.40,-1.0\n")

	ApplyStepBoundaries(steps, detail)

	require.NotNil(t, steps[0].StartTime)
	require.NotNil(t, steps[0].EndTime)
	assert.Equal(t, "2024-05-01 10:00:00", steps[0].StartTime.Format("2006-01-02 15:04:05"))
	assert.Equal(t, "2024-05-01 10:00:05", steps[0].EndTime.Format("2006-01-02 15:04:05"))
	assert.InDelta(t, 3.60, steps[0].StartVoltage, 1e-9)
	assert.InDelta(t, 3.72, steps[0].EndVoltage, 1e-9)

	assert.InDelta(t, 3.70, steps[1].StartVoltage, 1e-9)
	assert.InDelta(t, 3.40, steps[1].EndVoltage, 1e-9)
}

func TestApplyStepBoundaries_ByExecutionTimeNotRowOrder(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status\n"+
		"1,charge,CC charge,finished\n")
	steps := ParseSteps(f, 0, nil, logger.NewNop())
	require.Len(t, steps, 1)

	detail := detailFromCSV(t, "Date_Time,Step_Index,Step_Time,Voltage,Current\n"+
		"2024-05-01 10:00:05,1,5,3.72,1.0\n"+
		"2024-05-01 10:00:00,1,0,3.60,1.0\n")

	ApplyStepBoundaries(steps, detail)

	assert.InDelta(t, 3.60, steps[0].StartVoltage, 1e-9)
	assert.InDelta(t, 3.72, steps[0].EndVoltage, 1e-9)
}

func TestApplyStepBoundaries_KeepsStepFileEndVoltage(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status,Voltage\n"+
		"1,charge,CC charge,finished,4.2\n")
	steps := ParseSteps(f, 0, nil, logger.NewNop())
	require.Len(t, steps, 1)

	detail := detailFromCSV(t, "Date_Time,Step_Index,Step_Time,Voltage,Current\n"+
		"2024-05-01 10:00:00,1,0,3.60,1.0\n"+
		"2024-05-01 10:00:05,1,5,3.72,1.0\n")

	ApplyStepBoundaries(steps, detail)

	// The step file's end voltage wins over the last sample's.
	assert.InDelta(t, 4.2, steps[0].EndVoltage, 1e-9)
	assert.InDelta(t, 3.60, steps[0].StartVoltage, 1e-9)
}

func TestApplyStepBoundaries_NoDetailRowsLeavesStepUntouched(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status\n"+
		"7,rest,rest,finished\n")
	steps := ParseSteps(f, 0, nil, logger.NewNop())
	require.Len(t, steps, 1)

	detail := detailFromCSV(t, "Date_Time,Step_Index,Step_Time,Voltage,Current\n"+
		"2024-05-01 10:00:00,1,0,3.60,1.0\n")

	ApplyStepBoundaries(steps, detail)

	assert.Nil(t, steps[0].StartTime)
	assert.Nil(t, steps[0].EndTime)
	assert.Equal(t, 0.0, steps[0].StartVoltage)
}

func TestParseSteps_OptionalNumericColumns(t *testing.T) {
	f := stepFrameFromCSV(t, "Step_Index,Step_Type,Step_Name,Status,Voltage,Capacity,Energy\n"+
		"1,charge,CC charge,finished,4.2,2.0,7.4\n")

	steps := ParseSteps(f, 0, nil, logger.NewNop())

	require.Len(t, steps, 1)
	assert.Equal(t, 4.2, steps[0].EndVoltage)
	assert.Equal(t, 2.0, steps[0].Capacity)
	assert.Equal(t, 7.4, steps[0].Energy)
}
