package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeColumns_EnglishVocabulary(t *testing.T) {
	csv := "Step_Index,Step_Type,Date_Time,Voltage,Current,Aux_Temperature,Capacity,Energy\n" +
		"1,charge,2024-05-01 10:00:00,3.6,1.0,25.0,0.5,1.8\n"
	f, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	NormalizeColumns(f)

	for _, col := range []string{ColStepNumber, ColStepType, ColDateTime, ColVoltage, ColCurrent, ColTemperature, ColCapacity, ColEnergy} {
		assert.True(t, f.HasColumn(col), "expected canonical column %q", col)
	}
	assert.False(t, f.HasColumn("Step_Index"))
}

func TestNormalizeColumns_BilingualVocabulary(t *testing.T) {
	csv := "工步号,工步类型,工步执行时间(秒),电压(V),电流(A),辅助温度(℃),充电量(Ah),能量(Wh)\n" +
		"1,CC充电,0,3.6,1.0,25.0,0.5,1.8\n"
	f, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	NormalizeColumns(f)

	for _, col := range []string{ColStepNumber, ColStepType, ColExecutionTime, ColVoltage, ColCurrent, ColTemperature, ColCapacity, ColEnergy} {
		assert.True(t, f.HasColumn(col), "expected canonical column %q", col)
	}
}

func TestNormalizeColumns_NeverOverwritesCanonical(t *testing.T) {
	// Both the canonical name and an alternate are present; the canonical
	// column keeps its values.
	csv := "voltage,Voltage\n1.111,9.999\n"
	f, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	NormalizeColumns(f)

	v, ok := f.Value(0, ColVoltage)
	require.True(t, ok)
	assert.Equal(t, "1.111", v)
	// The alternate passes through unchanged.
	assert.True(t, f.HasColumn("Voltage"))
}

func TestNormalizeColumns_UnknownColumnsPassThrough(t *testing.T) {
	csv := "Step_Index,Mystery_Column\n1,x\n"
	f, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	NormalizeColumns(f)

	assert.True(t, f.HasColumn("Mystery_Column"))
	assert.True(t, f.HasColumn(ColStepNumber))
}
