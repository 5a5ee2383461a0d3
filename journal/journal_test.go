package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordAndStages(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record("run-1", StageExperimentCreated))
	require.NoError(t, j.Record("run-1", StageStepsCommitted))
	require.NoError(t, j.Record("run-1", StageMeasurementsCommitted))

	records, err := j.Stages("run-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, StageExperimentCreated, records[0].Stage)
	assert.Equal(t, StageStepsCommitted, records[1].Stage)
	assert.Equal(t, StageMeasurementsCommitted, records[2].Stage)
	assert.False(t, records[0].At.IsZero())
}

func TestJournal_RunsAreIsolated(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record("run-a", StageExperimentCreated))
	require.NoError(t, j.Record("run-b", StageExperimentCreated))
	require.NoError(t, j.Record("run-b", StageStepsCommitted))

	records, err := j.Stages("run-a")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = j.Stages("run-b")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestJournal_UnknownRunIsEmpty(t *testing.T) {
	j := openTestJournal(t)

	records, err := j.Stages("nope")
	require.NoError(t, err)
	assert.Empty(t, records)
}
