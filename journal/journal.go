// Package journal records which stages of an ingestion run committed.
//
// The pipeline commits in several sequential transactions (experiment,
// steps, measurement batches, file records) rather than one atomic unit.
// The journal is the durable record of how far a run got, so an operator
// can resume or compensate after a crash mid-run.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Ingestion run stages, in pipeline order.
const (
	StageExperimentCreated     = "experiment_created"
	StageStepsCommitted        = "steps_committed"
	StageMeasurementsCommitted = "measurements_committed"
	StageFilesRecorded         = "files_recorded"
)

// StageRecord is one journaled stage completion.
type StageRecord struct {
	Stage string    `json:"stage"`
	At    time.Time `json:"at"`
}

type Journal struct {
	db *badger.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record journals a completed stage for a run. Keys embed a nanosecond
// timestamp so badger's lexicographic iteration returns stages in order.
func (j *Journal) Record(runID, stage string) error {
	record := StageRecord{Stage: stage, At: time.Now().UTC()}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal stage record: %w", err)
	}
	key := []byte(fmt.Sprintf("run/%s/%020d", runID, record.At.UnixNano()))

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to journal stage %s: %w", stage, err)
	}
	return nil
}

// Stages returns the journaled stages for a run, oldest first.
func (j *Journal) Stages(runID string) ([]StageRecord, error) {
	prefix := []byte(fmt.Sprintf("run/%s/", runID))

	var records []StageRecord
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record StageRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal for run %s: %w", runID, err)
	}
	return records, nil
}
