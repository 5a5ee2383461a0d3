package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sam831212/battery-etl/journal"
	"github.com/sam831212/battery-etl/logger"
	"github.com/sam831212/battery-etl/repository"
	"github.com/sam831212/battery-etl/repository/models"
)

// Request carries everything one ingestion run needs, passed explicitly
// rather than read from ambient state. SelectedStepNumbers is the subset of
// parsed steps the user chose; measurement rows for other steps are
// dropped silently.
type Request struct {
	StepContent         []byte
	DetailContent       []byte
	StepFileName        string
	DetailFileName      string
	SelectedStepNumbers []int
	NominalCapacity     float64
	IntervalSeconds     float64
	Experiment          repository.ExperimentMeta
}

// Result reports the outcome of one ingestion run, including exactly which
// stages committed. The pipeline commits in several sequential
// transactions, so after a failure Stages tells the caller what is durable
// and what needs compensation.
type Result struct {
	RunID           string       `json:"run_id"`
	ExperimentID    uint         `json:"experiment_id,omitempty"`
	Duplicate       bool         `json:"duplicate"`
	OverallValid    bool         `json:"overall_valid"`
	StepReport      *FileReport  `json:"step_report,omitempty"`
	DetailReport    *FileReport  `json:"detail_report,omitempty"`
	StepsRegistered int          `json:"steps_registered"`
	Saved           int          `json:"saved"`
	Errors          int          `json:"errors"`
	Stages          []string     `json:"stages"`
}

// Pipeline runs the full ingestion flow: dedup gate, normalization,
// advisory validation, step registration, optional downsampling,
// measurement batch insertion and the processed-file audit records.
type Pipeline struct {
	repo      *repository.Repository
	journal   *journal.Journal // optional
	logger    logger.Logger
	batchSize int
	bounds    IntervalBounds
}

// NewPipeline wires a pipeline. jrnl may be nil when no run journal is
// configured. A batchSize <= 0 falls back to DefaultBatchSize.
func NewPipeline(repo *repository.Repository, jrnl *journal.Journal, log logger.Logger, batchSize int, bounds IntervalBounds) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		repo:      repo,
		journal:   jrnl,
		logger:    log,
		batchSize: batchSize,
		bounds:    bounds,
	}
}

// Run executes one ingestion run. It returns a partially filled Result
// alongside the error when a stage fails, so the caller still learns which
// stages committed.
func (p *Pipeline) Run(req *Request) (*Result, *repository.RepositoryError) {
	result := &Result{RunID: uuid.NewString()}
	log := p.logger.With("run_id", result.RunID)

	// Structural errors must abort before any write, so the interval is
	// checked up front even though filtering happens much later.
	if req.IntervalSeconds < 0 {
		return result, &repository.RepositoryError{
			Code:    repository.ErrCodeStructural,
			Message: "Invalid downsampling interval",
			Detail:  fmt.Sprintf("interval must be non-negative, got %v", req.IntervalSeconds),
		}
	}

	// Dedup gate: fingerprints over raw bytes.
	stepHash := Fingerprint(req.StepContent)
	detailHash := Fingerprint(req.DetailContent)
	if p.repo.IsFileProcessed(stepHash) || p.repo.IsFileProcessed(detailHash) {
		result.Duplicate = true
		log.Info("Rejected duplicate file pair", "step_hash", stepHash, "detail_hash", detailHash)
		return result, nil
	}

	stepFrame, err := ReadCSV(bytes.NewReader(req.StepContent))
	if err != nil {
		return result, &repository.RepositoryError{
			Code:    repository.ErrCodeStructural,
			Message: "Failed to parse step file",
			Detail:  err.Error(),
		}
	}
	detailFrame, err := ReadCSV(bytes.NewReader(req.DetailContent))
	if err != nil {
		return result, &repository.RepositoryError{
			Code:    repository.ErrCodeStructural,
			Message: "Failed to parse detail file",
			Detail:  err.Error(),
		}
	}

	NormalizeColumns(stepFrame)
	NormalizeColumns(detailFrame)

	overall, stepReport, detailReport := Validate(stepFrame, detailFrame)
	result.OverallValid = overall
	result.StepReport = stepReport
	result.DetailReport = detailReport
	if !overall {
		log.Info("Validation failed", "step_rows", stepReport.RowCount, "detail_rows", detailReport.RowCount)
		return result, &repository.RepositoryError{
			Code:    repository.ErrCodeStructural,
			Message: "Validation failed",
			Detail:  "input files did not pass required-column and row-count checks",
		}
	}

	experiment, repoErr := p.repo.CreateExperiment(req.Experiment)
	if repoErr != nil {
		return result, repoErr
	}
	result.ExperimentID = experiment.ID
	p.recordStage(result, journal.StageExperimentCreated, log)

	steps := ParseSteps(stepFrame, req.NominalCapacity, req.SelectedStepNumbers, log)
	ApplyStepBoundaries(steps, detailFrame)
	registered, mapping, repoErr := p.repo.RegisterSteps(nil, experiment.ID, steps, req.SelectedStepNumbers)
	if repoErr != nil {
		return result, repoErr
	}
	result.StepsRegistered = len(registered)
	p.recordStage(result, journal.StageStepsCommitted, log)

	filtered, err := FilterInterval(detailFrame, req.IntervalSeconds, p.bounds)
	if err != nil {
		return result, &repository.RepositoryError{
			Code:    repository.ErrCodeStructural,
			Message: "Invalid downsampling interval",
			Detail:  err.Error(),
		}
	}

	stats, repoErr := IngestMeasurements(p.repo, filtered, mapping, p.batchSize, log)
	result.Saved = stats.Saved
	result.Errors = stats.Errors
	if repoErr != nil {
		return result, repoErr
	}
	p.recordStage(result, journal.StageMeasurementsCommitted, log)

	if repoErr := p.finalize(req, result, experiment.ID, stepHash, detailHash, stepFrame, detailFrame, detailReport); repoErr != nil {
		return result, repoErr
	}
	p.recordStage(result, journal.StageFilesRecorded, log)

	log.Info("Ingestion run completed",
		"experiment_id", experiment.ID,
		"steps", result.StepsRegistered,
		"saved", stats.Saved,
		"errors", stats.Errors,
	)
	return result, nil
}

// finalize stores the validation report and end date on the experiment,
// then writes the ProcessedFile ledger rows. The hashes become the dedup
// authority only now, after everything else committed.
func (p *Pipeline) finalize(req *Request, result *Result, experimentID uint, stepHash, detailHash string, stepFrame, detailFrame *Frame, detailReport *FileReport) *repository.RepositoryError {
	var endDate *time.Time
	if detailReport.TimeRangeValid {
		t := detailReport.TimeMax
		endDate = &t
	}

	reportJSON, err := json.Marshal(map[string]*FileReport{
		"step":   result.StepReport,
		"detail": result.DetailReport,
	})
	if err != nil {
		reportJSON = nil
	}
	if repoErr := p.repo.FinalizeExperiment(experimentID, endDate, string(reportJSON)); repoErr != nil {
		return repoErr
	}

	if repoErr := p.repo.RecordProcessedFile(stepHash, models.FileTypeStep, req.StepFileName, stepFrame.NumRows(), experimentID); repoErr != nil {
		return repoErr
	}
	if repoErr := p.repo.RecordProcessedFile(detailHash, models.FileTypeDetail, req.DetailFileName, detailFrame.NumRows(), experimentID); repoErr != nil {
		return repoErr
	}
	return nil
}

func (p *Pipeline) recordStage(result *Result, stage string, log logger.Logger) {
	result.Stages = append(result.Stages, stage)
	if p.journal == nil {
		return
	}
	if err := p.journal.Record(result.RunID, stage); err != nil {
		// The journal is advisory; a write failure must not fail the run.
		log.Error("Failed to journal stage", "stage", stage, "err", err.Error())
	}
}
