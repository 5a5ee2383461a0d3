package srvreg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sam831212/battery-etl/ingest"
	"github.com/sam831212/battery-etl/repository"
)

var defaultHeaders = map[string]string{"Content-Type": "application/json"}

type filePairBody struct {
	StepCSV   string `json:"step_csv"`
	DetailCSV string `json:"detail_csv"`
}

// ValidateFilesHandler computes the advisory validation report for a file
// pair without writing anything.
func (sr *ServiceRegistry) ValidateFilesHandler(req *Request) (*Response, error) {
	var body filePairBody
	err := json.Unmarshal([]byte(req.Body), &body)
	if err != nil {
		sr.logger.Info("Failed to parse body", "error", err.Error())
		return &Response{
			StatusCode: http.StatusUnprocessableEntity,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Invalid body format: %s"}`, err.Error()),
		}, fmt.Errorf("invalid body format")
	}
	if body.StepCSV == "" || body.DetailCSV == "" {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"step_csv and detail_csv are required"}`,
		}, fmt.Errorf("missing file content")
	}

	stepFrame, err := ingest.ReadCSV(bytes.NewReader([]byte(body.StepCSV)))
	if err != nil {
		return &Response{
			StatusCode: http.StatusUnprocessableEntity,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Failed to parse step file: %s"}`, err.Error()),
		}, fmt.Errorf("failed to parse step file")
	}
	detailFrame, err := ingest.ReadCSV(bytes.NewReader([]byte(body.DetailCSV)))
	if err != nil {
		return &Response{
			StatusCode: http.StatusUnprocessableEntity,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Failed to parse detail file: %s"}`, err.Error()),
		}, fmt.Errorf("failed to parse detail file")
	}

	ingest.NormalizeColumns(stepFrame)
	ingest.NormalizeColumns(detailFrame)
	overall, stepReport, detailReport := ingest.Validate(stepFrame, detailFrame)

	responseBody, err := json.Marshal(map[string]interface{}{
		"overall_valid": overall,
		"step_report":   stepReport,
		"detail_report": detailReport,
	})
	if err != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Failed to encode report"}`,
		}, nil
	}

	return &Response{
		StatusCode: http.StatusOK,
		Headers:    defaultHeaders,
		Body:       string(responseBody),
	}, nil
}

type previewStepsBody struct {
	StepCSV string `json:"step_csv"`
}

// PreviewStepsHandler parses the step file and returns the step list so the
// user can pick the subset to ingest.
func (sr *ServiceRegistry) PreviewStepsHandler(req *Request) (*Response, error) {
	var body previewStepsBody
	err := json.Unmarshal([]byte(req.Body), &body)
	if err != nil {
		sr.logger.Info("Failed to parse body", "error", err.Error())
		return &Response{
			StatusCode: http.StatusUnprocessableEntity,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Invalid body format: %s"}`, err.Error()),
		}, fmt.Errorf("invalid body format")
	}
	if body.StepCSV == "" {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"step_csv is required"}`,
		}, fmt.Errorf("missing file content")
	}

	previews, err := ingest.PreviewSteps([]byte(body.StepCSV))
	if err != nil {
		return &Response{
			StatusCode: http.StatusUnprocessableEntity,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"%s"}`, err.Error()),
		}, err
	}

	responseBody, err := json.Marshal(map[string]interface{}{"steps": previews})
	if err != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Failed to encode steps"}`,
		}, nil
	}

	return &Response{
		StatusCode: http.StatusOK,
		Headers:    defaultHeaders,
		Body:       string(responseBody),
	}, nil
}

type experimentBody struct {
	Name         string `json:"name"`
	Operator     string `json:"operator"`
	StartDate    string `json:"start_date,omitempty"` // RFC3339
	CellName     string `json:"cell_name,omitempty"`
	Chemistry    string `json:"chemistry,omitempty"`
	MachineName  string `json:"machine_name,omitempty"`
	MachineModel string `json:"machine_model,omitempty"`
}

type commitIngestionBody struct {
	StepCSV             string         `json:"step_csv"`
	DetailCSV           string         `json:"detail_csv"`
	StepFileName        string         `json:"step_file_name,omitempty"`
	DetailFileName      string         `json:"detail_file_name,omitempty"`
	SelectedStepNumbers []int          `json:"selected_step_numbers"`
	NominalCapacity     float64        `json:"nominal_capacity"`
	IntervalSeconds     float64        `json:"interval_seconds"`
	Experiment          experimentBody `json:"experiment"`
}

// CommitIngestionHandler runs the full ingestion pipeline for one file
// pair and the user's step selection.
func (sr *ServiceRegistry) CommitIngestionHandler(req *Request) (*Response, error) {
	var body commitIngestionBody
	err := json.Unmarshal([]byte(req.Body), &body)
	if err != nil {
		sr.logger.Info("Failed to parse body", "error", err.Error())
		return &Response{
			StatusCode: http.StatusUnprocessableEntity,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Invalid body format: %s"}`, err.Error()),
		}, fmt.Errorf("invalid body format")
	}
	if body.StepCSV == "" || body.DetailCSV == "" {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"step_csv and detail_csv are required"}`,
		}, fmt.Errorf("missing file content")
	}
	if body.Experiment.Name == "" {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"experiment name is required"}`,
		}, fmt.Errorf("experiment name is required")
	}
	if len(body.SelectedStepNumbers) == 0 {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"selected_step_numbers must not be empty"}`,
		}, fmt.Errorf("empty step selection")
	}

	meta := repository.ExperimentMeta{
		Name:            body.Experiment.Name,
		Operator:        body.Experiment.Operator,
		NominalCapacity: body.NominalCapacity,
		CellName:        body.Experiment.CellName,
		Chemistry:       body.Experiment.Chemistry,
		MachineName:     body.Experiment.MachineName,
		MachineModel:    body.Experiment.MachineModel,
	}
	if body.Experiment.StartDate != "" {
		startDate, err := time.Parse(time.RFC3339, body.Experiment.StartDate)
		if err != nil {
			return &Response{
				StatusCode: http.StatusBadRequest,
				Headers:    defaultHeaders,
				Body:       fmt.Sprintf(`{"error":"invalid start_date: %s"}`, err.Error()),
			}, fmt.Errorf("invalid start_date")
		}
		meta.StartDate = &startDate
	}

	result, repoErr := sr.pipeline.Run(&ingest.Request{
		StepContent:         []byte(body.StepCSV),
		DetailContent:       []byte(body.DetailCSV),
		StepFileName:        body.StepFileName,
		DetailFileName:      body.DetailFileName,
		SelectedStepNumbers: body.SelectedStepNumbers,
		NominalCapacity:     body.NominalCapacity,
		IntervalSeconds:     body.IntervalSeconds,
		Experiment:          meta,
	})

	if result != nil && result.Duplicate {
		return &Response{
			StatusCode: http.StatusConflict,
			Headers:    defaultHeaders,
			Body:       `{"error":"File pair was already ingested"}`,
		}, fmt.Errorf("duplicate file pair")
	}

	resultJSON, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Failed to encode result"}`,
		}, nil
	}

	if repoErr != nil {
		switch repoErr.Code {
		case repository.ErrCodeStructural:
			return &Response{
				StatusCode: http.StatusUnprocessableEntity,
				Headers:    defaultHeaders,
				Body:       fmt.Sprintf(`{"error":"%s","detail":"%s","result":%s}`, repoErr.Message, repoErr.Detail, resultJSON),
			}, fmt.Errorf("structural error: %s", repoErr.Message)
		case repository.PgErrUniqueViolation:
			return &Response{
				StatusCode: http.StatusConflict,
				Headers:    defaultHeaders,
				Body:       fmt.Sprintf(`{"error":"%s"}`, repoErr.Detail),
			}, fmt.Errorf("unique violation: %s", repoErr.Message)
		case repository.PgErrForeignKeyViolation:
			return &Response{
				StatusCode: http.StatusBadRequest,
				Headers:    defaultHeaders,
				Body:       fmt.Sprintf(`{"error":"%s"}`, repoErr.Detail),
			}, fmt.Errorf("foreign key violation: %s", repoErr.Message)
		default:
			sr.logger.Error("Ingestion run failed", "code", repoErr.Code, "detail", repoErr.Detail)
			return &Response{
				StatusCode: http.StatusInternalServerError,
				Headers:    defaultHeaders,
				Body:       fmt.Sprintf(`{"error":"Internal server error","result":%s}`, resultJSON),
			}, nil
		}
	}

	return &Response{
		StatusCode: http.StatusCreated,
		Headers:    defaultHeaders,
		Body:       string(resultJSON),
	}, nil
}

// GetExperimentHandler returns one experiment with its steps.
func (sr *ServiceRegistry) GetExperimentHandler(req *Request) (*Response, error) {
	pathParts := strings.Split(req.Path, "/")
	if len(pathParts) != 3 {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"Invalid path format"}`,
		}, fmt.Errorf("invalid path format")
	}
	experimentID, err := strconv.ParseUint(pathParts[2], 10, 64)
	if err != nil {
		return &Response{
			StatusCode: http.StatusBadRequest,
			Headers:    defaultHeaders,
			Body:       `{"error":"Experiment id must be numeric"}`,
		}, fmt.Errorf("invalid experiment id")
	}

	experiment, dbErr := sr.repository.GetExperiment(uint(experimentID))
	if dbErr != nil {
		switch dbErr.Code {
		case repository.ErrCodeEntityNotFound:
			return &Response{
				StatusCode: http.StatusNotFound,
				Headers:    defaultHeaders,
				Body:       fmt.Sprintf(`{"error":"%s"}`, dbErr.Message),
			}, fmt.Errorf("entity not found: %s", dbErr.Message)
		default:
			return &Response{
				StatusCode: http.StatusInternalServerError,
				Headers:    defaultHeaders,
				Body:       `{"error":"Internal server error"}`,
			}, nil
		}
	}

	// Format the steps for the response
	var steps []map[string]interface{}
	for _, step := range experiment.Steps {
		steps = append(steps, map[string]interface{}{
			"step_id":     step.ID,
			"step_number": step.StepNumber,
			"step_type":   step.StepType,
			"c_rate":      step.CRate,
			"capacity":    step.Capacity,
			"energy":      step.Energy,
		})
	}

	responseBody, err := json.Marshal(map[string]interface{}{
		"experiment_id":    experiment.ID,
		"name":             experiment.Name,
		"operator":         experiment.Operator,
		"nominal_capacity": experiment.NominalCapacity,
		"start_date":       experiment.StartDate,
		"end_date":         experiment.EndDate,
		"steps":            steps,
	})
	if err != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Failed to encode experiment"}`,
		}, nil
	}

	return &Response{
		StatusCode: http.StatusOK,
		Headers:    defaultHeaders,
		Body:       string(responseBody),
	}, nil
}
