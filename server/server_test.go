package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam831212/battery-etl/ingest"
	"github.com/sam831212/battery-etl/logger"
	"github.com/sam831212/battery-etl/repository"
	service_registry "github.com/sam831212/battery-etl/srvreg"
)

func newTestServer(t *testing.T) *WebServer {
	t.Helper()
	repo := repository.NewRepository()
	require.NoError(t, repo.OpenSQLite(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, repo.Migrate())

	nop := logger.NewNop()
	pipeline := ingest.NewPipeline(repo, nil, nop, 0, ingest.DefaultIntervalBounds)
	sr := service_registry.NewServiceRegistry(repo, pipeline, nop)
	sr.RegisterDefaultServices()

	ws, err := NewWebServer("0", nop, sr, repo)
	require.NoError(t, err)
	return ws
}

func TestHandleServiceAPI_EnvelopesResponse(t *testing.T) {
	ws := newTestServer(t)

	reqBody := `{"step_csv":"Step_Index,Step_Type,Step_Name,Status\n1,charge,CC charge,finished\n"}`
	httpReq := httptest.NewRequest("POST", "/ingestion/preview", strings.NewReader(reqBody))
	recorder := httptest.NewRecorder()

	ws.handleServiceAPI(recorder, httpReq)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var envelope struct {
		Body map[string]interface{} `json:"body"`
		Meta struct {
			RequestID string `json:"request_id"`
			Status    string `json:"status"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))

	assert.Equal(t, "ok", envelope.Meta.Status)
	assert.Len(t, envelope.Meta.RequestID, 32)
	steps, ok := envelope.Body["steps"].([]interface{})
	require.True(t, ok)
	assert.Len(t, steps, 1)
}

func TestHandleServiceAPI_UnknownRoute(t *testing.T) {
	ws := newTestServer(t)

	httpReq := httptest.NewRequest("DELETE", "/ingestion/preview", nil)
	recorder := httptest.NewRecorder()

	ws.handleServiceAPI(recorder, httpReq)

	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var envelope struct {
		Meta struct {
			Status string `json:"status"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "failed", envelope.Meta.Status)
}

func TestHandleRoot(t *testing.T) {
	ws := newTestServer(t)

	recorder := httptest.NewRecorder()
	ws.handleRoot(recorder, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Battery Test Ingestion Service")

	recorder = httptest.NewRecorder()
	ws.handleRoot(recorder, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)

	recorder = httptest.NewRecorder()
	ws.handleRoot(recorder, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "ok", statusLabel(200))
	assert.Equal(t, "ok", statusLabel(201))
	assert.Equal(t, "failed", statusLabel(404))
	assert.Equal(t, "failed", statusLabel(500))
}
