package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"vision-backend/internal/database"
	"vision-backend/internal/messaging"
	"vision-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) (*httptest.Server, *gorm.DB, *messaging.InMemoryQueue) {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	r := chi.NewRouter()
	NewTrainerService(db, queue).AddRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return server, db, queue
}

func postRun(t *testing.T, server *httptest.Server, retrain bool) *http.Response {
	t.Helper()
	body, err := json.Marshal(api.RetrainRequest{Retrain: retrain})
	require.NoError(t, err)

	res, err := http.Post(server.URL+"/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return res
}

func TestSubmitRun_QueuesTask(t *testing.T) {
	server, db, queue := setupTestService(t)

	res := postRun(t, server, true)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var submitted api.RetrainResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&submitted))

	run, err := database.GetTrainingRun(context.Background(), db, submitted.RunId)
	require.NoError(t, err)
	assert.Equal(t, database.RunQueued, run.Status)
	assert.True(t, run.Retrain)

	task := <-queue.Tasks()
	var payload messaging.RetrainTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, submitted.RunId, payload.RunId)
}

func TestSubmitRun_RejectsConcurrentRuns(t *testing.T) {
	server, _, _ := setupTestService(t)

	first := postRun(t, server, false)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postRun(t, server, false)
	second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestGetRun(t *testing.T) {
	server, db, _ := setupTestService(t)

	run, err := database.CreateTrainingRun(context.Background(), db, false)
	require.NoError(t, err)
	require.NoError(t, database.RecordRunFailure(context.Background(), db, run.Id,
		database.RunFailed, "ClientError: S3 object does not exist"))

	res, err := http.Get(server.URL + "/runs/" + run.Id.String())
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got api.TrainingRun
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, run.Id, got.Id)
	assert.Equal(t, database.RunFailed, got.Status)
	assert.Equal(t, "ClientError: S3 object does not exist", got.FailureReason)
	require.NotNil(t, got.CompletionTime)
}

func TestGetRun_NotFound(t *testing.T) {
	server, _, _ := setupTestService(t)

	res, err := http.Get(server.URL + "/runs/00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestListRuns_FiltersByStatus(t *testing.T) {
	server, db, _ := setupTestService(t)
	ctx := context.Background()

	completed, err := database.CreateTrainingRun(ctx, db, false)
	require.NoError(t, err)
	require.NoError(t, database.RecordRunSuccess(ctx, db, completed.Id, "s3://bucket/output/model.tar.gz"))

	_, err = database.CreateTrainingRun(ctx, db, true)
	require.NoError(t, err)

	res, err := http.Get(server.URL + "/runs?status=" + database.RunCompleted)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var list api.ListRunsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, completed.Id, list.Runs[0].Id)
	assert.Equal(t, "s3://bucket/output/model.tar.gz", list.Runs[0].ArtifactPath)

	res, err = http.Get(server.URL + "/runs")
	require.NoError(t, err)
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Len(t, list.Runs, 2)
}
