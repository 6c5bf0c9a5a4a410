package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/inventory"
)

type fakeImporter struct {
	text   string
	result inventory.StockImportResult
	err    error
}

func (f *fakeImporter) ImportStockText(_ context.Context, text string) (inventory.StockImportResult, error) {
	f.text = text
	return f.result, f.err
}

type fakeWarmer struct {
	lots int
	err  error
}

func (f fakeWarmer) WarmReport(context.Context) (int, error) { return f.lots, f.err }

type recorder struct {
	runs []string
}

func (r *recorder) JobRun(task, status string) { r.runs = append(r.runs, task+"/"+status) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func importTask(t *testing.T, text string) *asynq.Task {
	t.Helper()
	task, err := NewStockImportTask(text)
	require.NoError(t, err)
	return task
}

func TestNewStockImportTask(t *testing.T) {
	task := importTask(t, "report")
	require.Equal(t, TaskStockImport, task.Type())
	var payload StockImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "report", payload.Text)
	require.False(t, payload.EnqueuedAt.IsZero())

	_, err := NewStockImportTask("")
	require.Error(t, err)
}

func TestStockImportJobSuccess(t *testing.T) {
	importer := &fakeImporter{result: inventory.StockImportResult{Entries: 2, Applied: []inventory.StockRecord{{LotNo: "1"}}}}
	rec := &recorder{}
	job := NewStockImportJob(importer, quietLogger(), rec)

	require.NoError(t, job.Handle(context.Background(), importTask(t, "line")))
	require.Equal(t, "line", importer.text)
	require.Equal(t, []string{TaskStockImport + "/ok"}, rec.runs)
}

func TestStockImportJobBadPayloadSkipsRetry(t *testing.T) {
	rec := &recorder{}
	job := NewStockImportJob(&fakeImporter{}, quietLogger(), rec)

	err := job.Handle(context.Background(), asynq.NewTask(TaskStockImport, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	blank, _ := json.Marshal(StockImportPayload{Text: "  "})
	err = job.Handle(context.Background(), asynq.NewTask(TaskStockImport, blank))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, []string{TaskStockImport + "/skipped", TaskStockImport + "/skipped"}, rec.runs)
}

func TestStockImportJobRetriesStoreFailures(t *testing.T) {
	rec := &recorder{}
	storeErr := &inventory.StoreError{Op: "import", Err: errors.New("connection reset")}
	job := NewStockImportJob(&fakeImporter{err: storeErr}, quietLogger(), rec)

	err := job.Handle(context.Background(), importTask(t, "line"))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, []string{TaskStockImport + "/error"}, rec.runs)

	job.Ledger = &fakeImporter{err: inventory.ErrNegativeStock}
	err = job.Handle(context.Background(), importTask(t, "line"))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReportWarmupJob(t *testing.T) {
	rec := &recorder{}
	job := NewReportWarmupJob(fakeWarmer{lots: 3}, quietLogger(), rec)
	require.NoError(t, job.Handle(context.Background(), NewStockReportWarmupTask()))

	job.Ledger = fakeWarmer{err: errors.New("boom")}
	require.Error(t, job.Handle(context.Background(), NewStockReportWarmupTask()))
	require.Equal(t, []string{TaskStockReportWarmup + "/ok", TaskStockReportWarmup + "/error"}, rec.runs)

	var unset *ReportWarmupJob
	require.Error(t, unset.Handle(context.Background(), nil))
}

func TestClientEnqueueStockImport(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	id, err := client.EnqueueStockImport(context.Background(), "report")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Equal(t, []string{id}, pending)

	_, err = client.EnqueueStockImport(context.Background(), "")
	require.Error(t, err)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestHandlerHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, status: http.StatusOK, pending: 4},
		{name: "queue not created yet", inspector: fakeInspector{err: asynq.ErrQueueNotFound}, status: http.StatusOK},
		{name: "redis down", inspector: fakeInspector{err: errors.New("dial tcp")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, quietLogger()).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			require.Equal(t, QueueDefault, body.Queue)
			require.Equal(t, tc.pending, body.Pending)
		})
	}
}

func TestNewWorkerSkipsIncompleteRegistrations(t *testing.T) {
	mr := miniredis.RunT(t)
	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    quietLogger(),
		Handlers:  []TaskHandler{{Type: TaskStockImport}, {Type: TaskStockReportWarmup, Handler: NewReportWarmupJob(fakeWarmer{}, nil, nil).Handle}},
		Cron:      []CronRegistration{{Spec: "", Task: NewStockReportWarmupTask()}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: NewStockReportWarmupTask()}},
	})
	require.Error(t, err)
}
