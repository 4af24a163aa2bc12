package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/database"
	"github.com/zero-day-ai/conductor/internal/delegation"
	"github.com/zero-day-ai/conductor/internal/engine"
	"github.com/zero-day-ai/conductor/internal/evidence"
	"github.com/zero-day-ai/conductor/internal/execunit"
	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/llm/providers"
	"github.com/zero-day-ai/conductor/internal/lock"
	"github.com/zero-day-ai/conductor/internal/memory"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/types"
)

const (
	testClassification = `{"category":"advice","required_action":"answer","complexity":"low"}`
	testTaskPlan       = `{"goals":[{"id":"goal-1","title":"Change","steps":[
		{"id":"step-1","type":"execute","instructions":"edit","targets":["main.go"]}]}]}`
)

type stubLauncher struct {
	mu        sync.Mutex
	submitted int
}

type stubHandle struct{ result *execunit.Result }

func (h *stubHandle) Status() <-chan execunit.StatusEvent {
	ch := make(chan execunit.StatusEvent)
	close(ch)
	return ch
}

func (h *stubHandle) Result(ctx context.Context) (*execunit.Result, error) {
	return h.result, nil
}

func (l *stubLauncher) Submit(ctx context.Context, in execunit.Instruction) (execunit.Handle, error) {
	l.mu.Lock()
	l.submitted++
	l.mu.Unlock()

	result := &execunit.Result{Success: true, Summary: "done"}
	if in.UnitClass != "vcs" {
		result.ChangedArtifacts = in.Targets
	}
	return &stubHandle{result: result}, nil
}

type recordingReporter struct {
	terminals chan engine.StatusReport
}

func (r *recordingReporter) ReportProgress(context.Context, engine.StatusReport) {}
func (r *recordingReporter) ReportTerminal(_ context.Context, report engine.StatusReport) {
	r.terminals <- report
}

func (r *recordingReporter) wait(t *testing.T) engine.StatusReport {
	t.Helper()
	select {
	case report := <-r.terminals:
		return report
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a terminal report")
		return engine.StatusReport{}
	}
}

type serverFixture struct {
	server   *Server
	reporter *recordingReporter
}

func newTestServer(t *testing.T, script ...providers.MockResponse) *serverFixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "conductor.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { _ = db.Close() })

	registry := llm.NewRegistry()
	registry.Register(providers.NewMockProvider(script...))
	gateway := llm.NewGateway(registry, "mock", "")

	pool := execunit.NewPool(&stubLauncher{}, 2, time.Second, nil)
	store := evidence.NewWorkspaceStore(t.TempDir())
	contexts := memory.NewContextStore(database.NewContextDAO(db), time.Hour, nil)
	procedural := memory.NewProceduralMemory(database.NewPatternDAO(db), nil)
	agents := delegation.NewRegistry(delegation.NewGenericAgent(gateway, 12000))
	controller := lock.NewController(
		lock.NewStoreLocker(database.NewLockDAO(db), 30*time.Second),
		"test-holder", 10*time.Second)

	reporter := &recordingReporter{terminals: make(chan engine.StatusReport, 16)}
	eng := engine.New(engine.Deps{
		Classifier:  intake.NewClassifier(gateway, nil),
		Collector:   evidence.NewCollector(store, store),
		Planner:     planner.NewPlanner(gateway, procedural, nil),
		Dispatcher:  engine.NewDispatcher(gateway, pool, nil, nil),
		Evaluator:   engine.NewEvaluator(nil, 50, nil),
		Delegator:   delegation.NewExecutor(agents),
		Synthesizer: delegation.NewSynthesizer(gateway),
		Checkpoints: engine.NewCheckpointer(database.NewCheckpointDAO(db)),
		Locks:       controller,
		Gateway:     gateway,
	}, config.PolicyConfig{MaxChangedArtifacts: 50},
		engine.WithReporter(reporter),
		engine.WithContextStore(contexts),
	)

	server := NewServer(eng, config.DaemonConfig{
		ListenAddress: "localhost:0",
		PollInterval:  time.Minute,
	}, nil)
	return &serverFixture{server: server, reporter: reporter}
}

func (f *serverFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestServer_StartAndPollWorkflow(t *testing.T) {
	f := newTestServer(t,
		providers.MockResponse{Content: testClassification},
		providers.MockResponse{Content: "the answer"},
	)

	rec := f.request(t, http.MethodPost, "/v1/workflows", `{"text":"what is the plan?"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ThreadID)

	f.reporter.wait(t)

	rec = f.request(t, http.MethodGet, "/v1/workflows/"+started.ThreadID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report engine.StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, types.WorkflowStatusDone, report.Status)
	assert.Equal(t, "the answer", report.Summary)
}

func TestServer_StartRejectsEmptyBody(t *testing.T) {
	f := newTestServer(t)

	rec := f.request(t, http.MethodPost, "/v1/workflows", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_StatusUnknownThreadIs404(t *testing.T) {
	f := newTestServer(t)

	rec := f.request(t, http.MethodGet, "/v1/workflows/"+types.NewID().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ApprovalRoundTrip(t *testing.T) {
	f := newTestServer(t,
		providers.MockResponse{Content: `{"category":"single-task","required_action":"edit","complexity":"medium"}`},
		providers.MockResponse{Content: testTaskPlan},
	)

	rec := f.request(t, http.MethodPost, "/v1/workflows", `{"text":"edit main.go"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	report := f.reporter.wait(t)
	require.Equal(t, types.WorkflowStatusInterrupted, report.Status)
	require.NotNil(t, report.Interrupt)
	assert.Equal(t, engine.ApprovalActionCommit, report.Interrupt.Action)

	rec = f.request(t, http.MethodPost,
		"/v1/workflows/"+started.ThreadID.String()+"/approval", `{"approved":false,"reason":"hold"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	report = f.reporter.wait(t)
	assert.Equal(t, types.WorkflowStatusDone, report.Status)

	// A second approval has nothing to answer.
	rec = f.request(t, http.MethodPost,
		"/v1/workflows/"+started.ThreadID.String()+"/approval", `{"approved":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_CancelInterrupted(t *testing.T) {
	f := newTestServer(t,
		providers.MockResponse{Content: `{"category":"single-task","required_action":"edit","complexity":"medium"}`},
		providers.MockResponse{Content: testTaskPlan},
	)

	rec := f.request(t, http.MethodPost, "/v1/workflows", `{"text":"edit main.go"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	report := f.reporter.wait(t)
	require.Equal(t, types.WorkflowStatusInterrupted, report.Status)

	rec = f.request(t, http.MethodDelete, "/v1/workflows/"+started.ThreadID.String(), "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	report = f.reporter.wait(t)
	assert.Equal(t, types.WorkflowStatusCancelled, report.Status)
}

func TestServer_Healthz(t *testing.T) {
	f := newTestServer(t)

	rec := f.request(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Busy)
}

func TestCallbackReporter_DeliversEvents(t *testing.T) {
	received := make(chan engine.StatusReport, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var report engine.StatusReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		received <- report
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter := NewCallbackReporter(srv.URL, nil)
	defer reporter.Close()

	sent := engine.StatusReport{
		ThreadID: types.NewID(),
		Status:   types.WorkflowStatusDone,
		Summary:  "finished",
	}
	reporter.ReportTerminal(context.Background(), sent)

	select {
	case got := <-received:
		assert.Equal(t, sent.ThreadID, got.ThreadID)
		assert.Equal(t, sent.Status, got.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not delivered")
	}
}
