package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/simplex/internal/config"
	"github.com/copyleftdev/simplex/internal/logging"
	"github.com/copyleftdev/simplex/internal/metrics"
	"github.com/copyleftdev/simplex/internal/optimization"
	"github.com/copyleftdev/simplex/internal/optimization/neldermead"
	"github.com/copyleftdev/simplex/internal/store"
)

// testConfig creates a test configuration with default values
func testConfig() *config.Config {
	cfg := &config.Config{Environment: "test"}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ShutdownTimeout = 5 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	cfg.Store.Type = "memory"

	cfg.Optimization.WorkerCount = 2
	cfg.Optimization.MaxIterationsLimit = 10000
	cfg.Optimization.MaxIterations = 1000
	cfg.Optimization.VarTol = 1e-12
	cfg.Optimization.Step = 0.1
	cfg.Optimization.Reflection = 1
	cfg.Optimization.Expansion = 2
	cfg.Optimization.Contraction = 0.5
	cfg.Optimization.Shrink = 0.5
	cfg.Optimization.ShrinkMode = "mirror"

	return cfg
}

type testEnv struct {
	srv     *Server
	router  chi.Router
	runs    store.Store
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	runs := store.NewMemoryStore()
	require.NoError(t, runs.Init(context.Background()))
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	srv := NewServer(cfg, logging.New(logging.DebugLevel, io.Discard), runs, m)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	t.Cleanup(func() { _ = srv.Close() })

	return &testEnv{srv: srv, router: r, runs: runs, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func (e *testEnv) start(t *testing.T, req map[string]interface{}) JobStatus {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/optimize", req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var st JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.NotEmpty(t, st.ID)
	return st
}

func (e *testEnv) status(t *testing.T, id string) JobStatus {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/v1/status/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func (e *testEnv) waitFor(t *testing.T, id, status string) JobStatus {
	t.Helper()
	var st JobStatus
	require.Eventually(t, func() bool {
		st = e.status(t, id)
		return st.Status == status
	}, 10*time.Second, 5*time.Millisecond)
	return st
}

func (e *testEnv) waitPersisted(t *testing.T, id string) store.Run {
	t.Helper()
	var run store.Run
	require.Eventually(t, func() bool {
		var ok bool
		var err error
		run, ok, err = e.runs.GetRun(context.Background(), id)
		return err == nil && ok
	}, 10*time.Second, 5*time.Millisecond)
	return run
}

func TestRegisterRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"GET", "/api/v1/simplices/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"GET", "/api/v1/objectives", true},
		{"GET", "/api/v1/runs", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // registered by cmd/server
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, nil)
			// Handlers answer unknown ids with a JSON body; the router's
			// own 404 is plain text.
			routed := rec.Header().Get("Content-Type") == "application/json"
			assert.Equal(t, tt.shouldExist, routed, rec.Body.String())
		})
	}
}

func TestOptimizeLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	queued := env.start(t, map[string]interface{}{
		"objective":      "sphere",
		"start":          []float64{1, 2, 3},
		"step":           1,
		"max_iterations": 5000,
		"var_tol":        1e-20,
		"log_simplices":  true,
	})
	assert.Equal(t, "sphere", queued.Objective)
	assert.Contains(t, []string{StatusPending, StatusRunning, StatusCompleted}, queued.Status)

	st := env.waitFor(t, queued.ID, StatusCompleted)
	require.NotNil(t, st.Result)
	assert.Equal(t, "variance_convergence", st.Result.Status)
	assert.Equal(t, 1.0, st.Progress)
	require.Len(t, st.Result.X, 3)
	for _, x := range st.Result.X {
		assert.InDelta(t, 0, x, 1e-6)
	}
	require.NotNil(t, st.Best)
	assert.Equal(t, st.Result.X, st.Best.Parameters)
	steps := st.Result.Steps
	assert.Equal(t, st.Result.Iterations, steps.Reflections+steps.Expansions+steps.Contractions+steps.Shrinks)

	// One snapshot per ordering: every step plus the converged one.
	rec := env.do(t, http.MethodGet, "/api/v1/simplices/"+queued.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var log struct {
		ID        string        `json:"id"`
		Simplices [][][]float64 `json:"simplices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &log))
	require.Len(t, log.Simplices, st.Result.Iterations+1)
	assert.Equal(t, [][]float64{{1, 2, 3}, {2, 2, 3}, {1, 3, 3}, {1, 2, 4}}, log.Simplices[0])

	run := env.waitPersisted(t, queued.ID)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, st.Result.Iterations, run.Iterations)
	assert.Equal(t, st.Result.Evaluations, run.Evaluations)
	require.NotNil(t, run.F)
	assert.InDelta(t, 0, *run.F, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Runs.WithLabelValues("sphere", "variance_convergence")))
	assert.Equal(t, float64(st.Result.Evaluations), testutil.ToFloat64(env.metrics.Evaluations.WithLabelValues("sphere")))
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.ActiveJobs))

	rec = env.do(t, http.MethodGet, "/api/v1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, queued.ID, runs[0].ID)
}

func TestOptimizeDefaults(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Optimization.MaxIterationsLimit = 7
		cfg.Optimization.VarTol = 0
	})

	tests := []struct {
		name       string
		req        map[string]interface{}
		iterations int
		status     string
	}{
		{
			name:       "unbounded request is clamped",
			req:        map[string]interface{}{"objective": "rosenbrock", "max_iterations": -1},
			iterations: 7,
			status:     "iteration_limit",
		},
		{
			name:       "oversized request is clamped",
			req:        map[string]interface{}{"objective": "rosenbrock", "max_iterations": 1000000, "shrink": "toward"},
			iterations: 7,
			status:     "iteration_limit",
		},
		{
			name:       "explicit simplex",
			req:        map[string]interface{}{"objective": "booth", "initial_simplex": [][]float64{{0, 0}, {1, 0}, {0, 1}}, "max_iterations": 3},
			iterations: 3,
			status:     "iteration_limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := env.start(t, tt.req)
			st = env.waitFor(t, st.ID, StatusCompleted)
			require.NotNil(t, st.Result)
			assert.Equal(t, tt.iterations, st.Result.Iterations)
			assert.Equal(t, tt.status, st.Result.Status)
		})
	}
}

func TestResolveCoefficients(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Optimization.Reflection = 1.5
		cfg.Optimization.Expansion = 3
		cfg.Optimization.Contraction = 0.4
		cfg.Optimization.Shrink = 0.6
	})

	tests := []struct {
		name string
		coef *neldermead.Coefficients
		want neldermead.Coefficients
	}{
		{
			name: "configured values",
			want: neldermead.Coefficients{Reflection: 1.5, Expansion: 3, Contraction: 0.4, Shrink: 0.6},
		},
		{
			name: "shrink only",
			coef: &neldermead.Coefficients{Shrink: 0.25},
			want: neldermead.Coefficients{Reflection: 1.5, Expansion: 3, Contraction: 0.4, Shrink: 0.25},
		},
		{
			name: "reflection and contraction",
			coef: &neldermead.Coefficients{Reflection: 0.9, Contraction: 0.3},
			want: neldermead.Coefficients{Reflection: 0.9, Expansion: 3, Contraction: 0.3, Shrink: 0.6},
		},
		{
			name: "empty object",
			coef: &neldermead.Coefficients{},
			want: neldermead.Coefficients{Reflection: 1.5, Expansion: 3, Contraction: 0.4, Shrink: 0.6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := env.srv.resolve(OptimizeRequest{Objective: "booth", Coefficients: tt.coef})
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.coef)
		})
	}

	// The same merge applies to requests decoded from JSON.
	var req OptimizeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"objective":"booth","coefficients":{"shrink":0.25}}`), &req))
	spec, err := env.srv.resolve(req)
	require.NoError(t, err)
	assert.Equal(t, 1.5, spec.coef.Reflection)
	assert.Equal(t, 3.0, spec.coef.Expansion)
	assert.Equal(t, 0.4, spec.coef.Contraction)
	assert.Equal(t, 0.25, spec.coef.Shrink)
}

func TestOptimizeZeroIterations(t *testing.T) {
	env := newTestEnv(t, nil)

	st := env.start(t, map[string]interface{}{
		"objective":      "rosenbrock",
		"max_iterations": 0,
	})
	st = env.waitFor(t, st.ID, StatusCompleted)
	require.NotNil(t, st.Result)
	assert.Equal(t, []float64{-1.2, 1}, st.Result.X)
	assert.Nil(t, st.Result.F)
	assert.Equal(t, 0, st.Result.Evaluations)

	run := env.waitPersisted(t, st.ID)
	assert.Nil(t, run.F)
}

func TestOptimizeValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed json", body: `{"objective":`},
		{name: "unknown field", body: map[string]interface{}{"objective": "sphere", "start": []float64{1}, "bounds": 1}},
		{name: "missing objective", body: map[string]interface{}{"start": []float64{1}}},
		{name: "unknown objective", body: map[string]interface{}{"objective": "nope", "start": []float64{1}}},
		{name: "no start for sphere", body: map[string]interface{}{"objective": "sphere"}},
		{name: "wrong dimension", body: map[string]interface{}{"objective": "beale", "start": []float64{1, 2, 3}}},
		{name: "zero step", body: map[string]interface{}{"objective": "sphere", "start": []float64{1}, "step": 0}},
		{name: "bad shrink", body: map[string]interface{}{"objective": "sphere", "start": []float64{1}, "shrink": "sideways"}},
		{
			name: "simplex and start",
			body: map[string]interface{}{"objective": "sphere", "start": []float64{1}, "initial_simplex": [][]float64{{0}, {1}}},
		},
		{
			name: "ragged simplex",
			body: map[string]interface{}{"objective": "sphere", "initial_simplex": [][]float64{{0, 0}, {1}, {0, 1}}},
		},
		{
			name: "single vertex",
			body: map[string]interface{}{"objective": "sphere", "initial_simplex": [][]float64{{0, 0}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/optimize", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "invalid", body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCancelPending(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Optimization.WorkerCount = 1 })

	// Occupy the only worker slot so the job stays pending.
	env.srv.sem <- struct{}{}

	st := env.start(t, map[string]interface{}{"objective": "rosenbrock"})
	assert.Equal(t, StatusPending, env.status(t, st.ID).Status)

	rec := env.do(t, http.MethodGet, "/api/v1/simplices/"+st.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/optimization/"+st.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cancelled := env.status(t, st.ID)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.EndTime)
	assert.Nil(t, cancelled.Result)

	rec = env.do(t, http.MethodDelete, "/api/v1/optimization/"+st.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	<-env.srv.sem
	run := env.waitPersisted(t, st.ID)
	assert.Equal(t, StatusCancelled, run.Status)
	assert.Nil(t, run.X)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(env.metrics.Runs.WithLabelValues("rosenbrock", StatusCancelled)) == 1
	}, 5*time.Second, 5*time.Millisecond)

	// A cancelled job never ran, so its log is empty.
	rec = env.do(t, http.MethodGet, "/api/v1/simplices/"+st.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+st.ID+`","simplices":[]}`, rec.Body.String())
}

func TestProgressAfterCancel(t *testing.T) {
	env := newTestEnv(t, nil)

	j := &job{id: "j1", objective: "booth", status: StatusRunning, maxIterations: 10}
	env.srv.progress(j, neldermead.Iteration{Number: 2, Best: optimization.Solution{Parameters: []float64{1, 1}, Value: 4}})
	require.NotNil(t, j.best)
	assert.Equal(t, 2, j.iteration)

	j.cancel()
	cancelledAt := j.lastUpdated
	require.NotNil(t, j.endTime)

	// Iterations the running minimization reports after cancellation are
	// not applied.
	env.srv.progress(j, neldermead.Iteration{Number: 3, Best: optimization.Solution{Parameters: []float64{1, 3}, Value: 0}})
	assert.Equal(t, 2, j.iteration)
	assert.Equal(t, []float64{1, 1}, j.best.Parameters)
	assert.Equal(t, 4.0, j.best.Value)
	assert.Equal(t, cancelledAt, j.lastUpdated)
	assert.Equal(t, *j.endTime, j.lastUpdated)

	st := j.snapshot()
	assert.Equal(t, StatusCancelled, st.Status)
	assert.Equal(t, 2, st.Iteration)
}

func TestCancelCompleted(t *testing.T) {
	env := newTestEnv(t, nil)

	st := env.start(t, map[string]interface{}{"objective": "booth", "max_iterations": 5})
	env.waitFor(t, st.ID, StatusCompleted)

	rec := env.do(t, http.MethodDelete, "/api/v1/optimization/"+st.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, StatusCompleted, env.status(t, st.ID).Status)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/status/missing"},
		{http.MethodGet, "/api/v1/simplices/missing"},
		{http.MethodDelete, "/api/v1/optimization/missing"},
	} {
		rec := env.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

func TestStatusFromStore(t *testing.T) {
	env := newTestEnv(t, nil)

	f := 0.5
	finished := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)
	require.NoError(t, env.runs.SaveRun(context.Background(), store.Run{
		ID:          "earlier-run",
		Objective:   "booth",
		Status:      StatusCompleted,
		X:           []float64{1, 3},
		F:           &f,
		Iterations:  12,
		Evaluations: 40,
		StartedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:  &finished,
	}))

	st := env.status(t, "earlier-run")
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 12, st.Iteration)
	require.NotNil(t, st.Best)
	assert.Equal(t, []float64{1, 3}, st.Best.Parameters)
	assert.Equal(t, 0.5, *st.Best.Value)
	assert.True(t, finished.Equal(st.LastUpdated))
}

func TestObjectivesAndRuns(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/objectives", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []ObjectiveInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	names := make([]string, len(infos))
	for i, o := range infos {
		names[i] = o.Name
	}
	assert.Contains(t, names, "rosenbrock")
	assert.Contains(t, names, "himmelblau")

	rec = env.do(t, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func rpcCall(t *testing.T, env *testEnv, body string) rpcResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/rpc", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func TestJSONRPCErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "parse error", body: `{"jsonrpc":`, code: -32700},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"objectives.list"}`, code: -32600},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.explode"}`, code: -32601},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.status"}`, code: -32602},
		{name: "empty id", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":{"optimization_id":""}}`, code: -32602},
		{name: "bad start", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.start","params":[{"objective":"nope"}]}`, code: -32602},
		{name: "unknown job", body: `{"jsonrpc":"2.0","id":1,"method":"optimization.cancel","params":[{"optimization_id":"missing"}]}`, code: -32004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rpcCall(t, env, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Result)
		})
	}
}

func TestJSONRPCLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := rpcCall(t, env, `{"jsonrpc":"2.0","id":"a","method":"objectives.list"}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, "a", resp.ID)
	assert.Len(t, resp.Result, 7)

	resp = rpcCall(t, env, `{"jsonrpc":"2.0","id":2,"method":"optimization.start",
		"params":[{"objective":"himmelblau","step":0.5,"max_iterations":5000,"var_tol":1e-20,"log_simplices":true}]}`)
	require.Nil(t, resp.Error)
	started, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	id, _ := started["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, 2.0, resp.ID)

	statusReq := `{"jsonrpc":"2.0","id":3,"method":"optimization.status","params":{"optimization_id":"` + id + `"}}`
	var result map[string]interface{}
	require.Eventually(t, func() bool {
		r := rpcCall(t, env, statusReq)
		result, _ = r.Result.(map[string]interface{})
		return result != nil && result["status"] == StatusCompleted
	}, 10*time.Second, 5*time.Millisecond)

	best, ok := result["best_solution"].(map[string]interface{})
	require.True(t, ok)
	params, _ := best["parameters"].([]interface{})
	require.Len(t, params, 2)
	assert.InDelta(t, 3, params[0], 1e-6)
	assert.InDelta(t, 2, params[1], 1e-6)

	resp = rpcCall(t, env, `{"jsonrpc":"2.0","id":4,"method":"optimization.simplices","params":{"optimization_id":"`+id+`"}}`)
	require.Nil(t, resp.Error)
	log, _ := resp.Result.(map[string]interface{})
	assert.NotEmpty(t, log["simplices"])

	resp = rpcCall(t, env, `{"jsonrpc":"2.0","id":5,"method":"optimization.cancel","params":{"optimization_id":"`+id+`"}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32009, resp.Error.Code)
}

func TestRespondWithError(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		code    int
		message string
		id      interface{}
	}{
		{name: "string id", code: -32602, message: "invalid input", id: "123"},
		{name: "nil id", code: -32000, message: "server error", id: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.id, response["id"])
			assert.NotContains(t, response, "result")
		})
	}
}

func TestClose(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Optimization.WorkerCount = 1 })
	env.srv.sem <- struct{}{}

	st := env.start(t, map[string]interface{}{"objective": "rosenbrock"})
	require.NoError(t, env.srv.Close())

	assert.Equal(t, StatusCancelled, env.status(t, st.ID).Status)
	run, ok, err := env.runs.GetRun(context.Background(), st.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, run.Status)

	rec := env.do(t, http.MethodPost, "/api/v1/optimize", map[string]interface{}{"objective": "rosenbrock"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
