package server

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/simplex/internal/errors"
	"github.com/copyleftdev/simplex/internal/logging"
	"github.com/copyleftdev/simplex/internal/optimization"
	"github.com/copyleftdev/simplex/internal/optimization/neldermead"
	"github.com/copyleftdev/simplex/internal/optimization/objectives"
	"github.com/copyleftdev/simplex/internal/store"
)

// Job states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const persistTimeout = 5 * time.Second

// job is the server-side state of one minimization. All fields are guarded
// by Server.jobsMu.
type job struct {
	id            string
	objective     string
	status        string
	startTime     time.Time
	endTime       *time.Time
	lastUpdated   time.Time
	maxIterations int
	iteration     int
	best          *optimization.Solution
	result        *neldermead.Result
	simplices     []*mat.Dense
	err           string
}

func (j *job) terminal() bool {
	switch j.status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (j *job) finish(status string) {
	now := time.Now().UTC()
	j.status = status
	j.endTime = &now
	j.lastUpdated = now
}

// cancel marks the job cancelled. A running minimization cannot be
// interrupted; its result is dropped when it returns.
func (j *job) cancel() {
	j.finish(StatusCancelled)
}

// Point is a location and its objective value. Value is null when the
// value is not a finite number.
type Point struct {
	Parameters []float64 `json:"parameters"`
	Value      *float64  `json:"value"`
}

// ResultView is the outcome of a completed job.
type ResultView struct {
	X           []float64        `json:"x"`
	F           *float64         `json:"f"`
	Iterations  int              `json:"iterations"`
	Evaluations int              `json:"evaluations"`
	Status      string           `json:"status"`
	Steps       neldermead.Steps `json:"steps"`
}

// JobStatus is the externally visible state of a job.
type JobStatus struct {
	ID          string      `json:"id"`
	Objective   string      `json:"objective"`
	Status      string      `json:"status"`
	Progress    float64     `json:"progress"`
	Iteration   int         `json:"iteration"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     *time.Time  `json:"end_time,omitempty"`
	LastUpdated time.Time   `json:"last_update"`
	Best        *Point      `json:"best_solution,omitempty"`
	Result      *ResultView `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ObjectiveInfo describes a catalogue entry.
type ObjectiveInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Dim         int       `json:"dim,omitempty"`
	MinDim      int       `json:"min_dim,omitempty"`
	Start       []float64 `json:"start,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (j *job) snapshot() JobStatus {
	st := JobStatus{
		ID:          j.id,
		Objective:   j.objective,
		Status:      j.status,
		Iteration:   j.iteration,
		StartTime:   j.startTime,
		EndTime:     j.endTime,
		LastUpdated: j.lastUpdated,
		Error:       j.err,
	}
	switch {
	case j.status == StatusCompleted:
		st.Progress = 1
	case j.maxIterations > 0:
		st.Progress = math.Min(1, float64(j.iteration)/float64(j.maxIterations))
	}
	if j.best != nil {
		st.Best = &Point{Parameters: append([]float64(nil), j.best.Parameters...), Value: finite(j.best.Value)}
	}
	if j.result != nil {
		st.Result = &ResultView{
			X:           append([]float64(nil), j.result.X...),
			F:           finite(j.result.F),
			Iterations:  j.result.Iterations,
			Evaluations: j.result.Evaluations,
			Status:      j.result.Status.String(),
			Steps:       j.result.Steps,
		}
	}
	return st
}

func statusFromRun(run store.Run) JobStatus {
	st := JobStatus{
		ID:          run.ID,
		Objective:   run.Objective,
		Status:      run.Status,
		Iteration:   run.Iterations,
		StartTime:   run.StartedAt,
		EndTime:     run.FinishedAt,
		LastUpdated: run.StartedAt,
		Error:       run.Error,
	}
	if run.FinishedAt != nil {
		st.LastUpdated = *run.FinishedAt
	}
	if run.Status == StatusCompleted {
		st.Progress = 1
		st.Best = &Point{Parameters: run.X, Value: run.F}
	}
	return st
}

func (s *Server) startJob(req OptimizeRequest) (JobStatus, error) {
	spec, err := s.resolve(req)
	if err != nil {
		return JobStatus{}, err
	}

	now := time.Now().UTC()
	j := &job{
		id:            uuid.NewString(),
		objective:     spec.objective.Name,
		status:        StatusPending,
		startTime:     now,
		lastUpdated:   now,
		maxIterations: spec.settings.MaxIterations,
	}

	s.jobsMu.Lock()
	if s.closed {
		s.jobsMu.Unlock()
		return JobStatus{}, errors.New(errors.KindConflict, "server is shutting down").
			WithComponent("server").WithOperation("start")
	}
	s.jobs[j.id] = j
	s.wg.Add(1)
	st := j.snapshot()
	s.jobsMu.Unlock()

	s.logger.Info("Optimization queued", map[string]interface{}{
		"optimization_id": j.id,
		"objective":       j.objective,
		"max_iterations":  spec.settings.MaxIterations,
	})

	go s.run(j, spec)
	return st, nil
}

// run waits for a worker slot and minimizes. It always persists the job.
func (s *Server) run(j *job, spec jobSpec) {
	defer s.wg.Done()

	acquired := false
	select {
	case s.sem <- struct{}{}:
		acquired = true
	case <-s.done:
	}
	release := func() {
		if acquired {
			<-s.sem
			acquired = false
		}
	}
	defer release()

	s.jobsMu.Lock()
	if j.status != StatusPending {
		s.jobsMu.Unlock()
		s.record(j, nil)
		return
	}
	j.status = StatusRunning
	j.lastUpdated = time.Now().UTC()
	s.jobsMu.Unlock()

	s.metrics.ActiveJobs.Inc()
	jobLogger := s.logger.WithFields(map[string]interface{}{
		"optimization_id": j.id,
		"objective":       j.objective,
	})
	opt := neldermead.New(
		neldermead.WithCoefficients(spec.coef),
		neldermead.WithShrinkMode(spec.shrink),
		neldermead.WithSimplexLog(spec.logSimplices),
		neldermead.WithLogger(logging.NewZapLogger(jobLogger)),
		neldermead.WithObserver(func(it neldermead.Iteration) { s.progress(j, it) }),
	)
	res, err := opt.Minimize(spec.objective.Batch(), spec.simplex, spec.settings)
	s.metrics.ActiveJobs.Dec()
	release()

	s.jobsMu.Lock()
	switch {
	case j.status == StatusCancelled:
		res = nil
	case err != nil:
		j.err = err.Error()
		j.finish(StatusFailed)
		res = nil
	default:
		j.result = res
		j.simplices = opt.SimplexLog()
		best := res.Solution()
		j.best = &best
		j.iteration = res.Iterations
		j.finish(StatusCompleted)
	}
	s.jobsMu.Unlock()

	s.record(j, res)
}

func (s *Server) progress(j *job, it neldermead.Iteration) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	// A cancelled job keeps the state it had when it was cancelled.
	if j.terminal() {
		return
	}
	j.iteration = it.Number
	best := it.Best
	j.best = &best
	j.lastUpdated = time.Now().UTC()
}

// record updates metrics and the run store for a finished job. res is nil
// unless the job completed.
func (s *Server) record(j *job, res *neldermead.Result) {
	s.jobsMu.RLock()
	run := store.Run{
		ID:         j.id,
		Objective:  j.objective,
		Status:     j.status,
		Iterations: j.iteration,
		Error:      j.err,
		StartedAt:  j.startTime,
		FinishedAt: j.endTime,
	}
	s.jobsMu.RUnlock()

	fields := map[string]interface{}{
		"optimization_id": run.ID,
		"objective":       run.Objective,
		"status":          run.Status,
	}
	if res != nil {
		run.X = append([]float64(nil), res.X...)
		run.F = finite(res.F)
		run.Evaluations = res.Evaluations
		s.metrics.ObserveRun(run.Objective, res)
		fields["iterations"] = res.Iterations
		fields["termination"] = res.Status.String()
	} else {
		s.metrics.ObserveFailure(run.Objective, run.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.runs.SaveRun(ctx, run); err != nil {
		s.logger.Error("Failed to persist run", map[string]interface{}{
			"optimization_id": run.ID,
			"error":           err.Error(),
		})
	}

	if run.Status == StatusFailed {
		fields["error"] = run.Error
		s.logger.Warn("Optimization failed", fields)
		return
	}
	s.logger.Info("Optimization finished", fields)
}

func notFound(id string) error {
	return errors.Errorf(errors.KindNotFound, "optimization %s not found", id).WithComponent("server")
}

func (s *Server) jobStatus(ctx context.Context, id string) (JobStatus, error) {
	s.jobsMu.RLock()
	j, ok := s.jobs[id]
	var st JobStatus
	if ok {
		st = j.snapshot()
	}
	s.jobsMu.RUnlock()
	if ok {
		return st, nil
	}

	// Jobs of earlier server processes are only in the run store.
	run, found, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return JobStatus{}, errors.Wrap(err, errors.KindInternal, "load run").WithComponent("server").WithOperation("status")
	}
	if !found {
		return JobStatus{}, notFound(id)
	}
	return statusFromRun(run), nil
}

// jobSimplices returns the simplex log of a finished job, one matrix per
// iteration as a slice of vertices.
func (s *Server) jobSimplices(id string) ([][][]float64, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	if !j.terminal() {
		return nil, errors.Errorf(errors.KindConflict, "optimization %s is still %s", id, j.status).
			WithComponent("server").WithOperation("simplices")
	}

	out := make([][][]float64, len(j.simplices))
	for i, m := range j.simplices {
		rows, _ := m.Dims()
		out[i] = make([][]float64, rows)
		for r := 0; r < rows; r++ {
			out[i][r] = mat.Row(nil, r, m)
		}
	}
	return out, nil
}

func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return notFound(id)
	}
	if j.terminal() {
		return errors.Errorf(errors.KindConflict, "cannot cancel optimization with status: %s", j.status).
			WithComponent("server").WithOperation("cancel")
	}
	j.cancel()

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

func listObjectives() []ObjectiveInfo {
	all := objectives.All()
	out := make([]ObjectiveInfo, len(all))
	for i, o := range all {
		out[i] = ObjectiveInfo{
			Name:        o.Name,
			Description: o.Description,
			Dim:         o.Dim,
			MinDim:      o.MinDim,
			Start:       o.Start,
		}
	}
	return out
}

func (s *Server) listRuns(ctx context.Context, limit int) ([]store.Run, error) {
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "list runs").WithComponent("server").WithOperation("runs")
	}
	return runs, nil
}
