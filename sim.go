package polyadicqml

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// StateFn computes the final amplitude vector of one circuit.
type StateFn func(qc ExecutableCircuit) ([]complex128, error)

// SampleFn draws measurement counts for one circuit. Keys are bitstrings in
// the backend-native ordering, as a real device would report them.
type SampleFn func(qc ExecutableCircuit, shots int) (map[string]int, error)

// SimBackend is an in-process execution backend driven by caller-supplied
// evaluation functions. Jobs pass through the regular status machine but
// complete at submission time, which makes it the reference backend for
// development and tests. A nil sample function falls back to deterministic
// expected counts derived from the state function.
type SimBackend struct {
	name   string
	state  StateFn
	sample SampleFn
}

// NewSimBackend returns a simulated backend evaluating circuits with state
// and, when shots are requested, sample.
func NewSimBackend(name string, state StateFn, sample SampleFn) *SimBackend {
	return &SimBackend{name: name, state: state, sample: sample}
}

func (b *SimBackend) Name() string { return b.name }

// Submit evaluates every circuit synchronously and returns an
// already-completed job.
func (b *SimBackend) Submit(ctx context.Context, circuits []ExecutableCircuit, opts ExecOptions) (JobHandle, error) {
	submitted := time.Now()
	res := &JobResult{}
	for _, qc := range circuits {
		if opts.Shots == 0 {
			vec, err := b.state(qc)
			if err != nil {
				return nil, err
			}
			res.Statevectors = append(res.Statevectors, vec)
			continue
		}

		tally, err := b.counts(qc, opts.Shots)
		if err != nil {
			return nil, err
		}
		res.Counts = append(res.Counts, tally)
	}

	return &simJob{
		id:        uuid.NewString(),
		backend:   b.name,
		status:    StatusDone,
		res:       res,
		submitted: submitted,
		completed: time.Now(),
	}, nil
}

func (b *SimBackend) counts(qc ExecutableCircuit, shots int) (map[string]int, error) {
	if b.sample != nil {
		return b.sample(qc, shots)
	}
	vec, err := b.state(qc)
	if err != nil {
		return nil, err
	}
	return expectedCounts(vec, shots), nil
}

// expectedCounts rounds per-outcome expected shot counts, pushing any
// rounding drift onto the most likely outcome so the tally sums to shots.
func expectedCounts(vec []complex128, shots int) map[string]int {
	nbQubits := 0
	for 1<<nbQubits < len(vec) {
		nbQubits++
	}

	tally := make(map[string]int)
	total, argmax, pmax := 0, 0, 0.0
	for k, amp := range vec {
		p := real(amp)*real(amp) + imag(amp)*imag(amp)
		if p > pmax {
			pmax, argmax = p, k
		}
		count := int(math.Round(p * float64(shots)))
		if count > 0 {
			tally[nativeBitstring(k, nbQubits)] += count
			total += count
		}
	}
	if drift := shots - total; drift != 0 {
		tally[nativeBitstring(argmax, nbQubits)] += drift
	}
	return tally
}

func nativeBitstring(k, nbQubits int) string {
	return fmt.Sprintf("%0*b", nbQubits, k)
}

// simJob is the handle for a simulated job.
type simJob struct {
	id      string
	backend string
	status  JobStatus
	res     *JobResult

	submitted, completed time.Time
}

func (j *simJob) ID() string      { return j.id }
func (j *simJob) Backend() string { return j.backend }

func (j *simJob) Status(ctx context.Context) (JobStatus, error) { return j.status, nil }

func (j *simJob) Cancel(ctx context.Context) error {
	if !j.status.Terminal() {
		j.status = StatusCancelled
	}
	return nil
}

func (j *simJob) Result(ctx context.Context) (*JobResult, error) {
	if j.status != StatusDone {
		return nil, fmt.Errorf("job %s is %s, not DONE", j.id, j.status)
	}
	return j.res, nil
}

func (j *simJob) TimePerStep(ctx context.Context) (map[string]time.Time, bool) {
	return map[string]time.Time{
		"CREATING":  j.submitted,
		"COMPLETED": j.completed,
	}, true
}

// BatchEvaluator is the synchronous local simulator contract: it takes a
// batch of circuits and returns the result matrix directly, no job handle.
type BatchEvaluator interface {
	Evaluate(qcs []ExecutableCircuit, shots int) ([][]float64, error)
}

// LocalML is the local-simulator counterpart of Model: one synchronous call
// per batch, no polling and no recovery protocol.
type LocalML struct {
	spec CircuitSpec
	eval BatchEvaluator
}

var _ CircuitML = (*LocalML)(nil)

// NewLocalML builds the local reference path for the given circuit
// specification.
func NewLocalML(spec CircuitSpec, eval BatchEvaluator) (*LocalML, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, newConfigError(
			"a batch evaluator is required",
			"NewLocalML called with a nil BatchEvaluator",
		)
	}
	return &LocalML{spec: spec, eval: eval}, nil
}

// Run evaluates the whole batch in one synchronous call. Job splitting is
// not supported on the local path.
func (l *LocalML) Run(ctx context.Context, X [][]float64, params []float64, shots, jobSize int) ([][]float64, error) {
	if jobSize != 0 {
		return nil, newConfigError(
			"job splitting is not supported by the local simulator",
			fmt.Sprintf("got jobSize=%d", jobSize),
		)
	}
	qcs, err := l.spec.circuitList(X, params, shots)
	if err != nil {
		return nil, err
	}
	return l.eval.Evaluate(qcs, shots)
}

// RunSingle treats a single feature vector as a batch of one and returns
// its result row.
func (l *LocalML) RunSingle(ctx context.Context, x, params []float64, shots int) ([]float64, error) {
	out, err := l.Run(ctx, [][]float64{x}, params, shots, 0)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
