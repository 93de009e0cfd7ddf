package polyadicqml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var jobLogger = logrus.New()

const reloadPrompt = "[r] to reload backends, anything else to confirm interrupt: "

// request pairs a live job handle with its circuit manifest.
type request struct {
	job JobHandle
	qcs []ExecutableCircuit
}

// Submit builds one circuit per row of X, draws the next target from the
// rotation pool and dispatches the batch asynchronously. It returns
// immediately with a live job handle and the circuit manifest.
func (m *Model) Submit(ctx context.Context, X [][]float64, params []float64, shots int) (JobHandle, []ExecutableCircuit, error) {
	req, err := m.submit(ctx, X, params, shots)
	if err != nil {
		return nil, nil, err
	}
	return req.job, req.qcs, nil
}

func (m *Model) submit(ctx context.Context, X [][]float64, params []float64, shots int) (request, error) {
	qcs, err := m.spec.circuitList(X, params, shots)
	if err != nil {
		return request{}, err
	}

	tgt := m.targets.Draw()
	job, err := tgt.Backend.Submit(ctx, qcs, execOptions(shots, tgt))
	if err != nil {
		return request{}, ExecError{Backend: tgt.Backend.Name(), cause: err}
	}
	return request{job: job, qcs: qcs}, nil
}

// Run executes the batch and returns the stacked result matrix, of shape
// (len(X), 2^NbQubits). With jobSize set, the batch is partitioned into
// consecutive chunks of that many samples, one job per chunk; all jobs are
// submitted before any is awaited and chunk results keep the input order.
//
// Backend execution errors are logged and retried after a fixed backoff,
// without bound unless WithMaxRetries was given. An operator interrupt
// cancels every non-terminal job and prompts for reload-and-retry or abort.
func (m *Model) Run(ctx context.Context, X [][]float64, params []float64, shots, jobSize int) ([][]float64, error) {
	if jobSize < 0 {
		return nil, newConfigError(
			"'jobSize' has to be a positive integer",
			fmt.Sprintf("got jobSize=%d", jobSize),
		)
	}

	intr := m.opts.interrupts
	if intr == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		intr = ch
	}

	retries := 0
	for {
		out, err := m.runOnce(ctx, intr, X, params, shots, jobSize)
		if err == nil {
			return out, nil
		}

		if errors.Is(err, ErrInterrupted) {
			if !m.reloadOrAbort(ctx) {
				return nil, err
			}
			continue
		}

		var execErr ExecError
		if errors.As(err, &execErr) {
			m.errLogger.Errorf("error in Run: %v", execErr)
			retries++
			if m.opts.maxRetries > 0 && retries >= m.opts.maxRetries {
				return nil, err
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-intr:
				if !m.reloadOrAbort(ctx) {
					return nil, ErrInterrupted
				}
			case <-time.After(m.opts.errorBackoff):
			}
			continue
		}

		return nil, err
	}
}

// RunSingle treats a single feature vector as a batch of one and returns
// its result row.
func (m *Model) RunSingle(ctx context.Context, x, params []float64, shots int) ([]float64, error) {
	out, err := m.Run(ctx, [][]float64{x}, params, shots, 0)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// runOnce performs one full submit-await-stack pass. Any failure aborts the
// pass and triggers recovery on every outstanding job before returning.
func (m *Model) runOnce(ctx context.Context, intr <-chan os.Signal, X [][]float64, params []float64, shots, jobSize int) ([][]float64, error) {
	chunks := splitBatch(X, jobSize)

	reqs := make([]request, 0, len(chunks))
	for _, chunk := range chunks {
		req, err := m.submit(ctx, chunk, params, shots)
		if err != nil {
			m.recoverJobs(ctx, reqs)
			return nil, err
		}
		reqs = append(reqs, req)
	}

	out := make([][]float64, 0, len(X))
	for _, req := range reqs {
		rows, err := m.await(ctx, intr, req, shots)
		if err != nil {
			m.recoverJobs(ctx, reqs)
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// await blocks until the job reaches a terminal state, polling at the
// configured interval, then normalizes and archives its result. Terminal
// states other than DONE come back as an ExecError; an operator interrupt
// comes back as ErrInterrupted.
func (m *Model) await(ctx context.Context, intr <-chan os.Signal, req request, shots int) ([][]float64, error) {
	for {
		status, err := req.job.Status(ctx)
		if err != nil {
			return nil, ExecError{JobID: req.job.ID(), Backend: req.job.Backend(), cause: err}
		}
		if status == StatusDone {
			break
		}
		if status.Terminal() {
			return nil, ExecError{JobID: req.job.ID(), Backend: req.job.Backend(), Status: status}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-intr:
			return nil, ErrInterrupted
		case <-time.After(m.opts.pollInterval):
		}
	}

	res, err := req.job.Result(ctx)
	if err != nil {
		return nil, ExecError{JobID: req.job.ID(), Backend: req.job.Backend(), cause: err}
	}

	rows, err := normalize(res, m.spec.NbQubits, shots)
	if err != nil {
		return nil, ExecError{JobID: req.job.ID(), Backend: req.job.Backend(), cause: err}
	}

	if m.opts.archive != nil {
		if err := m.saveJob(ctx, req.job, res); err != nil {
			return nil, fmt.Errorf("archiving job %s: %w", req.job.ID(), err)
		}
	}
	return rows, nil
}

// recoverJobs inspects every job of the aborted pass: completed and
// already-terminal jobs are reported, everything still pending is cancelled.
func (m *Model) recoverJobs(ctx context.Context, reqs []request) {
	for _, req := range reqs {
		status, err := req.job.Status(ctx)
		if err != nil {
			jobLogger.Errorf("could not query job %s on %s: %v", req.job.ID(), req.job.Backend(), err)
			continue
		}
		switch {
		case status == StatusDone:
			jobLogger.Infof("Completed job %s on %s", req.job.ID(), req.job.Backend())
		case status.Terminal():
			jobLogger.Infof("%s (%s) on %s", status, req.job.ID(), req.job.Backend())
		default:
			jobLogger.Infof("Cancelling job %s on %s", req.job.ID(), req.job.Backend())
			if err := req.job.Cancel(ctx); err != nil {
				jobLogger.Warnf("cancel failed for job %s: %v", req.job.ID(), err)
			}
		}
	}
}

// reloadOrAbort asks the operator whether to reload the backends and retry.
// It returns false when the interrupt is confirmed.
func (m *Model) reloadOrAbort(ctx context.Context) bool {
	answer, err := m.opts.prompt(reloadPrompt)
	if err != nil || strings.TrimSpace(answer) != "r" {
		return false
	}
	m.reload(ctx)
	return true
}

// saveJob persists one archive record for the job, keyed by its identifier.
func (m *Model) saveJob(ctx context.Context, job JobHandle, res *JobResult) error {
	rec := ArchiveRecord{Results: res.Dict()}
	if times, ok := job.TimePerStep(ctx); ok {
		rec.Times = make(map[string]string, len(times))
		for step, ts := range times {
			rec.Times[step] = ts.Format(time.RFC3339Nano)
		}
	}
	return m.opts.archive.Save(ctx, job.ID(), rec)
}
