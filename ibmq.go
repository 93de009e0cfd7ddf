package polyadicqml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// runtimeStatusNames maps the wire status strings of the runtime API onto
// the job state machine.
var runtimeStatusNames = map[string]JobStatus{
	"Queued":    StatusQueued,
	"QUEUED":    StatusQueued,
	"Running":   StatusRunning,
	"RUNNING":   StatusRunning,
	"Completed": StatusDone,
	"COMPLETED": StatusDone,
	"Cancelled": StatusCancelled,
	"CANCELLED": StatusCancelled,
	"Failed":    StatusErrored,
	"ERROR":     StatusErrored,
}

// QASMCircuit is implemented by executable circuits that can serialize
// themselves to OpenQASM. The IBM backend only accepts such circuits.
type QASMCircuit interface {
	ExecutableCircuit
	QASM() string
}

// IBMConfig identifies one device reachable through the runtime API.
type IBMConfig struct {
	Backend string
	Hub     string
	Group   string
	Project string
}

// IBMBackend executes circuits on an IBM quantum device or cloud simulator
// through the runtime API. It also acts as a NoiseSource, deriving a noise
// model from the device's published properties.
type IBMBackend struct {
	conn *Conn
	cfg  IBMConfig
}

// NewIBMBackend returns an execution backend for the configured device.
func NewIBMBackend(conn *Conn, cfg IBMConfig) *IBMBackend {
	return &IBMBackend{conn: conn, cfg: cfg}
}

func (b *IBMBackend) Name() string { return b.cfg.Backend }

type runtimeJobReq struct {
	ProgramID string        `json:"program_id,omitempty"`
	Hub       string        `json:"hub,omitempty"`
	Group     string        `json:"group,omitempty"`
	Project   string        `json:"project,omitempty"`
	Backend   string        `json:"backend,omitempty"`
	Params    runtimeParams `json:"params,omitempty"`
}

type runtimeParams struct {
	Circuits    []string    `json:"circuits,omitempty"`
	Shots       int         `json:"shots,omitempty"`
	BasisGates  []string    `json:"basis_gates,omitempty"`
	NoiseModel  *NoiseModel `json:"noise_model,omitempty"`
	CouplingMap CouplingMap `json:"coupling_map,omitempty"`
}

type runtimeJobResp struct {
	Id string `json:"id,omitempty"`
}

// Submit dispatches the circuits as one runtime job and returns its handle.
func (b *IBMBackend) Submit(ctx context.Context, circuits []ExecutableCircuit, opts ExecOptions) (JobHandle, error) {
	qasms := make([]string, 0, len(circuits))
	for _, qc := range circuits {
		qqc, ok := qc.(QASMCircuit)
		if !ok {
			return nil, fmt.Errorf("circuit %q cannot serialize to OpenQASM", qc.Name())
		}
		qasms = append(qasms, qqc.QASM())
	}

	program := "sampler"
	if opts.Shots == 0 {
		program = "statevector"
	}
	req := runtimeJobReq{
		ProgramID: program,
		Hub:       b.cfg.Hub,
		Group:     b.cfg.Group,
		Project:   b.cfg.Project,
		Backend:   b.cfg.Backend,
		Params: runtimeParams{
			Circuits:    qasms,
			Shots:       opts.Shots,
			BasisGates:  opts.BasisGates,
			NoiseModel:  opts.NoiseModel,
			CouplingMap: opts.CouplingMap,
		},
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(req); err != nil {
		return nil, err
	}

	resp, err := b.conn.post(ctx, "jobs", &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var jobResp runtimeJobResp
	if err := b.conn.decode(resp.Body, &jobResp); err != nil {
		return nil, err
	}
	if jobResp.Id == "" {
		return nil, fmt.Errorf("runtime accepted the job but returned no id")
	}
	return &IBMJob{conn: b.conn, id: jobResp.Id, backend: b.cfg.Backend}, nil
}

type deviceProps struct {
	BackendName      string      `json:"backend_name,omitempty"`
	BasisGates       []string    `json:"basis_gates,omitempty"`
	CouplingMap      CouplingMap `json:"coupling_map,omitempty"`
	SingleQubitError float64     `json:"median_sx_error,omitempty"`
	TwoQubitError    float64     `json:"median_cx_error,omitempty"`
	ReadoutError     float64     `json:"median_readout_error,omitempty"`
}

// DeviceNoise derives a noise model and coupling map from the device's
// published properties.
func (b *IBMBackend) DeviceNoise(ctx context.Context) (*NoiseModel, CouplingMap, error) {
	resp, err := b.conn.get(ctx, fmt.Sprintf("backends/%s/properties", b.cfg.Backend))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var props deviceProps
	if err := b.conn.decode(resp.Body, &props); err != nil {
		return nil, nil, err
	}

	model := &NoiseModel{
		Name:             props.BackendName,
		BasisGates:       props.BasisGates,
		SingleQubitError: props.SingleQubitError,
		TwoQubitError:    props.TwoQubitError,
		ReadoutError:     props.ReadoutError,
	}
	if model.Name == "" {
		model.Name = b.cfg.Backend
	}
	return model, props.CouplingMap, nil
}

// IBMJob observes one runtime job.
type IBMJob struct {
	conn    *Conn
	id      string
	backend string
}

func (j *IBMJob) ID() string      { return j.id }
func (j *IBMJob) Backend() string { return j.backend }

type runtimeStatusResp struct {
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Status fetches the current lifecycle state of the job.
func (j *IBMJob) Status(ctx context.Context) (JobStatus, error) {
	resp, err := j.conn.get(ctx, fmt.Sprintf("jobs/%s", j.id))
	if err != nil {
		return StatusErrored, err
	}
	defer resp.Body.Close()

	var sr runtimeStatusResp
	if err := j.conn.decode(resp.Body, &sr); err != nil {
		return StatusErrored, err
	}

	status, exists := runtimeStatusNames[sr.Status]
	if !exists {
		return StatusErrored, fmt.Errorf("unknown job status %q", sr.Status)
	}
	return status, nil
}

// Cancel asks the backend to cancel the job.
func (j *IBMJob) Cancel(ctx context.Context) error {
	resp, err := j.conn.post(ctx, fmt.Sprintf("jobs/%s/cancel", j.id), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

type runtimeResults struct {
	Results []struct {
		Counts      map[string]int `json:"counts,omitempty"`
		Statevector [][2]float64   `json:"statevector,omitempty"`
	} `json:"results,omitempty"`
}

// Result fetches the per-circuit outcome distributions of the completed job.
func (j *IBMJob) Result(ctx context.Context) (*JobResult, error) {
	resp, err := j.conn.get(ctx, fmt.Sprintf("jobs/%s/results", j.id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rr runtimeResults
	if err := j.conn.decode(resp.Body, &rr); err != nil {
		return nil, err
	}

	res := &JobResult{}
	for _, r := range rr.Results {
		if len(r.Statevector) > 0 {
			vec := make([]complex128, len(r.Statevector))
			for k, pair := range r.Statevector {
				vec[k] = complex(pair[0], pair[1])
			}
			res.Statevectors = append(res.Statevectors, vec)
			continue
		}
		res.Counts = append(res.Counts, r.Counts)
	}
	return res, nil
}

type runtimeMetrics struct {
	Timestamps map[string]string `json:"timestamps,omitempty"`
}

// TimePerStep fetches the job's timing breakdown. Devices without metrics
// support report ok as false.
func (j *IBMJob) TimePerStep(ctx context.Context) (map[string]time.Time, bool) {
	resp, err := j.conn.get(ctx, fmt.Sprintf("jobs/%s/metrics", j.id))
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	var mr runtimeMetrics
	if err := j.conn.decode(resp.Body, &mr); err != nil || len(mr.Timestamps) == 0 {
		return nil, false
	}

	times := make(map[string]time.Time, len(mr.Timestamps))
	for step, raw := range mr.Timestamps {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, false
		}
		times[step] = ts
	}
	return times, true
}
