package polyadicqml

import (
	"context"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a submitted job.
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusRunning
	StatusDone
	StatusCancelled
	StatusErrored
)

var statusNames = map[JobStatus]string{
	StatusQueued:    "QUEUED",
	StatusRunning:   "RUNNING",
	StatusDone:      "DONE",
	StatusCancelled: "CANCELLED",
	StatusErrored:   "ERROR",
}

func (s JobStatus) String() string {
	if name, exists := statusNames[s]; exists {
		return name
	}
	return fmt.Sprintf("JobStatus(%d)", int(s))
}

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled || s == StatusErrored
}

// ExecutionBackend submits batches of circuits for asynchronous execution.
type ExecutionBackend interface {
	Name() string
	Submit(ctx context.Context, circuits []ExecutableCircuit, opts ExecOptions) (JobHandle, error)
}

// JobHandle is an opaque reference to one submitted batch of circuits.
// Its lifecycle is managed by the backend; this side only observes it.
type JobHandle interface {
	ID() string
	Backend() string
	Status(ctx context.Context) (JobStatus, error)
	Cancel(ctx context.Context) error
	Result(ctx context.Context) (*JobResult, error)
	// TimePerStep returns per-step timestamps for the job. The second
	// return value is false when the backend does not expose timing.
	TimePerStep(ctx context.Context) (map[string]time.Time, bool)
}

// JobResult holds the per-circuit outcome distributions of a completed job,
// in the same order as the submitted circuit manifest. Exactly one of the
// two fields is populated, depending on whether shots were requested.
type JobResult struct {
	Statevectors [][]complex128
	Counts       []map[string]int
}

// Dict returns a serializable form of the raw payload for archival.
func (r *JobResult) Dict() map[string]interface{} {
	out := make(map[string]interface{})
	if len(r.Counts) > 0 {
		out["counts"] = r.Counts
	}
	if len(r.Statevectors) > 0 {
		vecs := make([][][2]float64, len(r.Statevectors))
		for n, vec := range r.Statevectors {
			pairs := make([][2]float64, len(vec))
			for k, amp := range vec {
				pairs[k] = [2]float64{real(amp), imag(amp)}
			}
			vecs[n] = pairs
		}
		out["statevectors"] = vecs
	}
	return out
}

// CouplingMap lists the qubit pairs a device can entangle directly.
type CouplingMap [][]int

// NoiseModel describes the noise characteristics a backend should emulate.
type NoiseModel struct {
	Name             string   `json:"name,omitempty"`
	BasisGates       []string `json:"basis_gates,omitempty"`
	SingleQubitError float64  `json:"single_qubit_error,omitempty"`
	TwoQubitError    float64  `json:"two_qubit_error,omitempty"`
	ReadoutError     float64  `json:"readout_error,omitempty"`
}

// NoiseSource derives a noise model and coupling map from device calibration.
// Backends backed by real hardware implement it so their noise can be
// replayed on simulators.
type NoiseSource interface {
	DeviceNoise(ctx context.Context) (*NoiseModel, CouplingMap, error)
}

// Target is one (backend, noise model, coupling map) combination drawn from
// the rotation pool for a single submission.
type Target struct {
	Backend  ExecutionBackend
	Noise    *NoiseModel
	Coupling CouplingMap
}

// TargetProvider supplies a fresh target set when the operator requests a
// reload during interrupt recovery.
type TargetProvider interface {
	Load(ctx context.Context) (*TargetSet, error)
}

// TargetSet cycles through three parallel lists of backends, noise models
// and coupling maps, advanced in lockstep once per submission. A single
// configured value behaves as a list of length one. It is not safe for
// concurrent use.
type TargetSet struct {
	backends []ExecutionBackend
	noise    []*NoiseModel
	coupling []CouplingMap

	bi, ni, ci int
}

// NewTargetSet builds a rotation pool from explicit lists. A nil noise or
// coupling list stands for the absent value on every draw.
func NewTargetSet(backends []ExecutionBackend, noise []*NoiseModel, coupling []CouplingMap) (*TargetSet, error) {
	if len(backends) == 0 {
		return nil, newConfigError(
			"at least one execution backend is required",
			"NewTargetSet called with an empty backend list",
		)
	}
	if len(noise) == 0 {
		noise = []*NoiseModel{nil}
	}
	if len(coupling) == 0 {
		coupling = []CouplingMap{nil}
	}
	return &TargetSet{backends: backends, noise: noise, coupling: coupling}, nil
}

// DeriveTargetSet builds a rotation pool whose noise models and coupling
// maps are derived from the given noise-source devices, one pair per device.
func DeriveTargetSet(ctx context.Context, backends []ExecutionBackend, sources []NoiseSource) (*TargetSet, error) {
	if len(sources) == 0 {
		return NewTargetSet(backends, nil, nil)
	}

	noise := make([]*NoiseModel, 0, len(sources))
	coupling := make([]CouplingMap, 0, len(sources))
	for _, src := range sources {
		model, cmap, err := src.DeviceNoise(ctx)
		if err != nil {
			return nil, fmt.Errorf("deriving noise model: %w", err)
		}
		noise = append(noise, model)
		coupling = append(coupling, cmap)
	}
	return NewTargetSet(backends, noise, coupling)
}

// Draw returns the next target combination and advances all three cycles.
func (t *TargetSet) Draw() Target {
	tgt := Target{
		Backend:  t.backends[t.bi],
		Noise:    t.noise[t.ni],
		Coupling: t.coupling[t.ci],
	}
	t.bi = (t.bi + 1) % len(t.backends)
	t.ni = (t.ni + 1) % len(t.noise)
	t.ci = (t.ci + 1) % len(t.coupling)
	return tgt
}

// Len returns the number of configured backends.
func (t *TargetSet) Len() int { return len(t.backends) }
