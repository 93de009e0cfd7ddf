package polyadicqml

// BackendFlags carries backend-specific hints for circuit construction.
type BackendFlags struct {
	GPU bool
}

// ExecutableCircuit is one parametric circuit instance, bound to a single
// sample and parameter vector, ready for submission.
type ExecutableCircuit interface {
	Name() string
}

// CircuitBuilder assembles one executable circuit gate by gate. Concrete
// builders belong to the execution backends; this package only drives them.
type CircuitBuilder interface {
	AsExecutable(shots int) (ExecutableCircuit, error)
}

// BuilderFactory returns a fresh builder for the given circuit width and
// batch size.
type BuilderFactory func(nbQubits, batchSize int, flags BackendFlags) CircuitBuilder

// MakeCircuit applies the model's gates to the builder for one sample `x`
// and the shared parameter vector. It is supplied by the caller and fixed
// for the lifetime of a model.
type MakeCircuit func(bdr CircuitBuilder, x, params []float64) error

// CircuitSpec fixes the shape of the circuits a model runs: qubit count,
// parameter count and the construction function. Immutable once the model
// is built.
type CircuitSpec struct {
	NbQubits int
	NbParams int
	Make     MakeCircuit
	Builder  BuilderFactory
	Flags    BackendFlags
}

func (s CircuitSpec) validate() error {
	if s.NbQubits <= 0 {
		return newConfigError(
			"number of qubits must be positive",
			"CircuitSpec.NbQubits must be at least 1",
		)
	}
	if s.Make == nil || s.Builder == nil {
		return newConfigError(
			"a circuit construction function and a builder are required",
			"CircuitSpec.Make and CircuitSpec.Builder must both be set",
		)
	}
	return nil
}

// circuitList builds one circuit per row of X. Feature-width validation is
// left to the builder.
func (s CircuitSpec) circuitList(X [][]float64, params []float64, shots int) ([]ExecutableCircuit, error) {
	qcs := make([]ExecutableCircuit, 0, len(X))
	for _, x := range X {
		bdr := s.Builder(s.NbQubits, 1, s.Flags)
		if err := s.Make(bdr, x, params); err != nil {
			return nil, err
		}
		qc, err := bdr.AsExecutable(shots)
		if err != nil {
			return nil, err
		}
		qcs = append(qcs, qc)
	}
	return qcs, nil
}

// ExecOptions is the per-submission options bundle. Absent noise models and
// coupling maps contribute no fields at all.
type ExecOptions struct {
	Shots       int         `json:"shots,omitempty"`
	BasisGates  []string    `json:"basis_gates,omitempty"`
	NoiseModel  *NoiseModel `json:"noise_model,omitempty"`
	CouplingMap CouplingMap `json:"coupling_map,omitempty"`
}

func execOptions(shots int, tgt Target) ExecOptions {
	var opts ExecOptions
	if shots > 0 {
		opts.Shots = shots
	}
	if tgt.Noise != nil {
		opts.NoiseModel = tgt.Noise
		opts.BasisGates = tgt.Noise.BasisGates
	}
	if tgt.Coupling != nil {
		opts.CouplingMap = tgt.Coupling
	}
	return opts
}

// splitBatch partitions X into consecutive chunks of jobSize rows, with a
// smaller final chunk holding the remainder. jobSize 0 means one chunk.
func splitBatch(X [][]float64, jobSize int) [][][]float64 {
	if jobSize <= 0 || jobSize >= len(X) {
		return [][][]float64{X}
	}
	chunks := make([][][]float64, 0, len(X)/jobSize+1)
	for start := 0; start < len(X); start += jobSize {
		end := start + jobSize
		if end > len(X) {
			end = len(X)
		}
		chunks = append(chunks, X[start:end])
	}
	return chunks
}
