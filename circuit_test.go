package polyadicqml

import (
	"encoding/json"
	"fmt"
	"testing"
)

// testCircuit is the executable circuit the test builder produces: it just
// captures the sample, the parameters and the requested shots.
type testCircuit struct {
	x      []float64
	params []float64
	shots  int
}

func (c *testCircuit) Name() string { return fmt.Sprintf("circ%v", c.x) }
func (c *testCircuit) QASM() string { return "OPENQASM 3.0;" }

type testBuilder struct {
	nbQubits int
	x        []float64
	params   []float64
}

func (b *testBuilder) AsExecutable(shots int) (ExecutableCircuit, error) {
	return &testCircuit{x: b.x, params: b.params, shots: shots}, nil
}

func testSpec(nbQubits int) CircuitSpec {
	return CircuitSpec{
		NbQubits: nbQubits,
		NbParams: 1,
		Builder: func(nbQubits, batchSize int, flags BackendFlags) CircuitBuilder {
			return &testBuilder{nbQubits: nbQubits}
		},
		Make: func(bdr CircuitBuilder, x, params []float64) error {
			tb := bdr.(*testBuilder)
			tb.x = append([]float64(nil), x...)
			tb.params = append([]float64(nil), params...)
			return nil
		},
	}
}

// unitState maps each test circuit to a statevector with unit amplitude at
// native index x[0].
func unitState(nbQubits int) StateFn {
	dim := 1 << nbQubits
	return func(qc ExecutableCircuit) ([]complex128, error) {
		tc := qc.(*testCircuit)
		vec := make([]complex128, dim)
		vec[int(tc.x[0])%dim] = 1
		return vec, nil
	}
}

func TestCircuitList_OnePerSample(t *testing.T) {
	spec := testSpec(2)
	X := [][]float64{{0}, {1}, {2}}

	qcs, err := spec.circuitList(X, []float64{0.5}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(qcs) != 3 {
		t.Fatalf("got %d circuits, want 3", len(qcs))
	}
	for n, qc := range qcs {
		tc := qc.(*testCircuit)
		if tc.x[0] != float64(n) {
			t.Errorf("circuit %d built from sample %v", n, tc.x)
		}
		if len(tc.params) != 1 || tc.params[0] != 0.5 {
			t.Errorf("circuit %d has params %v", n, tc.params)
		}
	}
}

func TestExecOptions_AbsentMeansOmitted(t *testing.T) {
	opts := execOptions(0, Target{})
	buf, err := json.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf) != "{}" {
		t.Errorf("absent noise and coupling must contribute no keys, got %s", buf)
	}
}

func TestExecOptions_NoiseCarriesBasisGates(t *testing.T) {
	model := &NoiseModel{Name: "dev", BasisGates: []string{"cx", "sx"}}
	opts := execOptions(128, Target{Noise: model, Coupling: CouplingMap{{0, 1}}})

	if opts.Shots != 128 {
		t.Errorf("shots = %d", opts.Shots)
	}
	if opts.NoiseModel != model {
		t.Error("noise model not propagated")
	}
	if len(opts.BasisGates) != 2 {
		t.Errorf("basis gates = %v", opts.BasisGates)
	}
	if len(opts.CouplingMap) != 1 {
		t.Errorf("coupling map = %v", opts.CouplingMap)
	}
}

func TestSplitBatch(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}

	tests := []struct {
		jobSize int
		sizes   []int
	}{
		{0, []int{5}},
		{2, []int{2, 2, 1}},
		{5, []int{5}},
		{10, []int{5}},
		{1, []int{1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		chunks := splitBatch(X, tt.jobSize)
		if len(chunks) != len(tt.sizes) {
			t.Errorf("jobSize=%d: got %d chunks, want %d", tt.jobSize, len(chunks), len(tt.sizes))
			continue
		}
		for n, chunk := range chunks {
			if len(chunk) != tt.sizes[n] {
				t.Errorf("jobSize=%d: chunk %d has %d rows, want %d", tt.jobSize, n, len(chunk), tt.sizes[n])
			}
		}
	}
}

func TestCircuitSpec_Validate(t *testing.T) {
	spec := testSpec(2)
	if err := spec.validate(); err != nil {
		t.Fatal(err)
	}

	bad := spec
	bad.NbQubits = 0
	if err := bad.validate(); err == nil {
		t.Error("zero qubits accepted")
	}

	bad = spec
	bad.Make = nil
	if err := bad.validate(); err == nil {
		t.Error("missing construction function accepted")
	}
}
