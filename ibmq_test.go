package polyadicqml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// runtimeFixture is a minimal in-memory stand-in for the runtime REST API.
type runtimeFixture struct {
	mu          sync.Mutex
	submitted   []runtimeJobReq
	statusCalls int
	cancelled   bool
}

func newRuntimeServer(t *testing.T, fx *runtimeFixture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req runtimeJobReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fx.mu.Lock()
		fx.submitted = append(fx.submitted, req)
		fx.mu.Unlock()
		json.NewEncoder(w).Encode(runtimeJobResp{Id: "job-1"})
	})

	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		fx.mu.Lock()
		fx.statusCalls++
		calls := fx.statusCalls
		fx.mu.Unlock()
		status := "Queued"
		if calls > 1 {
			status = "Completed"
		}
		json.NewEncoder(w).Encode(runtimeStatusResp{Status: status})
	})

	mux.HandleFunc("/jobs/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"counts": map[string]int{"01": 40, "10": 60}},
			},
		})
	})

	mux.HandleFunc("/jobs/job-1/metrics", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(runtimeMetrics{
			Timestamps: map[string]string{
				"CREATING":  "2020-05-01T10:00:00Z",
				"COMPLETED": "2020-05-01T10:01:30Z",
			},
		})
	})

	mux.HandleFunc("/jobs/job-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		fx.mu.Lock()
		fx.cancelled = true
		fx.mu.Unlock()
	})

	mux.HandleFunc("/backends/fake_device/properties", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"backend_name":         "fake_device",
			"basis_gates":          []string{"cx", "sx", "rz"},
			"coupling_map":         [][]int{{0, 1}, {1, 2}},
			"median_cx_error":      0.01,
			"median_readout_error": 0.02,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialFixture(t *testing.T, srv *httptest.Server) *Conn {
	t.Helper()
	conn, err := Dial(WithToken("test-token"), WithAPIURL(srv.URL), WithRetries(1))
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestDial_RequiresToken(t *testing.T) {
	_, err := Dial()
	var cfgErr ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want a ConfigError", err)
	}
}

func TestIBMBackend_RunEndToEnd(t *testing.T) {
	fx := &runtimeFixture{}
	srv := newRuntimeServer(t, fx)
	backend := NewIBMBackend(dialFixture(t, srv), IBMConfig{Backend: "fake_device", Hub: "ibm-q"})

	m := testModel(t, backend)
	out, err := m.Run(context.Background(), batch(1), []float64{0.1}, 100, 0)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{0, 60, 40, 0}
	for col, c := range out[0] {
		if c != want[col] {
			t.Fatalf("got row %v, want %v", out[0], want)
		}
	}

	if len(fx.submitted) != 1 {
		t.Fatalf("runtime saw %d submissions, want 1", len(fx.submitted))
	}
	req := fx.submitted[0]
	if req.ProgramID != "sampler" || req.Backend != "fake_device" || req.Hub != "ibm-q" {
		t.Errorf("bad job request: %+v", req)
	}
	if req.Params.Shots != 100 || len(req.Params.Circuits) != 1 {
		t.Errorf("bad job params: %+v", req.Params)
	}
	if fx.statusCalls < 2 {
		t.Errorf("job was not polled through the queued state (%d status calls)", fx.statusCalls)
	}
}

func TestIBMBackend_ExactModeUsesStatevectorProgram(t *testing.T) {
	fx := &runtimeFixture{}
	srv := newRuntimeServer(t, fx)
	backend := NewIBMBackend(dialFixture(t, srv), IBMConfig{Backend: "fake_device"})

	qcs, err := testSpec(2).circuitList(batch(1), []float64{0.1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := backend.Submit(context.Background(), qcs, ExecOptions{}); err != nil {
		t.Fatal(err)
	}
	if fx.submitted[0].ProgramID != "statevector" {
		t.Errorf("exact mode submitted program %q", fx.submitted[0].ProgramID)
	}
}

func TestIBMJob_CancelAndTiming(t *testing.T) {
	fx := &runtimeFixture{}
	srv := newRuntimeServer(t, fx)
	job := &IBMJob{conn: dialFixture(t, srv), id: "job-1", backend: "fake_device"}

	if err := job.Cancel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !fx.cancelled {
		t.Error("cancel never reached the runtime")
	}

	times, ok := job.TimePerStep(context.Background())
	if !ok {
		t.Fatal("timing reported as unsupported")
	}
	want, _ := time.Parse(time.RFC3339, "2020-05-01T10:01:30Z")
	if !times["COMPLETED"].Equal(want) {
		t.Errorf("COMPLETED = %v, want %v", times["COMPLETED"], want)
	}
}

func TestIBMJob_UnknownStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(runtimeStatusResp{Status: "Mystifying"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	job := &IBMJob{conn: dialFixture(t, srv), id: "job-1", backend: "fake_device"}
	if _, err := job.Status(context.Background()); err == nil {
		t.Error("unknown wire status accepted")
	}
}

func TestIBMBackend_DeviceNoise(t *testing.T) {
	fx := &runtimeFixture{}
	srv := newRuntimeServer(t, fx)
	backend := NewIBMBackend(dialFixture(t, srv), IBMConfig{Backend: "fake_device"})

	model, cmap, err := backend.DeviceNoise(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if model.Name != "fake_device" || len(model.BasisGates) != 3 {
		t.Errorf("derived model %+v", model)
	}
	if model.TwoQubitError != 0.01 || model.ReadoutError != 0.02 {
		t.Errorf("derived error rates %+v", model)
	}
	if len(cmap) != 2 {
		t.Errorf("derived coupling map %v", cmap)
	}
}
