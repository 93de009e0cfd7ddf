package polyadicqml

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

func init() {
	// Set up logger
	log.SetOutput(os.Stdout)
}

// CircuitML is the uniform execution interface for parametric quantum
// circuits used as machine-learning models. X is a matrix of feature
// vectors, one sample per row; params is broadcast across every sample.
// A shots count of zero requests exact probabilities instead of sampling.
type CircuitML interface {
	Run(ctx context.Context, X [][]float64, params []float64, shots, jobSize int) ([][]float64, error)
}

// Model runs a fixed parametric circuit over a rotating pool of remote
// execution backends, with job splitting, polling and failure recovery.
// A Model is single-threaded: concurrent calls to Run are not supported.
type Model struct {
	spec    CircuitSpec
	targets *TargetSet
	opts    modelOptions

	errLogger *log.Logger
	errFile   *os.File
}

var _ CircuitML = (*Model)(nil)

// New builds a Model for the given circuit specification and backends.
// Configuring both noise models and noise backends is a configuration
// error; when noise backends are given, noise models and coupling maps are
// derived from their calibration instead.
func New(spec CircuitSpec, backends []ExecutionBackend, options ...Option) (*Model, error) {
	var opts modelOptions
	for _, option := range options {
		option(&opts)
	}

	// Set defaults
	if opts.pollInterval == 0 {
		opts.pollInterval = DefaultPollInterval
	}
	if opts.errorBackoff == 0 {
		opts.errorBackoff = DefaultErrorBackoff
	}
	if opts.errorLog == "" {
		opts.errorLog = DefaultErrorLog
	}
	if opts.prompt == nil {
		opts.prompt = stdinPrompt
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}
	if len(opts.noiseModels) > 0 && len(opts.noiseBackends) > 0 {
		return nil, newConfigError(
			"only one between noise models and noise backends can be configured",
			"WithNoiseModels and WithNoiseBackends are mutually exclusive",
		)
	}

	var (
		targets *TargetSet
		err     error
	)
	if len(opts.noiseBackends) > 0 {
		targets, err = DeriveTargetSet(context.Background(), backends, opts.noiseBackends)
	} else {
		targets, err = NewTargetSet(backends, opts.noiseModels, opts.couplingMaps)
	}
	if err != nil {
		return nil, err
	}

	if opts.archive == nil && opts.savePath != "" {
		opts.archive = NewFileStore(opts.savePath)
	}

	m := &Model{
		spec:    spec,
		targets: targets,
		opts:    opts,
	}
	m.errLogger, m.errFile = newErrorLogger(opts.errorLog)
	return m, nil
}

// newErrorLogger builds a logger writing to stderr and, when the file can be
// opened, to the append-only error log as well.
func newErrorLogger(path string) (*log.Logger, *os.File) {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	if path == "" {
		return logger, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warnf("could not open error log %s: %v", path, err)
		return logger, nil
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return logger, f
}

// Close releases the error log file, if one was opened.
func (m *Model) Close() error {
	if m.errFile == nil {
		return nil
	}
	return m.errFile.Close()
}

// Targets exposes the current rotation pool.
func (m *Model) Targets() *TargetSet { return m.targets }

// reload replaces the target set from the configured provider. Without a
// provider the current set is kept and the retry proceeds as-is.
func (m *Model) reload(ctx context.Context) {
	if m.opts.provider == nil {
		log.Info("no target provider configured, retrying with current backends")
		return
	}
	targets, err := m.opts.provider.Load(ctx)
	if err != nil {
		log.Errorf("reloading backends failed, keeping current set: %v", err)
		return
	}
	m.targets = targets
	log.Infof("reloaded %d execution backends", targets.Len())
}

func stdinPrompt(msg string) (string, error) {
	fmt.Fprint(os.Stderr, msg)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line), err
}
