package polyadicqml

import (
	"os"
	"time"
)

const (
	// DefaultPollInterval is the default sleep between job status checks.
	DefaultPollInterval = 1 * time.Second
	// DefaultErrorBackoff is the default pause before retrying a run after
	// a backend execution error.
	DefaultErrorBackoff = 10 * time.Second
	// DefaultErrorLog is the default path of the append-only error log.
	DefaultErrorLog = "error.log"
)

type modelOptions struct {
	noiseModels   []*NoiseModel
	noiseBackends []NoiseSource
	couplingMaps  []CouplingMap

	archive  ArchiveStore
	savePath string

	provider     TargetProvider
	pollInterval time.Duration
	errorBackoff time.Duration
	errorLog     string
	maxRetries   int

	prompt     func(msg string) (string, error)
	interrupts <-chan os.Signal
}

// Option configures how a model is set up.
type Option func(*modelOptions)

// WithNoiseModels configures the noise models to rotate through, one per
// submission. Cannot be combined with WithNoiseBackends.
func WithNoiseModels(models ...*NoiseModel) Option {
	return func(options *modelOptions) {
		options.noiseModels = models
	}
}

// WithNoiseBackends configures devices whose calibration the noise models
// and coupling maps are derived from, one pair per device. Cannot be
// combined with WithNoiseModels.
func WithNoiseBackends(sources ...NoiseSource) Option {
	return func(options *modelOptions) {
		options.noiseBackends = sources
	}
}

// WithCouplingMaps configures the coupling maps to rotate through.
func WithCouplingMaps(maps ...CouplingMap) Option {
	return func(options *modelOptions) {
		options.couplingMaps = maps
	}
}

// WithArchive configures a store that completed jobs are persisted to.
func WithArchive(store ArchiveStore) Option {
	return func(options *modelOptions) {
		options.archive = store
	}
}

// WithSavePath configures a JSON file that completed jobs are persisted to.
// Shorthand for WithArchive(NewFileStore(path)).
func WithSavePath(path string) Option {
	return func(options *modelOptions) {
		options.savePath = path
	}
}

// WithTargetProvider configures where the target set is re-fetched from when
// the operator picks reload during interrupt recovery. Without a provider,
// reload retries with the current backends.
func WithTargetProvider(p TargetProvider) Option {
	return func(options *modelOptions) {
		options.provider = p
	}
}

// WithPollInterval configures the sleep between job status checks.
func WithPollInterval(d time.Duration) Option {
	return func(options *modelOptions) {
		options.pollInterval = d
	}
}

// WithErrorBackoff configures the pause before retrying after a backend
// execution error.
func WithErrorBackoff(d time.Duration) Option {
	return func(options *modelOptions) {
		options.errorBackoff = d
	}
}

// WithErrorLog configures the path of the append-only error log file.
func WithErrorLog(path string) Option {
	return func(options *modelOptions) {
		options.errorLog = path
	}
}

// WithMaxRetries bounds the number of retries after backend execution
// errors. Zero, the default, retries without bound.
func WithMaxRetries(n int) Option {
	return func(options *modelOptions) {
		options.maxRetries = n
	}
}

// WithPrompt replaces the stdin prompt used during interrupt recovery.
func WithPrompt(prompt func(msg string) (string, error)) Option {
	return func(options *modelOptions) {
		options.prompt = prompt
	}
}

// WithInterrupts replaces the operator interrupt source. By default Run
// listens for os.Interrupt for its whole duration.
func WithInterrupts(ch <-chan os.Signal) Option {
	return func(options *modelOptions) {
		options.interrupts = ch
	}
}
