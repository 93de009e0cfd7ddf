package polyadicqml

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ArchiveRecord is what gets persisted for one completed job: best-effort
// timing metadata and the raw result payload.
type ArchiveRecord struct {
	Times   map[string]string      `json:"times,omitempty" bson:"times,omitempty"`
	Results map[string]interface{} `json:"results" bson:"results"`
}

// ArchiveStore persists completed jobs keyed by job identifier. Records
// accumulate monotonically; nothing is ever removed.
type ArchiveStore interface {
	Save(ctx context.Context, jobID string, rec ArchiveRecord) error
}

// FileStore keeps the archive as a single JSON file holding a mapping from
// job id to record. Every save rewrites the whole file, so concurrent
// writers to the same path must be serialized by the caller.
type FileStore struct {
	path    string
	confirm func(msg string) bool
}

// NewFileStore returns a file-backed archive at the given path. The file is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, confirm: stdinConfirm}
}

// Save appends the record for jobID, overwriting any previous record with
// the same id. An existing file that fails to parse is only overwritten
// after operator confirmation; declining aborts the save.
func (s *FileStore) Save(ctx context.Context, jobID string, rec ArchiveRecord) error {
	out := make(map[string]ArchiveRecord)

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &out); jerr != nil {
			log.Warnf("archive file %s is broken, confirm overwriting", s.path)
			if !s.confirm(fmt.Sprintf("overwrite %s? [y/N]: ", s.path)) {
				return fmt.Errorf("archive %s is unreadable and overwrite was declined: %w", s.path, jerr)
			}
			out = make(map[string]ArchiveRecord)
		}
	case errors.Is(err, fs.ErrNotExist):
		// first save
	default:
		return err
	}

	out[jobID] = rec
	buf, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, buf, 0o644)
}

func stdinConfirm(msg string) bool {
	fmt.Fprint(os.Stderr, msg)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
