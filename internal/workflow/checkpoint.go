package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StageStatus is the terminal state of one stage attempt.
type StageStatus string

const (
	StagePlanned   StageStatus = "planned"
	StageCompleted StageStatus = "completed"
	StageCached    StageStatus = "cached_fallback"
	StageSkipped   StageStatus = "skipped"
	StageFailed    StageStatus = "failed"
)

// CheckpointRecord is one line of the run's checkpoint file. Records are
// appended in stage order, so the file doubles as a resume point and an
// audit trail of what actually ran.
type CheckpointRecord struct {
	RunID       string          `json:"run_id"`
	Stage       string          `json:"stage"`
	Capability  string          `json:"capability"`
	Status      StageStatus     `json:"status"`
	SourceID    string          `json:"source_id,omitempty"`
	Cached      bool            `json:"cached,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Remediation string          `json:"remediation,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// CheckpointWriter appends JSONL records. Writes are flushed per record so a
// crash loses at most the in-flight stage.
type CheckpointWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewCheckpointWriter opens (or creates) the checkpoint file for appending.
func NewCheckpointWriter(path string) (*CheckpointWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: path lives under the run directory
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint file: %w", err)
	}
	return &CheckpointWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one record, stamping it if unstamped.
func (w *CheckpointWriter) Append(rec CheckpointRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("appending checkpoint: %w", err)
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *CheckpointWriter) Close() error {
	return w.file.Close()
}

// ReadCheckpoints loads all records from a checkpoint file, in order.
func ReadCheckpoints(path string) ([]CheckpointRecord, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path lives under the run directory
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []CheckpointRecord
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec CheckpointRecord
		if err := dec.Decode(&rec); err != nil {
			return records, fmt.Errorf("decoding checkpoint: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
