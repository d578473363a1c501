// Package selfplay records (position, score) pairs for offline NNUE
// training, grounded in original_source/training_data.c's role of logging
// search evaluations for a later training pass. It never drives search
// itself; the engine invokes it only if a front end wires it in.
package selfplay

import (
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Sample is one recorded (position, evaluation) pair.
type Sample struct {
	FEN   string `json:"fen"`
	Score int    `json:"score"`
}

// Recorder appends newline-delimited JSON samples to a writer. Safe for
// concurrent use since a single process may record from both a UCI "go"
// goroutine and the main loop.
type Recorder struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	f   *os.File
}

// NewRecorder opens path for appending and returns a Recorder writing to it.
// The file is created if absent; existing content is preserved so multiple
// self-play runs accumulate into one corpus.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Recorder{w: f, enc: json.NewEncoder(f), f: f}, nil
}

// Record appends one sample as a single JSON line.
func (r *Recorder) Record(fen string, scoreCP int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(Sample{FEN: fen, Score: scoreCP})
}

// Close closes the underlying file, if any.
func (r *Recorder) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}
