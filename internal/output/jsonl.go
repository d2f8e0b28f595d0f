package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends records as JSON lines to one file.
// It satisfies the collector's batch writer so it can stand in for a database table.
type Writer[T any] struct {
	path string

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewWriter creates dir if needed and truncates dir/name
func NewWriter[T any](dir, name string) (*Writer[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	return &Writer[T]{path: path, file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// InsertBatch encodes the records and flushes them to the file
func (w *Writer[T]) InsertBatch(records []T) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range records {
		if err := w.enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to encode record for %s: %w", w.path, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the file
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	return w.file.Close()
}
