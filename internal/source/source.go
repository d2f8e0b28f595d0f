package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// maxLineSize bounds a single input record; booking events with many passengers can be large
const maxLineSize = 16 * 1024 * 1024

// Source produces raw input units (one JSON booking event or one CSV airport row per line)
type Source interface {
	// Lines sends every unit to out and returns when the input is exhausted,
	// the context is cancelled or reading fails. It does not close out.
	Lines(ctx context.Context, out chan<- string) error
}

// FileSource reads newline separated units from a local file
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Lines(ctx context.Context, out chan<- string) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return nil
}
