package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process archive. Close is a no-op so the same instance
// can be opened repeatedly through MemoryOpener.
type Memory struct {
	mu       sync.RWMutex
	legends  map[string][]string
	rows     map[string][][]float64
	openings int
}

func NewMemory() *Memory {
	return &Memory{
		legends: make(map[string][]string),
		rows:    make(map[string][][]float64),
	}
}

// MemoryOpener resolves paths against a fixed set of in-memory archives.
func MemoryOpener(archives map[string]*Memory) OpenFunc {
	return func(_ context.Context, path string) (Reader, error) {
		a, ok := archives[path]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		a.mu.Lock()
		a.openings++
		a.mu.Unlock()
		return &memoryHandle{Memory: a}, nil
	}
}

// OpenHandles reports handles returned by MemoryOpener that are not closed.
func (a *Memory) OpenHandles() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.openings
}

func (a *Memory) Subfiles(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.legends))
	for name := range a.legends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *Memory) Legend(_ context.Context, subfile string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	legend, ok := a.legends[subfile]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubfileNotFound, subfile)
	}
	return append([]string(nil), legend...), nil
}

func (a *Memory) Rows(_ context.Context, subfile string) ([][]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.legends[subfile]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubfileNotFound, subfile)
	}
	out := make([][]float64, len(a.rows[subfile]))
	for i, row := range a.rows[subfile] {
		out[i] = append([]float64(nil), row...)
	}
	return out, nil
}

func (a *Memory) InsertSubfile(_ context.Context, subfile string, legend []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.legends[subfile]; ok {
		return fmt.Errorf("%w: %s", ErrSubfileExists, subfile)
	}
	a.legends[subfile] = append([]string(nil), legend...)
	return nil
}

func (a *Memory) Append(_ context.Context, subfile string, row []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	legend, ok := a.legends[subfile]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSubfileNotFound, subfile)
	}
	if err := validateRow(subfile, legend, row); err != nil {
		return err
	}
	a.rows[subfile] = append(a.rows[subfile], append([]float64(nil), row...))
	return nil
}

func (a *Memory) Close() error { return nil }

type memoryHandle struct {
	*Memory
	closed bool
}

func (h *memoryHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.mu.Lock()
	h.openings--
	h.mu.Unlock()
	return nil
}
