package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Status is the lifecycle of one file in a batch.
type Status int

const (
	StatusPending Status = iota
	StatusConverting
	StatusConverted
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConverting:
		return "converting"
	case StatusConverted:
		return "converted"
	case StatusErrored:
		return "errored"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Output is what a processed file produced.
type Output struct {
	Result
	Path string // empty when nothing was written
}

// Entry is one file and its conversion state.
type Entry struct {
	File   InputFile
	Status Status
	Output Output
	Err    string
}

// ProcessFunc converts a single file.
type ProcessFunc func(ctx context.Context, f InputFile) (Output, error)

// Batch holds the file list and serializes status updates.
type Batch struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewBatch creates a batch with every file pending.
func NewBatch(files []InputFile) *Batch {
	entries := make([]Entry, len(files))
	for i, f := range files {
		entries[i] = Entry{File: f, Status: StatusPending}
	}
	return &Batch{entries: entries}
}

// State returns a consistent snapshot of all entries.
func (b *Batch) State() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Reset puts an errored entry back to pending so the next Run retries it.
func (b *Batch) Reset(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.entries) {
		return fmt.Errorf("no entry %d", i)
	}
	if b.entries[i].Status != StatusErrored {
		return fmt.Errorf("entry %d is %s, not errored", i, b.entries[i].Status)
	}
	b.entries[i].Status = StatusPending
	b.entries[i].Err = ""
	return nil
}

// setStatus updates entry i under the lock.
func (b *Batch) setStatus(i int, st Status, out Output, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &b.entries[i]
	e.Status = st
	e.Output = out
	e.Err = ""
	if err != nil {
		e.Err = err.Error()
	}
}

// Run processes every pending entry with at most workers goroutines and
// blocks until they finish. Entries not yet started when ctx is canceled
// stay pending.
func (b *Batch) Run(ctx context.Context, workers int, fn ProcessFunc) {
	if workers < 1 {
		workers = 1
	}

	b.mu.RLock()
	var pending []int
	for i, e := range b.entries {
		if e.Status == StatusPending {
			pending = append(pending, i)
		}
	}
	b.mu.RUnlock()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(workers, len(pending)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				b.process(ctx, i, fn)
			}
		}()
	}

feed:
	for _, i := range pending {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

func (b *Batch) process(ctx context.Context, i int, fn ProcessFunc) {
	if ctx.Err() != nil {
		return
	}
	b.mu.Lock()
	b.entries[i].Status = StatusConverting
	f := b.entries[i].File
	b.mu.Unlock()

	out, err := fn(ctx, f)
	if err != nil {
		log.Printf("%s: %v", f.Name, err)
		b.setStatus(i, StatusErrored, Output{}, err)
		return
	}
	b.setStatus(i, StatusConverted, out, nil)
}

// Summary aggregates sizes and outcomes over a batch.
type Summary struct {
	Files          int
	Converted      int
	Errored        int
	OriginalBytes  int64
	ConvertedBytes int64
}

// Change returns the size change of converted files in percent; negative
// means the output grew.
func (s Summary) Change() int {
	return calculateCompression(s.OriginalBytes, s.ConvertedBytes)
}

// Summary totals sizes over converted entries.
func (b *Batch) Summary() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Summary{Files: len(b.entries)}
	for _, e := range b.entries {
		switch e.Status {
		case StatusConverted:
			s.Converted++
			s.OriginalBytes += e.File.Size()
			s.ConvertedBytes += e.Output.Size()
		case StatusErrored:
			s.Errored++
		}
	}
	return s
}

// readInputs loads files from disk and detects their MIME types.
func readInputs(paths []string) ([]InputFile, error) {
	files := make([]InputFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, InputFile{Name: p, MIME: detectMIME(p, data), Data: data})
	}
	return files, nil
}

// outputName derives the output file name: the input base name with its
// extension replaced, plus an optional suffix before the new extension.
func outputName(input string, f Format, suffix string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + suffix + f.Ext()
}

var errOutputExists = errors.New("output file exists")

// writeOutput writes data to dir/name, creating dir. Existing files are
// only replaced when overwrite is set.
func writeOutput(dir, name string, data []byte, overwrite bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", errOutputExists, path)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
