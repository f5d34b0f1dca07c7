// Package spill accumulates fixed-shape records during a single
// sequential pass, moving them to a temporary file once an in-memory
// threshold is crossed. Indexing a multi-hour recording produces one
// frame record per demuxed packet; the log keeps that directory off the
// heap until the pass finishes and the records are drained for
// finalization.
package spill

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// defaultThreshold is the estimated in-memory byte count past which a
// Log spills to disk.
const defaultThreshold = 256 << 20

// recordEstimate is the per-record memory estimate weighed against the
// threshold. Frame records are small and uniform; an estimate is
// enough.
const recordEstimate = 96

// Log is an append-only record accumulator for one indexing pass. It is
// not safe for concurrent use; the pass that feeds it is strictly
// sequential.
type Log[T any] struct {
	prefix    string
	threshold int64

	mem      []T
	estimate int64

	file  *os.File
	enc   *json.Encoder
	count int
}

// NewLog creates an empty log. prefix names the temporary spill file,
// should one be needed.
func NewLog[T any](prefix string) *Log[T] {
	return &Log[T]{prefix: prefix, threshold: defaultThreshold}
}

// Append adds one record to the end of the log.
func (l *Log[T]) Append(rec T) error {
	if l.file != nil {
		if err := l.enc.Encode(&rec); err != nil {
			return fmt.Errorf("spill: encoding record: %w", err)
		}
		l.count++
		return nil
	}

	l.mem = append(l.mem, rec)
	l.estimate += recordEstimate
	if l.estimate >= l.threshold {
		return l.spill()
	}
	return nil
}

// Len returns the number of records appended so far.
func (l *Log[T]) Len() int {
	if l.file != nil {
		return l.count
	}
	return len(l.mem)
}

// Drain returns every record in append order and retires the log,
// removing any spill file. The log must not be used afterwards.
func (l *Log[T]) Drain() ([]T, error) {
	if l.file == nil {
		out := l.mem
		l.mem = nil
		return out, nil
	}

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		l.Close()
		return nil, fmt.Errorf("spill: rewinding spill file: %w", err)
	}
	out := make([]T, 0, l.count)
	dec := json.NewDecoder(l.file)
	for i := 0; i < l.count; i++ {
		var rec T
		if err := dec.Decode(&rec); err != nil {
			l.Close()
			return nil, fmt.Errorf("spill: decoding record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	l.Close()
	return out, nil
}

// Close discards the log's contents and removes any spill file. Safe to
// call after Drain.
func (l *Log[T]) Close() error {
	l.mem = nil
	if l.file == nil {
		return nil
	}
	name := l.file.Name()
	err := l.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	l.file = nil
	l.enc = nil
	return err
}

// spill writes the in-memory records to a fresh temporary file and
// switches the log to disk mode.
func (l *Log[T]) spill() error {
	f, err := os.CreateTemp("", l.prefix+"-*.jsonl")
	if err != nil {
		return fmt.Errorf("spill: creating spill file: %w", err)
	}
	enc := json.NewEncoder(f)
	for i := range l.mem {
		if err := enc.Encode(&l.mem[i]); err != nil {
			f.Close()
			os.Remove(f.Name())
			return fmt.Errorf("spill: encoding record %d: %w", i, err)
		}
	}

	l.file = f
	l.enc = enc
	l.count = len(l.mem)
	l.mem = nil
	l.estimate = 0
	return nil
}
