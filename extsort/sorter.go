// gtcheck: a high-performance tool for checking sample identity in VCF files.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/gtcheck/blob/master/LICENSE.txt>.

// Package extsort implements a memory-bounded external merge sort for
// fixed-size binary records.
//
// Records are collected in an in-memory arena. When the arena reaches
// its memory budget, it is sorted and spilled as a zstd-compressed run
// into a private scratch directory. Sorting then merges the runs, in
// several passes if there are more runs than can be opened at once.
package extsort

import (
	"bufio"
	"container/heap"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	psort "github.com/exascience/pargo/sort"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const (
	// DefaultMaxMemory is the default arena budget in bytes.
	DefaultMaxMemory = 500 << 20

	// DefaultMaxOpenRuns is the default merge fan-in.
	DefaultMaxOpenRuns = 64
)

// ErrClosed is returned when a Sorter is used after Close.
var ErrClosed = errors.New("extsort: sorter is closed")

// Options configure a Sorter.
type Options struct {
	// RecordSize is the size of every record in bytes.
	RecordSize int
	// MaxMemory bounds the in-memory arena, in bytes.
	MaxMemory int64
	// TempDir is where the scratch directory is created; os.TempDir()
	// if empty.
	TempDir string
	// MaxOpenRuns bounds the number of runs merged at once.
	MaxOpenRuns int
	// Less orders two records.
	Less func(a, b []byte) bool
}

// A Sorter sorts fixed-size records, spilling to disk when necessary.
type Sorter struct {
	opts     Options
	capacity int

	arena []byte
	count int64

	dir    string
	runs   []string
	nextID int

	sorted bool
	closed bool

	// in-memory result
	records [][]byte
	current int

	// on-disk result
	merge *merger
}

// New creates a Sorter.
func New(opts Options) (*Sorter, error) {
	if opts.RecordSize <= 0 {
		return nil, fmt.Errorf("extsort: invalid record size %v", opts.RecordSize)
	}
	if opts.Less == nil {
		return nil, errors.New("extsort: missing comparison function")
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = DefaultMaxMemory
	}
	if opts.MaxOpenRuns < 2 {
		opts.MaxOpenRuns = DefaultMaxOpenRuns
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	capacity := int(opts.MaxMemory / int64(opts.RecordSize))
	if capacity < 1 {
		capacity = 1
	}
	return &Sorter{opts: opts, capacity: capacity}, nil
}

// Len returns the number of records pushed so far.
func (s *Sorter) Len() int64 {
	return s.count
}

// Dir returns the scratch directory, or "" if nothing was spilled yet.
func (s *Sorter) Dir() string {
	return s.dir
}

// Runs returns the number of runs currently on disk.
func (s *Sorter) Runs() int {
	return len(s.runs)
}

// Push adds a copy of the record to the sorter.
func (s *Sorter) Push(record []byte) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.sorted:
		return errors.New("extsort: push after sort")
	case len(record) != s.opts.RecordSize:
		return fmt.Errorf("extsort: record of %v bytes, expected %v", len(record), s.opts.RecordSize)
	}
	s.arena = append(s.arena, record...)
	s.count++
	if len(s.arena) >= s.capacity*s.opts.RecordSize {
		return s.spill()
	}
	return nil
}

// sortArena returns the records of the arena in sorted order.
func (s *Sorter) sortArena() [][]byte {
	size := s.opts.RecordSize
	records := make([][]byte, len(s.arena)/size)
	for i := range records {
		records[i] = s.arena[i*size : (i+1)*size : (i+1)*size]
	}
	psort.StableSort(recordSorter{records, s.opts.Less})
	return records
}

func (s *Sorter) newRunName() (string, error) {
	if s.dir == "" {
		dir := filepath.Join(s.opts.TempDir, "gtcheck-"+uuid.New().String())
		if err := os.Mkdir(dir, 0700); err != nil {
			return "", fmt.Errorf("%v, while creating scratch directory for sorting", err)
		}
		s.dir = dir
	}
	s.nextID++
	return filepath.Join(s.dir, "run"+strconv.Itoa(s.nextID)+".zst"), nil
}

func (s *Sorter) spill() error {
	if len(s.arena) == 0 {
		return nil
	}
	records := s.sortArena()
	name, err := s.newRunName()
	if err != nil {
		return err
	}
	w, err := createRun(name)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := w.write(record); err != nil {
			_ = w.close()
			return err
		}
	}
	if err := w.close(); err != nil {
		return err
	}
	s.runs = append(s.runs, name)
	s.arena = s.arena[:0]
	return nil
}

// Sort ends the collection phase. After Sort, records are retrieved in
// order with Next.
func (s *Sorter) Sort() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.sorted:
		return nil
	}
	s.sorted = true
	if len(s.runs) == 0 {
		s.records = s.sortArena()
		return nil
	}
	if err := s.spill(); err != nil {
		return err
	}
	s.arena = nil
	for len(s.runs) > s.opts.MaxOpenRuns {
		if err := s.mergePass(); err != nil {
			return err
		}
	}
	m, err := newMerger(s.runs, s.opts)
	if err != nil {
		return err
	}
	s.merge = m
	return nil
}

// mergePass merges consecutive groups of runs into larger runs,
// preserving run order.
func (s *Sorter) mergePass() error {
	var merged []string
	for start := 0; start < len(s.runs); start += s.opts.MaxOpenRuns {
		end := start + s.opts.MaxOpenRuns
		if end > len(s.runs) {
			end = len(s.runs)
		}
		group := s.runs[start:end]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		name, err := s.newRunName()
		if err != nil {
			return err
		}
		if err := mergeInto(name, group, s.opts); err != nil {
			return err
		}
		for _, run := range group {
			if err := os.Remove(run); err != nil {
				return err
			}
		}
		merged = append(merged, name)
	}
	log.Printf("Merged %v sort runs into %v.\n", len(s.runs), len(merged))
	s.runs = merged
	return nil
}

// Next returns the next record in sorted order, or io.EOF when all
// records have been returned. The result is only valid until the next
// call to Next.
func (s *Sorter) Next() ([]byte, error) {
	switch {
	case s.closed:
		return nil, ErrClosed
	case !s.sorted:
		return nil, errors.New("extsort: next before sort")
	}
	if s.merge != nil {
		return s.merge.next()
	}
	if s.current >= len(s.records) {
		return nil, io.EOF
	}
	record := s.records[s.current]
	s.current++
	return record, nil
}

// Close releases all resources and removes the scratch directory. It
// can be called more than once.
func (s *Sorter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.arena, s.records = nil, nil
	if s.merge != nil {
		s.merge.close()
		s.merge = nil
	}
	if s.dir != "" {
		dir := s.dir
		s.dir = ""
		return os.RemoveAll(dir)
	}
	return nil
}

type recordSorter struct {
	records [][]byte
	less    func(a, b []byte) bool
}

func (s recordSorter) SequentialSort(i, j int) {
	records, less := s.records[i:j], s.less
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

func (s recordSorter) NewTemp() psort.StableSorter {
	return recordSorter{make([][]byte, len(s.records)), s.less}
}

func (s recordSorter) Len() int {
	return len(s.records)
}

func (s recordSorter) Less(i, j int) bool {
	return s.less(s.records[i], s.records[j])
}

func (s recordSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s.records, source.(recordSorter).records
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

type runWriter struct {
	file *os.File
	enc  *zstd.Encoder
}

func createRun(name string) (*runWriter, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &runWriter{file, enc}, nil
}

func (w *runWriter) write(record []byte) error {
	_, err := w.enc.Write(record)
	return err
}

func (w *runWriter) close() error {
	err := w.enc.Close()
	if nerr := w.file.Close(); err == nil {
		err = nerr
	}
	return err
}

type runReader struct {
	index  int
	file   *os.File
	dec    *zstd.Decoder
	record []byte
}

func openRun(index int, name string, size int) (*runReader, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(bufio.NewReader(file), zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &runReader{index: index, file: file, dec: dec, record: make([]byte, size)}, nil
}

// advance reads the next record of the run; it returns false at the end
// of the run.
func (r *runReader) advance() (bool, error) {
	_, err := io.ReadFull(r.dec, r.record)
	switch err {
	case nil:
		return true, nil
	case io.EOF:
		return false, nil
	case io.ErrUnexpectedEOF:
		return false, fmt.Errorf("extsort: truncated record in %v", r.file.Name())
	default:
		return false, err
	}
}

func (r *runReader) close() {
	r.dec.Close()
	_ = r.file.Close()
}

// runHeap orders run readers by their current record, then by run
// order.
type runHeap struct {
	readers []*runReader
	less    func(a, b []byte) bool
}

func (h *runHeap) Len() int { return len(h.readers) }

func (h *runHeap) Less(i, j int) bool {
	ri, rj := h.readers[i], h.readers[j]
	if h.less(ri.record, rj.record) {
		return true
	}
	if h.less(rj.record, ri.record) {
		return false
	}
	return ri.index < rj.index
}

func (h *runHeap) Swap(i, j int) { h.readers[i], h.readers[j] = h.readers[j], h.readers[i] }

func (h *runHeap) Push(x interface{}) { h.readers = append(h.readers, x.(*runReader)) }

func (h *runHeap) Pop() interface{} {
	n := len(h.readers) - 1
	r := h.readers[n]
	h.readers = h.readers[:n]
	return r
}

type merger struct {
	heap runHeap
	// reader whose record was returned last, to be advanced on the next call
	pending *runReader
	out     []byte
}

func newMerger(runs []string, opts Options) (*merger, error) {
	m := &merger{heap: runHeap{less: opts.Less}, out: make([]byte, opts.RecordSize)}
	for i, name := range runs {
		r, err := openRun(i, name, opts.RecordSize)
		if err != nil {
			m.close()
			return nil, err
		}
		ok, err := r.advance()
		if err != nil {
			r.close()
			m.close()
			return nil, err
		}
		if !ok {
			r.close()
			continue
		}
		m.heap.readers = append(m.heap.readers, r)
	}
	heap.Init(&m.heap)
	return m, nil
}

func (m *merger) next() ([]byte, error) {
	if r := m.pending; r != nil {
		m.pending = nil
		ok, err := r.advance()
		if err != nil {
			return nil, err
		}
		if ok {
			heap.Fix(&m.heap, 0)
		} else {
			heap.Pop(&m.heap)
			r.close()
		}
	}
	if m.heap.Len() == 0 {
		return nil, io.EOF
	}
	r := m.heap.readers[0]
	copy(m.out, r.record)
	m.pending = r
	return m.out, nil
}

func (m *merger) close() {
	for _, r := range m.heap.readers {
		r.close()
	}
	m.heap.readers = nil
	m.pending = nil
}

func mergeInto(name string, runs []string, opts Options) error {
	m, err := newMerger(runs, opts)
	if err != nil {
		return err
	}
	defer m.close()
	w, err := createRun(name)
	if err != nil {
		return err
	}
	for {
		record, err := m.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = w.close()
			return err
		}
		if err := w.write(record); err != nil {
			_ = w.close()
			return err
		}
	}
	return w.close()
}
