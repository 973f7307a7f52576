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

package vcf

import (
	"io"

	"github.com/exascience/gtcheck/utils"
)

// A SyncedReader walks two position-sorted VCF files in step and
// yields the records that share chromosome and position.
//
// When a position holds several records in either file, records with
// identical REF and ALT alleles are paired first. A remaining record
// without ALT alleles is paired with a remaining record with the same
// REF. Other records at that position stay unpaired.
//
// Chromosomes are ordered by the ##contig lines of the first header,
// then of the second header, then in order of first appearance.
type SyncedReader struct {
	readers    [2]*Reader
	current    [2]*Variant
	eof        [2]bool
	pending    [][2]*Variant
	chromOrder map[utils.Symbol]int
}

// NewSyncedReader creates a SyncedReader for two readers.
func NewSyncedReader(first, second *Reader) *SyncedReader {
	sr := &SyncedReader{
		readers:    [2]*Reader{first, second},
		chromOrder: make(map[utils.Symbol]int),
	}
	for _, r := range sr.readers {
		for _, contig := range r.Header.Contigs {
			sr.rank(contig)
		}
	}
	return sr
}

func (sr *SyncedReader) rank(chrom utils.Symbol) int {
	if r, ok := sr.chromOrder[chrom]; ok {
		return r
	}
	r := len(sr.chromOrder)
	sr.chromOrder[chrom] = r
	return r
}

func (sr *SyncedReader) compare(a, b *Variant) int {
	if a.Chrom != b.Chrom {
		if sr.rank(a.Chrom) < sr.rank(b.Chrom) {
			return -1
		}
		return 1
	}
	switch {
	case a.Pos < b.Pos:
		return -1
	case a.Pos > b.Pos:
		return 1
	default:
		return 0
	}
}

func sameAlleles(a, b *Variant) bool {
	if a.Ref != b.Ref || len(a.Alt) != len(b.Alt) {
		return false
	}
	for i, alt := range a.Alt {
		if alt != b.Alt[i] {
			return false
		}
	}
	return true
}

func compatibleAlleles(a, b *Variant) bool {
	return a.Ref == b.Ref && (len(a.Alt) == 0 || len(b.Alt) == 0)
}

// fill reads the next record of file i into sr.current[i], unless it
// is already there.
func (sr *SyncedReader) fill(i int) error {
	if sr.current[i] != nil || sr.eof[i] {
		return nil
	}
	v, err := sr.readers[i].Read()
	if err == io.EOF {
		sr.eof[i] = true
		return nil
	} else if err != nil {
		return err
	}
	sr.current[i] = v
	return nil
}

// group collects all records of file i at the position of
// sr.current[i].
func (sr *SyncedReader) group(i int) ([]*Variant, error) {
	head := sr.current[i]
	records := []*Variant{head}
	sr.current[i] = nil
	for {
		if err := sr.fill(i); err != nil {
			return nil, err
		}
		next := sr.current[i]
		if next == nil || sr.compare(head, next) != 0 {
			return records, nil
		}
		records = append(records, next)
		sr.current[i] = nil
	}
}

// match queues the pairs of two groups of records at one position.
func (sr *SyncedReader) match(first, second []*Variant) {
	used := make([]bool, len(second))
	var unpaired []*Variant
	for _, a := range first {
		found := false
		for j, b := range second {
			if !used[j] && sameAlleles(a, b) {
				used[j], found = true, true
				sr.pending = append(sr.pending, [2]*Variant{a, b})
				break
			}
		}
		if !found {
			unpaired = append(unpaired, a)
		}
	}
	for _, a := range unpaired {
		for j, b := range second {
			if !used[j] && compatibleAlleles(a, b) {
				used[j] = true
				sr.pending = append(sr.pending, [2]*Variant{a, b})
				break
			}
		}
	}
}

// Next returns the next pair of records at a shared position, or
// io.EOF when either file is exhausted. Records without a partner in
// the other file are skipped.
func (sr *SyncedReader) Next() (first, second *Variant, err error) {
	for len(sr.pending) == 0 {
		for i := range sr.readers {
			if err = sr.fill(i); err != nil {
				return nil, nil, err
			}
			if sr.current[i] == nil {
				return nil, nil, io.EOF
			}
		}
		switch sr.compare(sr.current[0], sr.current[1]) {
		case -1:
			sr.current[0] = nil
		case 1:
			sr.current[1] = nil
		default:
			firstGroup, err := sr.group(0)
			if err != nil {
				return nil, nil, err
			}
			secondGroup, err := sr.group(1)
			if err != nil {
				return nil, nil, err
			}
			sr.match(firstGroup, secondGroup)
		}
	}
	pair := sr.pending[0]
	sr.pending = sr.pending[1:]
	return pair[0], pair[1], nil
}

// Each calls f for every pair of records at a shared position, until
// either file is exhausted or f returns an error.
func (sr *SyncedReader) Each(f func(first, second *Variant) error) error {
	for {
		first, second, err := sr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := f(first, second); err != nil {
			return err
		}
	}
}
