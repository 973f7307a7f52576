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

package gtcheck

import "sort"

// Mode is the way sample pairs are enumerated.
type Mode int

const (
	// CrossCheck compares all samples of one file with each other.
	CrossCheck Mode = iota
	// Rectangular compares every query sample with every reference
	// sample.
	Rectangular
	// Explicit compares a given list of pairs.
	Explicit
)

func (m Mode) String() string {
	switch m {
	case CrossCheck:
		return "cross-check"
	case Rectangular:
		return "rectangular"
	default:
		return "explicit pairs"
	}
}

// A Pair holds the sample column indices of a query and a reference
// sample.
type Pair struct {
	Query, Reference int
}

// A Pairing enumerates the sample pairs of a run, and maps each of them
// to an index into the accumulators.
//
// Rows are query samples and columns are reference samples. In
// CrossCheck mode, row i covers the columns j < i, at triangular index
// i*(i-1)/2 + j. In Rectangular mode, row i covers all columns, at
// index i*len(Reference) + j. In Explicit mode, the pairs are sorted by
// query and then by reference sample, and the index is the position in
// that order.
type Pairing struct {
	Mode      Mode
	Query     []int // sample column indices in the query file, ascending
	Reference []int // sample column indices in the reference file, ascending
	Pairs     []Pair
}

// NewCrossCheck creates a CrossCheck pairing of the given samples.
func NewCrossCheck(samples []int) *Pairing {
	return &Pairing{Mode: CrossCheck, Query: samples, Reference: samples}
}

// NewRectangular creates a Rectangular pairing.
func NewRectangular(query, reference []int) *Pairing {
	return &Pairing{Mode: Rectangular, Query: query, Reference: reference}
}

// NewExplicit creates an Explicit pairing. The pairs are sorted in
// place.
func NewExplicit(pairs []Pair) *Pairing {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Query != pairs[j].Query {
			return pairs[i].Query < pairs[j].Query
		}
		return pairs[i].Reference < pairs[j].Reference
	})
	return &Pairing{Mode: Explicit, Pairs: pairs}
}

// NPairs returns the number of pairs.
func (p *Pairing) NPairs() int {
	switch p.Mode {
	case CrossCheck:
		n := len(p.Query)
		return n * (n - 1) / 2
	case Rectangular:
		return len(p.Query) * len(p.Reference)
	default:
		return len(p.Pairs)
	}
}

// Columns returns the number of columns of the given row in matrix
// modes.
func (p *Pairing) Columns(row int) int {
	if p.Mode == CrossCheck {
		return row
	}
	return len(p.Reference)
}

// RowStart returns the index of the first pair of the given row in
// matrix modes.
func (p *Pairing) RowStart(row int) int {
	if p.Mode == CrossCheck {
		return row * (row - 1) / 2
	}
	return row * len(p.Reference)
}

// Index returns the pair index of the given row and column in matrix
// modes. In CrossCheck mode, the pair is symmetric, and Index returns
// -1 for row == col.
func (p *Pairing) Index(row, col int) int {
	if p.Mode == CrossCheck {
		switch {
		case col < row:
			return row*(row-1)/2 + col
		case col > row:
			return col*(col-1)/2 + row
		default:
			return -1
		}
	}
	return row*len(p.Reference) + col
}

// Each calls f for every pair in index order.
func (p *Pairing) Each(f func(index int, pair Pair)) {
	if p.Mode == Explicit {
		for i, pair := range p.Pairs {
			f(i, pair)
		}
		return
	}
	index := 0
	for row, query := range p.Query {
		for col := 0; col < p.Columns(row); col++ {
			f(index, Pair{query, p.Reference[col]})
			index++
		}
	}
}
