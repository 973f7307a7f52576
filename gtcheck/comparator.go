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

// Result is the outcome of comparing the genotypes of one sample pair
// at one site.
type Result int8

const (
	// NoData means one side is missing or filtered; nothing is counted.
	NoData Result = iota
	// Match means both sides agree.
	Match
	// Mismatch means both sides disagree.
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "no data"
	}
}

type comparison int8

const (
	compareGTGT comparison = iota
	compareGTPL
	comparePLGT
	comparePLPL
)

// A Comparator compares a query genotype block with a reference
// genotype block. The combination of representations is fixed when the
// Comparator is created.
type Comparator struct {
	Query, Reference Representation
	// HomOnly skips pairs where the reference side is heterozygous.
	HomOnly bool
	kind    comparison
}

// NewComparator creates a Comparator for the given representations.
func NewComparator(query, reference Representation, homOnly bool) Comparator {
	var kind comparison
	switch {
	case query == HardCall && reference == HardCall:
		kind = compareGTGT
	case query == HardCall:
		kind = compareGTPL
	case reference == HardCall:
		kind = comparePLGT
	default:
		kind = comparePLPL
	}
	return Comparator{Query: query, Reference: reference, HomOnly: homOnly, kind: kind}
}

// Compare compares two genotype blocks. It also returns the dosage of
// the query side, which selects the Hardy-Weinberg score of a match.
//
// With HomOnly on a PL reference, the reference is considered
// heterozygous when its second likelihood equals the minimum, even if
// an earlier likelihood is equally small.
func (c Comparator) Compare(query, reference []int32) (Result, int) {
	switch c.kind {
	case compareGTGT:
		return c.compareGTGT(query, reference)
	case compareGTPL:
		return c.compareGTPL(query, reference)
	case comparePLGT:
		return c.comparePLGT(query, reference)
	default:
		return c.comparePLPL(query, reference)
	}
}

func (c Comparator) compareGTGT(query, reference []int32) (Result, int) {
	a, ok := HardCallDosage(query)
	if !ok {
		return NoData, 0
	}
	b, ok := HardCallDosage(reference)
	if !ok || (c.HomOnly && b == 1) {
		return NoData, 0
	}
	if a == b {
		return Match, a
	}
	return Mismatch, a
}

func (c Comparator) compareGTPL(query, reference []int32) (Result, int) {
	a, ok := HardCallDosage(query)
	if !ok || !likelihoodValid(reference) {
		return NoData, 0
	}
	_, min := minLikelihood(reference)
	if c.HomOnly && reference[1] == min {
		return NoData, 0
	}
	if reference[a] == min {
		return Match, a
	}
	return Mismatch, a
}

func (c Comparator) comparePLGT(query, reference []int32) (Result, int) {
	if !likelihoodValid(query) {
		return NoData, 0
	}
	b, ok := HardCallDosage(reference)
	if !ok || (c.HomOnly && b == 1) {
		return NoData, 0
	}
	a, min := minLikelihood(query)
	if query[b] == min {
		return Match, a
	}
	return Mismatch, a
}

func (c Comparator) comparePLPL(query, reference []int32) (Result, int) {
	if !likelihoodValid(query) || !likelihoodValid(reference) {
		return NoData, 0
	}
	_, bmin := minLikelihood(reference)
	if c.HomOnly && reference[1] == bmin {
		return NoData, 0
	}
	a, amin := minLikelihood(query)
	for k := 0; k < 3; k++ {
		if query[k] == amin && reference[k] == bmin {
			return Match, a
		}
	}
	return Mismatch, a
}
