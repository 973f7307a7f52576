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

// Package gtcheck estimates genotype concordance between samples.
//
// Per-site genotype blocks are compared for every required sample
// pair: all pairs of one file (cross-check), every query sample against
// every reference sample (rectangular), or an explicit pair list.
// Mismatches, compared sites and Hardy-Weinberg scores are accumulated
// per pair. Optionally, the sites that best distinguish the pairs are
// selected with an external sort.
package gtcheck

import (
	"fmt"
	"strings"

	"github.com/exascience/gtcheck/vcf"
)

// Representation is the kind of genotype data used for one side of a
// comparison.
type Representation int

const (
	// HardCall uses the GT tag: two allele indices per sample.
	HardCall Representation = iota
	// Likelihood uses the PL tag: three phred-scaled likelihoods per
	// sample.
	Likelihood
)

func (r Representation) String() string {
	if r == Likelihood {
		return "PL"
	}
	return "GT"
}

// Width returns the number of values per sample.
func (r Representation) Width() int {
	if r == Likelihood {
		return vcf.PLWidth
	}
	return vcf.GTWidth
}

// Blocks returns the genotype blocks of all samples of the variant, or
// nil if they are absent.
func (r Representation) Blocks(v *vcf.Variant) []int32 {
	if r == Likelihood {
		return v.PL
	}
	return v.GT
}

// ParseRepresentation parses a GT or PL tag name.
func ParseRepresentation(tag string) (Representation, error) {
	switch strings.ToUpper(tag) {
	case "GT":
		return HardCall, nil
	case "PL":
		return Likelihood, nil
	default:
		return 0, fmt.Errorf("unsupported tag %v, expected GT or PL", tag)
	}
}

// HardCallDosage returns the number of non-reference alleles in a
// diploid GT block.
func HardCallDosage(block []int32) (dosage int, ok bool) {
	a, b := block[0], block[1]
	if a < 0 || b < 0 {
		// missing allele or truncated vector
		return 0, false
	}
	if a > 0 {
		dosage++
	}
	if b > 0 {
		dosage++
	}
	return dosage, true
}

func likelihoodValid(block []int32) bool {
	for _, value := range block[:vcf.PLWidth] {
		if value == vcf.MissingValue || value == vcf.VectorEnd {
			return false
		}
	}
	return true
}

// minLikelihood returns the first position of the minimum value and
// the value itself.
func minLikelihood(block []int32) (index int, min int32) {
	min = block[0]
	if block[1] < min {
		index, min = 1, block[1]
	}
	if block[2] < min {
		index, min = 2, block[2]
	}
	return
}

// LikelihoodDosage returns the index of the most likely genotype of a
// PL block. Ties resolve to the lowest index.
func LikelihoodDosage(block []int32) (dosage int, ok bool) {
	if !likelihoodValid(block) {
		return 0, false
	}
	dosage, _ = minLikelihood(block)
	return dosage, true
}
