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

// Accumulators hold the per-pair results, indexed by pair index.
type Accumulators struct {
	Mismatch []uint32
	Compared []uint32
	HWE      []float64 // nil if Hardy-Weinberg scoring is disabled
}

// NewAccumulators allocates the accumulators for npairs pairs.
func NewAccumulators(npairs int, hwe bool) *Accumulators {
	acc := &Accumulators{
		Mismatch: make([]uint32, npairs),
		Compared: make([]uint32, npairs),
	}
	if hwe {
		acc.HWE = make([]float64, npairs)
	}
	return acc
}

// Update records the comparison result of one pair at one site. The
// score is only added on a match.
func (acc *Accumulators) Update(index int, result Result, score float64) {
	switch result {
	case Mismatch:
		acc.Mismatch[index]++
		acc.Compared[index]++
	case Match:
		acc.Compared[index]++
		if acc.HWE != nil {
			acc.HWE[index] += score
		}
	}
}

// Score returns the Hardy-Weinberg score of a pair, or 0 if scoring is
// disabled.
func (acc *Accumulators) Score(index int) float64 {
	if acc.HWE == nil {
		return 0
	}
	return acc.HWE[index]
}

// Discordance returns mismatches / compared sites, and false if no
// sites were compared.
func (acc *Accumulators) Discordance(index int) (float64, bool) {
	if acc.Compared[index] == 0 {
		return 0, false
	}
	return float64(acc.Mismatch[index]) / float64(acc.Compared[index]), true
}
