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

import "math"

// MinAlleleFrequency keeps allele frequencies away from 0 and 1.
const MinAlleleFrequency = 1e-3

// HWEScores are the negative log probabilities of dosages 0, 1 and 2
// under Hardy-Weinberg equilibrium.
type HWEScores [3]float64

// NewHWEScores computes the scores for the given alternate allele
// frequency.
func NewHWEScores(af float64) HWEScores {
	const eps = MinAlleleFrequency
	alt, ref := af, 1-af
	if alt < eps {
		alt = eps
	} else if alt > 1-eps {
		alt = 1 - eps
	}
	if ref < eps {
		ref = eps
	} else if ref > 1-eps {
		ref = 1 - eps
	}
	return HWEScores{
		-math.Log(math.Max(af, eps) * math.Max(af, eps)),
		-math.Log(2 * alt * ref),
		-math.Log(math.Max(1-af, eps) * math.Max(1-af, eps)),
	}
}
