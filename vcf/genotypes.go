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
	"fmt"
	"strconv"
)

// Block widths of decoded genotype data.
const (
	GTWidth = 2
	PLWidth = 3
)

// gtDecoder collects the GT entries of all samples of one line. Calls
// of any ploidy are accepted while decoding; the result is only
// usable when the maximum ploidy is exactly two.
type gtDecoder struct {
	values    []int32
	maxPloidy int
	ref, alt  int
	err       error
}

func (d *gtDecoder) init(nsamples int) {
	d.values = make([]int32, GTWidth*nsamples)
}

func (d *gtDecoder) decode(sample int, gt string) {
	block := d.values[GTWidth*sample : GTWidth*sample+GTWidth]
	block[0], block[1] = MissingValue, VectorEnd
	if gt == "" {
		gt = "."
	}
	ploidy := 0
	for start := 0; start <= len(gt); {
		end := start
		for end < len(gt) && gt[end] != '/' && gt[end] != '|' {
			end++
		}
		allele := gt[start:end]
		start = end + 1
		value := MissingValue
		if allele != "." {
			n, err := strconv.ParseInt(allele, 10, 32)
			if err != nil || n < 0 {
				if d.err == nil {
					d.err = fmt.Errorf("invalid GT allele %q", allele)
				}
				return
			}
			value = int32(n)
			if n == 0 {
				d.ref++
			} else {
				d.alt++
			}
		}
		if ploidy < GTWidth {
			block[ploidy] = value
		}
		ploidy++
	}
	if ploidy > d.maxPloidy {
		d.maxPloidy = ploidy
	}
}

func (d *gtDecoder) result() []int32 {
	if d.maxPloidy != GTWidth {
		return nil
	}
	return d.values
}

// plDecoder collects the PL entries of all samples of one line. The
// result is only usable when the longest vector has exactly three
// entries, that is for biallelic diploid sites.
type plDecoder struct {
	values    []int32
	maxLength int
	err       error
}

func (d *plDecoder) init(nsamples int) {
	d.values = make([]int32, PLWidth*nsamples)
}

func (d *plDecoder) decode(sample int, pl string) {
	block := d.values[PLWidth*sample : PLWidth*sample+PLWidth]
	block[0], block[1], block[2] = MissingValue, VectorEnd, VectorEnd
	if pl == "." || pl == "" {
		if d.maxLength < 1 {
			d.maxLength = 1
		}
		return
	}
	length := 0
	for _, entry := range splitList(pl, ',') {
		value := MissingValue
		if entry != "." {
			n, err := strconv.ParseInt(entry, 10, 32)
			if err != nil {
				if d.err == nil {
					d.err = fmt.Errorf("invalid PL value %q", entry)
				}
				return
			}
			value = int32(n)
		}
		if length < PLWidth {
			block[length] = value
		}
		length++
	}
	if length > d.maxLength {
		d.maxLength = length
	}
}

func (d *plDecoder) result() []int32 {
	if d.maxLength != PLWidth {
		return nil
	}
	return d.values
}

// GTBlock returns the two GT entries of the given sample, or nil.
func (v *Variant) GTBlock(sample int) []int32 {
	if v.GT == nil {
		return nil
	}
	return v.GT[GTWidth*sample : GTWidth*sample+GTWidth]
}

// PLBlock returns the three PL entries of the given sample, or nil.
func (v *Variant) PLBlock(sample int) []int32 {
	if v.PL == nil {
		return nil
	}
	return v.PL[PLWidth*sample : PLWidth*sample+PLWidth]
}

// AlleleCounts returns the number of reference and non-reference
// alleles at this site. INFO/AC and INFO/AN are used when both are
// present, otherwise the decoded GT entries of all samples are
// counted. ok is false when neither source is available.
func (v *Variant) AlleleCounts() (ref, alt int, ok bool) {
	if v.AN >= 0 && v.AC != nil {
		for _, ac := range v.AC {
			alt += int(ac)
		}
		return int(v.AN) - alt, alt, true
	}
	if v.gtCounted {
		return v.gtRef, v.gtAlt, true
	}
	return 0, 0, false
}

// AltAlleleFrequency returns the non-reference allele frequency at
// this site. All alternate alleles are pooled.
func (v *Variant) AltAlleleFrequency() (af float64, ok bool) {
	ref, alt, ok := v.AlleleCounts()
	if !ok || ref+alt <= 0 {
		return 0, false
	}
	return float64(alt) / float64(ref+alt), true
}
