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
	"math"

	"github.com/exascience/gtcheck/utils"
)

// The supported VCF file format version prefix.
const fileFormatVersionLinePrefix = "##fileformat=VCFv4."

// DefaultHeaderColumns for VCF files.
var DefaultHeaderColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Type is an enumeration type for different VCF field types
type Type uint

// The different VCF field types
const (
	InvalidType Type = iota
	Integer
	Float
	Flag
	Character
	String
)

// Constants for format information Number entries.
const (
	NumberA int32 = -1 * (1 + iota)
	NumberR
	NumberG
	NumberDot
	InvalidNumber
)

// Sentinels used in decoded GT and PL blocks.
const (
	// MissingValue marks a missing allele or likelihood ('.').
	MissingValue int32 = math.MinInt32
	// VectorEnd marks the padding of a vector that is shorter than
	// the block width, for example the second allele of a haploid call.
	VectorEnd int32 = math.MinInt32 + 1
)

// Commonly used VCF entries.
var (
	GT = utils.Intern("GT")
	PL = utils.Intern("PL")
	AC = utils.Intern("AC")
	AN = utils.Intern("AN")
)

type (
	// MetaInformation in VCF files.
	MetaInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Fields      map[string]string
	}

	// FormatInformation in VCF files.
	FormatInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Number      int32  // > InvalidNumber
		Type        Type
		Fields      map[string]string
	}

	// Header section of a VCF files.
	Header struct {
		FileFormat string
		Infos      []*FormatInformation
		Formats    []*FormatInformation
		Contigs    []utils.Symbol
		Meta       map[string][]interface{} // string or *MetaInformation
		Columns    []string
	}

	// Variant holds the parts of a VCF data line needed for genotype
	// comparisons.
	Variant struct {
		Chrom utils.Symbol
		Pos   int32 // 1-based, < 0 if unknown
		Ref   string
		Alt   []string // nil/empty if missing

		// INFO/AC and INFO/AN, nil and -1 if absent.
		AC []int32
		AN int32

		// GT holds two alleles per sample, PL three likelihoods per
		// sample. Either is nil if the tag was not decoded, is absent at
		// this site, or does not have diploid shape.
		GT []int32
		PL []int32

		// allele counts over all decoded GT entries, whatever the ploidy
		gtRef, gtAlt int
		gtCounted    bool
	}
)

// NewMetaInformation creates an empty instance.
func NewMetaInformation() *MetaInformation {
	return &MetaInformation{Fields: make(map[string]string)}
}

// NewFormatInformation creates an empty instance.
func NewFormatInformation() *FormatInformation {
	return &FormatInformation{Number: InvalidNumber, Fields: make(map[string]string)}
}

// NewHeader creates an empty instance.
func NewHeader() *Header {
	return &Header{
		Meta: make(map[string][]interface{}),
	}
}

// Samples returns the sample names of the header, in file order.
func (header *Header) Samples() []string {
	if len(header.Columns) <= len(DefaultHeaderColumns)+1 {
		return nil
	}
	return header.Columns[len(DefaultHeaderColumns)+1:]
}

// NSamples returns the number of sample columns.
func (header *Header) NSamples() int {
	return len(header.Samples())
}

// SampleIndex returns the column index of the named sample, or -1.
func (header *Header) SampleIndex(name string) int {
	for i, sample := range header.Samples() {
		if sample == name {
			return i
		}
	}
	return -1
}

// HasFormat determines whether a ##FORMAT line declares the given tag.
func (header *Header) HasFormat(id utils.Symbol) bool {
	for _, format := range header.Formats {
		if format.ID == id {
			return true
		}
	}
	return false
}

// End returns the end position of a VCF line in the reference,
// determined by len(v.Ref).
func (v *Variant) End() int32 {
	return v.Pos - 1 + int32(len(v.Ref))
}
