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

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/exascience/gtcheck/gtcheck"
	"github.com/exascience/gtcheck/vcf"
)

// sampleSelection holds the sample subsets given with qry: and gt:
// prefixes.
type sampleSelection struct {
	query, reference         string
	queryFile, referenceFile bool
}

// sampleFlag is a flag.Value that fills in one side of a sampleSelection,
// depending on the prefix of the value.
type sampleFlag struct {
	selection *sampleSelection
	isFile    bool
}

func (f sampleFlag) String() string {
	return ""
}

func (f sampleFlag) Set(value string) error {
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(lower, "qry:"):
		f.selection.query, f.selection.queryFile = value[4:], f.isFile
	case strings.HasPrefix(lower, "gt:"):
		f.selection.reference, f.selection.referenceFile = value[3:], f.isFile
	default:
		return fmt.Errorf("which samples, query (qry:%v) or genotyped (gt:%v)?", value, value)
	}
	return nil
}

// parseCluster parses the MIN,MAX clustering thresholds.
func parseCluster(s string) (minInterErr, maxIntraErr float64, err error) {
	fields := strings.Split(s, ",")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("could not parse --cluster %v", s)
	}
	if minInterErr, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("could not parse --cluster %v", s)
	}
	if maxIntraErr, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("could not parse --cluster %v", s)
	}
	return minInterErr, maxIntraErr, nil
}

// parseUse parses the TAG1[,TAG2] argument of --use.
func parseUse(s string) ([]gtcheck.Representation, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	if len(fields) > 2 {
		return nil, fmt.Errorf("could not parse --use %v", s)
	}
	use := make([]gtcheck.Representation, len(fields))
	for i, field := range fields {
		r, err := gtcheck.ParseRepresentation(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		use[i] = r
	}
	return use, nil
}

func hasRepresentation(header *vcf.Header, r gtcheck.Representation) bool {
	if r == gtcheck.HardCall {
		return header.HasFormat(vcf.GT)
	}
	return header.HasFormat(vcf.PL)
}

// selectRepresentations determines which tag is compared on either
// side. Without --use, the query prefers PL and the genotyped file GT.
// In single-file mode, reference is nil and the second side defaults
// to the tag of the first.
func selectRepresentations(use []gtcheck.Representation, query *vcf.Header, queryName string, reference *vcf.Header, referenceName string) (q, r gtcheck.Representation, err error) {
	if len(use) > 0 {
		q = use[0]
		if !hasRepresentation(query, q) {
			return q, r, fmt.Errorf("the tag %v is not present in %v", q, queryName)
		}
	} else if query.HasFormat(vcf.PL) {
		q = gtcheck.Likelihood
	} else if query.HasFormat(vcf.GT) {
		q = gtcheck.HardCall
	} else {
		return q, r, fmt.Errorf("neither PL nor GT present in the header of %v", queryName)
	}
	if reference == nil {
		reference, referenceName = query, queryName
		r = q
		if len(use) < 2 {
			return q, r, nil
		}
	}
	if len(use) > 1 {
		r = use[1]
		if !hasRepresentation(reference, r) {
			return q, r, fmt.Errorf("the tag %v is not present in %v", r, referenceName)
		}
	} else if reference.HasFormat(vcf.GT) {
		r = gtcheck.HardCall
	} else if reference.HasFormat(vcf.PL) {
		r = gtcheck.Likelihood
	} else {
		return q, r, fmt.Errorf("neither GT nor PL present in the header of %v", referenceName)
	}
	return q, r, nil
}

func selectSamples(header *vcf.Header, filename, list string, isFile bool) ([]int, error) {
	if list == "" {
		return gtcheck.AllSamples(header), nil
	}
	names, err := gtcheck.ReadList(list, isFile)
	if err != nil {
		return nil, err
	}
	return gtcheck.ResolveSamples(header, filename, names)
}

// buildPairing determines which sample pairs are compared. Explicit
// pairs take precedence. Otherwise, a genotyped file or a gt: subset
// leads to the rectangular query x reference matrix, and a single file
// is cross-checked against itself. In single-file mode, reference is
// nil.
func buildPairing(query *vcf.Header, queryName string, reference *vcf.Header, referenceName string, samples sampleSelection, pairs string, pairsFile bool) (*gtcheck.Pairing, error) {
	twoFiles := reference != nil
	if !twoFiles {
		reference, referenceName = query, queryName
	}
	if pairs != "" {
		entries, err := gtcheck.ReadList(pairs, pairsFile)
		if err != nil {
			return nil, err
		}
		resolved, err := gtcheck.ResolvePairs(query, queryName, reference, referenceName, entries, pairsFile)
		if err != nil {
			return nil, err
		}
		return gtcheck.NewExplicit(resolved), nil
	}
	querySamples, err := selectSamples(query, queryName, samples.query, samples.queryFile)
	if err != nil {
		return nil, err
	}
	if twoFiles || samples.reference != "" {
		referenceSamples, err := selectSamples(reference, referenceName, samples.reference, samples.referenceFile)
		if err != nil {
			return nil, err
		}
		return gtcheck.NewRectangular(querySamples, referenceSamples), nil
	}
	return gtcheck.NewCrossCheck(querySamples), nil
}
