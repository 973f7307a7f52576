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

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/exascience/gtcheck/vcf"
)

// ReadList returns the entries of a comma-separated list, or the
// non-empty lines of a file if isFile is true.
func ReadList(list string, isFile bool) (entries []string, err error) {
	if !isFile {
		for _, entry := range strings.Split(list, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				entries = append(entries, entry)
			}
		}
		return entries, nil
	}
	file, err := os.Open(list)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	return entries, scanner.Err()
}

// AllSamples returns the column indices of all samples of a header.
func AllSamples(header *vcf.Header) []int {
	samples := make([]int, header.NSamples())
	for i := range samples {
		samples[i] = i
	}
	return samples
}

// ResolveSamples maps sample names to column indices of the header, in
// ascending order. Unknown and duplicate names are errors.
func ResolveSamples(header *vcf.Header, filename string, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty sample list for %v", filename)
	}
	samples := make([]int, 0, len(names))
	seen := make(map[int]bool, len(names))
	for _, name := range names {
		index := header.SampleIndex(name)
		if index < 0 {
			return nil, fmt.Errorf("no such sample in %v: [%v]", filename, name)
		}
		if seen[index] {
			return nil, fmt.Errorf("duplicate sample in list for %v: [%v]", filename, name)
		}
		seen[index] = true
		samples = append(samples, index)
	}
	sort.Ints(samples)
	return samples, nil
}

// ResolvePairs maps sample name pairs to column indices. From a list,
// the entries alternate between query and reference samples. From a
// file, every entry holds a query and a reference sample separated by
// white space.
func ResolvePairs(query *vcf.Header, queryName string, reference *vcf.Header, referenceName string, entries []string, isFile bool) ([]Pair, error) {
	var names [][2]string
	if isFile {
		for _, entry := range entries {
			fields := strings.Fields(entry)
			if len(fields) != 2 {
				return nil, fmt.Errorf("could not parse sample pair: %v", entry)
			}
			names = append(names, [2]string{fields[0], fields[1]})
		}
	} else {
		if len(entries)%2 != 0 {
			return nil, fmt.Errorf("expected an even number of comma-separated samples in pair list, got %v", len(entries))
		}
		for i := 0; i < len(entries); i += 2 {
			names = append(names, [2]string{entries[i], entries[i+1]})
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("empty pair list")
	}
	pairs := make([]Pair, len(names))
	for i, pair := range names {
		q := query.SampleIndex(pair[0])
		if q < 0 {
			return nil, fmt.Errorf("no such sample in %v: [%v]", queryName, pair[0])
		}
		r := reference.SampleIndex(pair[1])
		if r < 0 {
			return nil, fmt.Errorf("no such sample in %v: [%v]", referenceName, pair[1])
		}
		pairs[i] = Pair{q, r}
	}
	return pairs, nil
}
