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

package bed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/gtcheck/utils"
)

// Parse parses BED entries from the given reader. Browser, track and
// comment lines are skipped.
func Parse(reader io.Reader) (*Bed, error) {
	bed := NewBed()
	scanner := bufio.NewScanner(reader)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if text == "" ||
			strings.HasPrefix(text, "#") ||
			strings.HasPrefix(text, "track") ||
			strings.HasPrefix(text, "browser") {
			continue
		}
		data := strings.Split(text, "\t")
		if len(data) < 3 {
			return nil, fmt.Errorf("invalid BED line %v: %v", line, text)
		}
		start, err := strconv.ParseInt(data[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%v, in BED line %v", err, line)
		}
		end, err := strconv.ParseInt(data[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%v, in BED line %v", err, line)
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("invalid BED interval in line %v: %v", line, text)
		}
		region := &Region{Chrom: utils.Intern(data[0]), Start: int32(start), End: int32(end)}
		if len(data) > 3 {
			region.Name = data[3]
		}
		AddRegion(bed, region)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// Make sure bed regions are sorted.
	sortRegions(bed)
	return bed, nil
}

// ParseBed parses a BED file, which may be gzip compressed. See
// https://genome.ucsc.edu/FAQ/FAQformat.html#format1
func ParseBed(filename string) (bed *Bed, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()
	reader, err := utils.HandleGzip(bufio.NewReader(file))
	if err != nil {
		return nil, err
	}
	return Parse(reader)
}
