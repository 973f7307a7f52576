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

package intervals

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/exascience/gtcheck/bed"
	"github.com/exascience/gtcheck/utils"
	"github.com/exascience/gtcheck/vcf"
	"github.com/exascience/pargo/parallel"
	"github.com/exascience/pargo/pipeline"
	psort "github.com/exascience/pargo/sort"
)

// Interval is a generic struct with a zero-based, half-open
// start and end position.
type Interval struct {
	Start, End int32
}

// SortByStart sorts a slice of Interval by Start position.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
}

type stableIntervalSorter []Interval

func (s stableIntervalSorter) SequentialSort(i, j int) {
	SortByStart(s[i:j])
}

func (s stableIntervalSorter) NewTemp() psort.StableSorter {
	return stableIntervalSorter(make([]Interval, len(s)))
}

func (s stableIntervalSorter) Len() int {
	return len(s)
}

func (s stableIntervalSorter) Less(i, j int) bool {
	return s[i].Start < s[j].Start
}

func (s stableIntervalSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableIntervalSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelSortByStart sorts a slice of Interval by Start position using
// a parallel stable sort.
func ParallelSortByStart(intervals []Interval) {
	psort.StableSort(stableIntervalSorter(intervals))
}

// Extend makes interval1 larger if it overlaps with interval2,
// by storing max(interval1.End, interval2.End) in interval1.End;
// otherwise, interval1 remains unchanged.
// Returns true if the two intervals overlap, false otherwise.
// interval2.Start >= interval1.Start must be true before
// calling Extend.
func (interval1 *Interval) Extend(interval2 Interval) bool {
	if interval2.Start > interval1.End {
		return false
	}
	if interval2.End > interval1.End {
		interval1.End = interval2.End
	}
	return true
}

// Flatten merges overlapping intervals into larger intervals.
// intervals must be sorted by Start before calling Flatten.
// The resulting slice is sorted by Start, and no two
// intervals in the result overlap with each other.
// The result shares memory with the intervals argument.
func Flatten(intervals []Interval) []Interval {
	for i, n := 0, len(intervals)-1; i < n; i++ {
		if intervals[i].Extend(intervals[i+1]) {
			n++
			for j := i + 1; j < n; j++ {
				if !intervals[i].Extend(intervals[j]) {
					i++
					intervals[i] = intervals[j]
				}
			}
			return intervals[:i+1]
		}
	}
	return intervals
}

const parallelFlattenGrainSize = 0x1000

// ParallelFlatten merges overlapping intervals into larger intervals,
// using a parallel algorithm.
// intervals must be sorted by Start before calling Flatten.
// The resulting slice is sorted by Start, and no two
// intervals in the result overlap with each other.
// The result shares memory with the intervals argument.
func ParallelFlatten(intervals []Interval) []Interval {
	if len(intervals) < parallelFlattenGrainSize {
		return Flatten(intervals)
	}
	half := len(intervals) >> 1
	left, right := intervals[:half], intervals[half:]
	parallel.Do(
		func() { left = ParallelFlatten(left) },
		func() { right = ParallelFlatten(right) },
	)
	for len(right) > 0 && left[len(left)-1].Extend(right[0]) {
		right = right[1:]
	}
	return append(left, right...)
}

// Contains determines whether the zero-based position lies in one of
// the given intervals.
// intervals must be Flattened and sorted by Start.
func Contains(intervals []Interval, pos int32) bool {
	i := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].End > pos
	})
	return i < len(intervals) && intervals[i].Start <= pos
}

// Regions restricts processing to a set of intervals per chromosome.
// A nil Regions contains every position.
type Regions map[utils.Symbol][]Interval

// NewRegions sorts and flattens the given intervals into a region set.
func NewRegions(intervals map[string][]Interval) Regions {
	regions := make(Regions, len(intervals))
	for chrom, ivals := range intervals {
		ParallelSortByStart(ivals)
		regions[utils.Intern(chrom)] = ParallelFlatten(ivals)
	}
	return regions
}

// Contains determines whether the 1-based position on the given
// chromosome lies inside the region set.
func (regions Regions) Contains(chrom utils.Symbol, pos int32) bool {
	if regions == nil {
		return true
	}
	return Contains(regions[chrom], pos-1)
}

// ParseRegions parses a comma-separated list of regions of the form
// chr, chr:beg or chr:beg-end, with 1-based inclusive coordinates.
func ParseRegions(list string) (map[string][]Interval, error) {
	intervals := make(map[string][]Interval)
	for _, entry := range strings.Split(list, ",") {
		if entry == "" {
			continue
		}
		chrom, rng := entry, ""
		if i := strings.LastIndexByte(entry, ':'); i >= 0 {
			chrom, rng = entry[:i], entry[i+1:]
		}
		if chrom == "" {
			return nil, fmt.Errorf("invalid region %v", entry)
		}
		interval := Interval{Start: 0, End: math.MaxInt32}
		if rng != "" {
			beg, end := rng, ""
			hasEnd := false
			if i := strings.IndexByte(rng, '-'); i >= 0 {
				beg, end, hasEnd = rng[:i], rng[i+1:], true
			}
			start, err := strconv.ParseInt(beg, 10, 32)
			if err != nil || start < 1 {
				return nil, fmt.Errorf("invalid start position in region %v", entry)
			}
			interval.Start = int32(start - 1)
			if hasEnd && end != "" {
				stop, err := strconv.ParseInt(end, 10, 32)
				if err != nil || stop < start {
					return nil, fmt.Errorf("invalid end position in region %v", entry)
				}
				interval.End = int32(stop)
			} else if !hasEnd {
				interval.End = int32(start)
			}
		}
		intervals[chrom] = append(intervals[chrom], interval)
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("empty region list %q", list)
	}
	return intervals, nil
}

// ElsitesHeader is the header line that every .elsites file starts with.
const ElsitesHeader = "# elsites format version 1.0\n"

// ToElsitesFile stores intervals in a .elsites file. Chromosomes are
// written in lexicographic order.
func ToElsitesFile(intervals map[string][]Interval, filename string) (err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	output, err := os.Create(pathname)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); nerr != nil {
			if err == nil {
				err = nerr
			}
		}
	}()
	if _, err = output.WriteString(ElsitesHeader); err != nil {
		return err
	}
	chroms := make([]string, 0, len(intervals))
	for chrom := range intervals {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	for _, chrom := range chroms {
		var buf []byte
		for _, ival := range intervals[chrom] {
			buf = append(buf, chrom...)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(ival.Start), 10)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(ival.End), 10)
			buf = append(buf, '\n')
		}
		if _, err := output.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func parseElsitesLine(str string) (chrom string, interval Interval, err error) {
	fields := strings.Split(str, "\t")
	if len(fields) != 3 || fields[0] == "" {
		return "", interval, fmt.Errorf("invalid sites line %v", str)
	}
	start, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return "", interval, err
	}
	end, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return "", interval, err
	}
	return fields[0], Interval{Start: int32(start), End: int32(end)}, nil
}

// FromElsitesFile loads intervals from a .elsites file.
func FromElsitesFile(filename string) (intervals map[string][]Interval, err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := in.Close(); nerr != nil {
			if err == nil {
				err = nerr
			}
		}
	}()
	input := bufio.NewReader(in)
	header, err := input.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if header != ElsitesHeader {
		return nil, fmt.Errorf("%v is not a .elsites file - invalid header", filename)
	}
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(input))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		intervals := make(map[string][]Interval)
		for _, str := range strs {
			if str == "" {
				continue
			}
			chrom, interval, err := parseElsitesLine(str)
			if err != nil {
				p.SetErr(err)
				return intervals
			}
			intervals[chrom] = append(intervals[chrom], interval)
		}
		return intervals
	})))
	intervals = make(map[string][]Interval)
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for chrom, ivals := range data.(map[string][]Interval) {
			intervals[chrom] = append(intervals[chrom], ivals...)
		}
		return data
	})))
	p.Run()
	if err = p.Err(); err != nil {
		return nil, err
	}
	return
}

// FromBed returns the intervals that correspond to the BED file entries.
func FromBed(bed *bed.Bed) (intervals map[string][]Interval) {
	intervals = make(map[string][]Interval)
	for chrom, regions := range bed.RegionMap {
		for _, region := range regions {
			intervals[*chrom] = append(intervals[*chrom], Interval{Start: region.Start, End: region.End})
		}
	}
	return
}

// FromBedFile returns the intervals that correspond to the BED file entries.
func FromBedFile(filename string) (map[string][]Interval, error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	bed, err := bed.ParseBed(pathname)
	if err != nil {
		return nil, err
	}
	return FromBed(bed), nil
}

// FromRegionsFile loads either a .elsites file, recognized by its
// header line, or a BED file.
func FromRegionsFile(filename string) (map[string][]Interval, error) {
	in, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	header, _ := bufio.NewReader(in).ReadString('\n')
	if err := in.Close(); err != nil {
		return nil, err
	}
	if header == ElsitesHeader {
		return FromElsitesFile(filename)
	}
	return FromBedFile(filename)
}

// FromVcfFile returns the intervals that correspond to the VCF file
// entries, each spanning the reference allele.
func FromVcfFile(filename string) (intervals map[string][]Interval, err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	input, err := vcf.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); nerr != nil {
			if err == nil {
				intervals = nil
				err = nerr
			}
		}
	}()
	header, _, err := vcf.ParseHeader(input.Reader)
	if err != nil {
		return nil, err
	}
	variantParser := header.NewVariantParser(false, false)
	variantParser.NSamples = 0 // no need to parse the samples just to retrieve the region information
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(input.Reader))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		intervals := make(map[string][]Interval)
		var sc vcf.StringScanner
		for _, str := range strs {
			if str == "" || str[0] == '#' {
				continue
			}
			sc.Reset(str)
			variant := sc.ParseVariant(variantParser)
			if err := sc.Err(); err != nil {
				p.SetErr(fmt.Errorf("%v, while parsing VCF variant %v", err, str))
				return intervals
			}
			intervals[*variant.Chrom] = append(intervals[*variant.Chrom], Interval{Start: variant.Pos - 1, End: variant.End()})
		}
		return intervals
	})))
	intervals = make(map[string][]Interval)
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for chrom, ivals := range data.(map[string][]Interval) {
			intervals[chrom] = append(intervals[chrom], ivals...)
		}
		return data
	})))
	p.Run()
	if err = p.Err(); err != nil {
		return nil, err
	}
	return
}
