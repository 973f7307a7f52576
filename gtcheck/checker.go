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
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/gtcheck/extsort"
	"github.com/exascience/gtcheck/internal"
	"github.com/exascience/gtcheck/intervals"
	"github.com/exascience/gtcheck/vcf"
)

// Config holds the options of a run.
type Config struct {
	Query, Reference Representation
	HomOnly          bool
	HWE              bool

	// NMatches limits the report to the best matches per query sample.
	// 0 reports all pairs, a negative value orders by Hardy-Weinberg
	// score instead of discordance.
	NMatches int

	// DistinctiveSites is a number of pairs, or a fraction of all pairs
	// if <= 1, or 0 if disabled.
	DistinctiveSites float64
	Seed             int64
	TempDir          string
	MaxMemory        int64

	Regions intervals.Regions // nil for all positions
	DryRun  bool
}

// MaxLineSize bounds the length of a VCF data line.
const MaxLineSize = 1 << 30

// pairs per site above which matrix rows are processed in parallel
const parallelPairsGrainSize = 0x4000

var errDryRun = errors.New("dry run")

// A Checker compares the genotypes of sample pairs site by site.
type Checker struct {
	Config
	Pairing          *Pairing
	Comparator       Comparator
	Acc              *Accumulators
	Distinctive      *DistinctiveSites // nil if disabled
	QuerySamples     []string
	ReferenceSamples []string

	sites      int
	hweWarning bool
}

// NewChecker validates the configuration against the pairing and
// allocates the accumulators. Sample names are indexed by column.
func NewChecker(config Config, pairing *Pairing, querySamples, referenceSamples []string) (*Checker, error) {
	npairs := pairing.NPairs()
	if npairs == 0 {
		return nil, fmt.Errorf("no sample pairs to compare (%v)", pairing.Mode)
	}
	if config.NMatches != 0 && pairing.Mode == Explicit {
		return nil, errors.New("the --n-matches option cannot be combined with explicit sample pairs")
	}
	if config.NMatches < 0 && !config.HWE {
		return nil, errors.New("sorting by Hardy-Weinberg score requires HWE scoring")
	}
	if config.DistinctiveSites < 0 {
		return nil, fmt.Errorf("invalid value for --distinctive-sites: %v", config.DistinctiveSites)
	}
	if config.DistinctiveSites > 0 && pairing.Mode != Explicit {
		return nil, errors.New("the option --distinctive-sites requires explicit sample pairs")
	}
	checker := &Checker{
		Config:           config,
		Pairing:          pairing,
		Comparator:       NewComparator(config.Query, config.Reference, config.HomOnly),
		Acc:              NewAccumulators(npairs, config.HWE),
		QuerySamples:     querySamples,
		ReferenceSamples: referenceSamples,
	}
	if config.DistinctiveSites > 0 {
		threshold, err := DistinctiveThreshold(config.DistinctiveSites, npairs)
		if err != nil {
			return nil, err
		}
		checker.Distinctive, err = NewDistinctiveSites(npairs, threshold, internal.NewRand(config.Seed), extsort.Options{
			MaxMemory: config.MaxMemory,
			TempDir:   config.TempDir,
		})
		if err != nil {
			return nil, err
		}
	}
	return checker, nil
}

// Close releases the scratch space of the distinctive sites, if any.
func (c *Checker) Close() error {
	if c.Distinctive != nil {
		return c.Distinctive.Close()
	}
	return nil
}

// Sites returns the number of sites compared so far.
func (c *Checker) Sites() int {
	return c.sites
}

func (c *Checker) hweScores(v *vcf.Variant) *HWEScores {
	if c.Acc.HWE == nil {
		return nil
	}
	af, ok := v.AltAlleleFrequency()
	if !ok {
		if !c.hweWarning {
			log.Printf("No allele counts at %v:%v, such sites get no Hardy-Weinberg score.\n", *v.Chrom, v.Pos)
			c.hweWarning = true
		}
		return nil
	}
	scores := NewHWEScores(af)
	return &scores
}

// Process compares all pairs at one site. In single-file mode,
// reference is nil. It returns false if the site was skipped, because
// it is outside the regions or lacks the required genotype blocks.
func (c *Checker) Process(query, reference *vcf.Variant) (bool, error) {
	if !c.Regions.Contains(query.Chrom, query.Pos) {
		return false, nil
	}
	if reference == nil {
		reference = query
	}
	qblocks := c.Query.Blocks(query)
	rblocks := c.Reference.Blocks(reference)
	if qblocks == nil || rblocks == nil {
		return false, nil
	}
	scores := c.hweScores(reference)
	if c.Pairing.Mode == Explicit {
		if err := c.processPairs(query, qblocks, rblocks, scores); err != nil {
			return true, err
		}
	} else if c.Pairing.NPairs() >= parallelPairsGrainSize {
		parallel.Range(0, len(c.Pairing.Query), 0, func(low, high int) {
			c.processRows(low, high, qblocks, rblocks, scores)
		})
	} else {
		c.processRows(0, len(c.Pairing.Query), qblocks, rblocks, scores)
	}
	c.sites++
	return true, nil
}

// processRows handles the matrix rows [low, high). Rows own disjoint
// ranges of pair indices.
func (c *Checker) processRows(low, high int, qblocks, rblocks []int32, scores *HWEScores) {
	qw, rw := c.Query.Width(), c.Reference.Width()
	for row := low; row < high; row++ {
		q := c.Pairing.Query[row] * qw
		qblock := qblocks[q : q+qw]
		index := c.Pairing.RowStart(row)
		for col, n := 0, c.Pairing.Columns(row); col < n; col++ {
			r := c.Pairing.Reference[col] * rw
			result, dosage := c.Comparator.Compare(qblock, rblocks[r:r+rw])
			var score float64
			if result == Match && scores != nil {
				score = scores[dosage]
			}
			c.Acc.Update(index, result, score)
			index++
		}
	}
}

func (c *Checker) processPairs(query *vcf.Variant, qblocks, rblocks []int32, scores *HWEScores) error {
	qw, rw := c.Query.Width(), c.Reference.Width()
	ds := c.Distinctive
	if ds != nil {
		ds.Reset()
	}
	for index, pair := range c.Pairing.Pairs {
		q, r := pair.Query*qw, pair.Reference*rw
		result, dosage := c.Comparator.Compare(qblocks[q:q+qw], rblocks[r:r+rw])
		var score float64
		switch result {
		case Mismatch:
			if ds != nil {
				ds.Mark(index)
			}
		case Match:
			if scores != nil {
				score = scores[dosage]
			}
		}
		c.Acc.Update(index, result, score)
	}
	if ds != nil {
		return ds.Push(query.Chrom, query.Pos)
	}
	return nil
}

// step processes one site, and reports the time taken by the first
// compared site. It returns true when a dry run should stop.
func (c *Checker) step(query, reference *vcf.Variant, out io.Writer) (bool, error) {
	first := c.sites == 0
	var start time.Time
	if first {
		start = time.Now()
	}
	processed, err := c.Process(query, reference)
	if err != nil || !processed || !first {
		return false, err
	}
	delta := time.Since(start).Seconds()
	log.Printf("Time required to process one record .. %f seconds\n", delta)
	if _, err := fmt.Fprintf(out, "INFO\tTime required to process one record .. %f seconds\n", delta); err != nil {
		return false, err
	}
	return c.DryRun, nil
}

// Run compares all sites of the query input, or, if reference is not
// nil, all sites that occur in both inputs. The timing of the first
// site is written to out.
func (c *Checker) Run(query, reference *vcf.Reader, out io.Writer) error {
	var err error
	if reference == nil {
		err = c.runSingle(query, out)
	} else {
		err = vcf.NewSyncedReader(query, reference).Each(func(q, r *vcf.Variant) error {
			stop, err := c.step(q, r, out)
			if stop {
				return errDryRun
			}
			return err
		})
	}
	if err == errDryRun {
		return nil
	}
	return err
}

// runSingle parses variants in parallel, and processes them in file
// order.
func (c *Checker) runSingle(query *vcf.Reader, out io.Writer) error {
	parser := query.Parser
	scanner := pipeline.NewScanner(query.Input())
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	var p pipeline.Pipeline
	p.Source(scanner)
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		variants := make([]*vcf.Variant, 0, len(strs))
		var sc vcf.StringScanner
		for _, str := range strs {
			if str == "" || str[0] == '#' {
				continue
			}
			sc.Reset(str)
			variant := sc.ParseVariant(parser)
			if err := sc.Err(); err != nil {
				p.SetErr(fmt.Errorf("%v, while parsing VCF variant %v", err, str))
				return variants
			}
			variants = append(variants, variant)
		}
		return variants
	})))
	done := false
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for _, variant := range data.([]*vcf.Variant) {
			if done {
				break
			}
			stop, err := c.step(variant, nil, out)
			if err != nil {
				p.SetErr(err)
				done = true
			} else if stop {
				p.SetErr(errDryRun)
				done = true
			}
		}
		return data
	})))
	p.Run()
	return p.Err()
}
