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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/exascience/gtcheck/utils"
)

// WriteHeader writes the comment block that identifies a run.
func WriteHeader(out io.Writer, args []string, cwd string, minInterErr, maxIntraErr float64) error {
	_, err := fmt.Fprintf(out,
		"# This file was produced by %v %v, the command line was:\n"+
			"# \t %v\n"+
			"# and the working directory was:\n"+
			"# \t %v\n"+
			"# Clustering thresholds (min inter-sample, max intra-sample error): %g,%g\n#\n",
		utils.ProgramName, utils.ProgramVersion, strings.Join(args, " "), cwd, minInterErr, maxIntraErr)
	return err
}

const discordanceHeader = "# DC, discordance:\n" +
	"#     - query sample\n" +
	"#     - genotyped sample\n" +
	"#     - discordance (number of mismatches; smaller is better)\n" +
	"#     - negative log of HWE probability at matching sites (bigger is better)\n" +
	"#     - number of sites compared (bigger is better)\n" +
	"#DC\t[2]Query Sample\t[3]Genotyped Sample\t[4]Discordance\t[5]-log P(HWE)\t[6]Number of sites compared\n"

const distinctiveSitesHeader = "# DS, distinctive sites:\n" +
	"#     - chromosome\n" +
	"#     - position\n" +
	"#     - cumulative number of pairs distinguished by this block\n" +
	"#     - block id\n" +
	"#DS\t[2]Chromosome\t[3]Position\t[4]Cumulative number of distinct pairs\t[5]Block id\n"

// Report writes the discordance of the pairs, followed by the
// distinctive sites if enabled.
func (c *Checker) Report(out io.Writer) error {
	if err := c.reportDiscordance(out); err != nil {
		return err
	}
	if c.Distinctive != nil {
		return c.reportDistinctiveSites(out)
	}
	return nil
}

func (c *Checker) writePair(out io.Writer, index int, pair Pair) error {
	_, err := fmt.Fprintf(out, "DC\t%v\t%v\t%v\t%e\t%v\n",
		c.QuerySamples[pair.Query],
		c.ReferenceSamples[pair.Reference],
		c.Acc.Mismatch[index],
		c.Acc.Score(index),
		c.Acc.Compared[index])
	return err
}

type candidate struct {
	col, index int
}

// candidates returns the reference columns a query row is compared
// with, and their pair indices.
func (c *Checker) candidates(row int) []candidate {
	var result []candidate
	for col := range c.Pairing.Reference {
		if index := c.Pairing.Index(row, col); index >= 0 {
			result = append(result, candidate{col, index})
		}
	}
	return result
}

func (c *Checker) sortCandidates(candidates []candidate) {
	acc := c.Acc
	if c.NMatches < 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return acc.Score(candidates[i].index) > acc.Score(candidates[j].index)
		})
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di, oki := acc.Discordance(candidates[i].index)
		dj, okj := acc.Discordance(candidates[j].index)
		if oki != okj {
			return oki
		}
		return di < dj
	})
}

func (c *Checker) reportDiscordance(out io.Writer) (err error) {
	if _, err = io.WriteString(out, discordanceHeader); err != nil {
		return err
	}
	top := c.NMatches
	if top < 0 {
		top = -top
	}
	ncandidates := len(c.Pairing.Reference)
	if c.Pairing.Mode == CrossCheck {
		ncandidates--
	}
	if top == 0 || c.Pairing.Mode == Explicit || ncandidates <= top {
		c.Pairing.Each(func(index int, pair Pair) {
			if err == nil {
				err = c.writePair(out, index, pair)
			}
		})
		return err
	}
	for row, query := range c.Pairing.Query {
		candidates := c.candidates(row)
		c.sortCandidates(candidates)
		for _, cand := range candidates[:top] {
			if err := c.writePair(out, cand.index, Pair{query, c.Pairing.Reference[cand.col]}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Checker) reportDistinctiveSites(out io.Writer) error {
	if _, err := io.WriteString(out, distinctiveSitesHeader); err != nil {
		return err
	}
	return c.Distinctive.Drain(func(chrom utils.Symbol, pos int32, cumulative, block int) error {
		_, err := fmt.Fprintf(out, "DS\t%v\t%v\t%v\t%v\n", *chrom, pos, cumulative, block)
		return err
	})
}
