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
	"bytes"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/exascience/gtcheck/intervals"
	"github.com/exascience/gtcheck/vcf"
)

func testReader(t *testing.T, samples string, sites ...string) *vcf.Reader {
	data := "##fileformat=VCFv4.2\n" +
		"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n" +
		"##FORMAT=<ID=PL,Number=G,Type=Integer,Description=\"Phred-scaled likelihoods\">\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t" + samples + "\n" +
		strings.Join(sites, "\n") + "\n"
	reader, err := vcf.NewReader(bufio.NewReader(strings.NewReader(data)), true, true)
	if err != nil {
		t.Fatal(err)
	}
	return reader
}

func site(chrom string, pos int, genotypes ...string) string {
	return chrom + "\t" + strconv.Itoa(pos) + "\t.\tA\tG\t.\t.\t.\tGT\t" + strings.Join(genotypes, "\t")
}

func run(t *testing.T, config Config, pairing *Pairing, query, reference *vcf.Reader) (*Checker, string) {
	referenceSamples := query.Header.Samples()
	if reference != nil {
		referenceSamples = reference.Header.Samples()
	}
	checker, err := NewChecker(config, pairing, query.Header.Samples(), referenceSamples)
	if err != nil {
		t.Fatal(err)
	}
	defer checker.Close()
	var out bytes.Buffer
	if err := checker.Run(query, reference, &out); err != nil {
		t.Fatal(err)
	}
	if !config.DryRun {
		if err := checker.Report(&out); err != nil {
			t.Fatal(err)
		}
	}
	return checker, out.String()
}

func checkInvariant(t *testing.T, acc *Accumulators) {
	for i := range acc.Mismatch {
		if acc.Mismatch[i] > acc.Compared[i] {
			t.Error("more mismatches than compared sites for pair", i)
		}
	}
}

func TestTwoFileHardCalls(t *testing.T) {
	query := testReader(t, "Q", site("chr1", 1, "0/0"), site("chr1", 2, "0/1"), site("chr1", 3, "1/1"))
	reference := testReader(t, "R", site("chr1", 1, "0/0"), site("chr1", 2, "0/0"), site("chr1", 3, "1/1"))
	checker, out := run(t, Config{}, NewRectangular([]int{0}, []int{0}), query, reference)
	if checker.Acc.Mismatch[0] != 1 || checker.Acc.Compared[0] != 3 {
		t.Error("two file comparison failed", checker.Acc.Mismatch[0], checker.Acc.Compared[0])
	}
	if !strings.Contains(out, "\nDC\tQ\tR\t1\t0.000000e+00\t3\n") {
		t.Error("DC line failed", out)
	}
	if !strings.Contains(out, "INFO\tTime required to process one record .. ") {
		t.Error("INFO line failed", out)
	}
}

func TestHomOnlyExplicitPair(t *testing.T) {
	sites := func() (*vcf.Reader, *vcf.Reader) {
		return testReader(t, "Q1\tQ2",
				site("chr1", 1, "0/1", "0/0"),
				site("chr1", 2, "0/0", "0/0"),
				site("chr1", 3, "1/1", "0/0")),
			testReader(t, "R1\tR2",
				site("chr1", 1, "0/0", "0/1"),
				site("chr1", 2, "0/0", "1/1"),
				site("chr1", 3, "0/0", "1/1"))
	}
	query, reference := sites()
	checker, _ := run(t, Config{HomOnly: true}, NewExplicit([]Pair{{0, 1}}), query, reference)
	if checker.Acc.Mismatch[0] != 1 || checker.Acc.Compared[0] != 2 {
		t.Error("homozygous-only comparison failed", checker.Acc.Mismatch[0], checker.Acc.Compared[0])
	}
	query, reference = sites()
	checker, _ = run(t, Config{}, NewExplicit([]Pair{{0, 1}}), query, reference)
	if checker.Acc.Mismatch[0] != 1 || checker.Acc.Compared[0] != 3 {
		t.Error("comparison without homozygous-only filter failed")
	}
}

var crossCheckSites = []string{
	site("chr1", 1, "0/0", "0/0", "1/1", "./."),
	site("chr1", 2, "0/1", "0/1", "0/1", "0/0"),
	site("chr1", 3, "1/1", "1/1", "0/0", "0/0"),
}

func TestCrossCheck(t *testing.T) {
	query := testReader(t, "A\tB\tC\tD", crossCheckSites...)
	checker, out := run(t, Config{HWE: true}, NewCrossCheck([]int{0, 1, 2, 3}), query, nil)
	checkInvariant(t, checker.Acc)
	mismatch := []uint32{0, 2, 2, 2, 2, 1}
	compared := []uint32{3, 3, 3, 2, 2, 2}
	for i := range mismatch {
		if checker.Acc.Mismatch[i] != mismatch[i] || checker.Acc.Compared[i] != compared[i] {
			t.Error("cross-check counts failed for pair", i)
		}
	}
	if checker.Acc.HWE[0] <= 0 || checker.Acc.HWE[3] != 0 {
		t.Error("HWE accumulation failed", checker.Acc.HWE)
	}
	if checker.Sites() != 3 {
		t.Error("Sites failed")
	}
	if strings.Count(out, "\nDC\t") != 6 || !strings.Contains(out, "\nDC\tB\tA\t0\t") {
		t.Error("cross-check report failed", out)
	}
}

func TestTopMatches(t *testing.T) {
	query := testReader(t, "A\tB\tC\tD", crossCheckSites...)
	_, out := run(t, Config{NMatches: 1}, NewCrossCheck([]int{0, 1, 2, 3}), query, nil)
	for _, line := range []string{
		"DC\tA\tB\t0\t0.000000e+00\t3\n",
		"DC\tB\tA\t0\t0.000000e+00\t3\n",
		"DC\tC\tD\t1\t0.000000e+00\t2\n",
		"DC\tD\tC\t1\t0.000000e+00\t2\n",
	} {
		if !strings.Contains(out, line) {
			t.Error("top match missing:", line)
		}
	}
	if strings.Count(out, "\nDC\t") != 4 {
		t.Error("top matches reported too many pairs", out)
	}

	query = testReader(t, "A\tB\tC\tD", crossCheckSites...)
	_, out = run(t, Config{NMatches: 3}, NewCrossCheck([]int{0, 1, 2, 3}), query, nil)
	if strings.Count(out, "\nDC\t") != 6 {
		t.Error("top matches should report all pairs when candidates <= K", out)
	}
}

func TestDryRun(t *testing.T) {
	query := testReader(t, "A\tB\tC\tD", crossCheckSites...)
	checker, out := run(t, Config{DryRun: true}, NewCrossCheck([]int{0, 1, 2, 3}), query, nil)
	if checker.Sites() != 1 {
		t.Error("dry run processed", checker.Sites(), "sites")
	}
	if !strings.HasPrefix(out, "INFO\t") || strings.Contains(out, "DC") {
		t.Error("dry run output failed", out)
	}
}

func TestRegions(t *testing.T) {
	list, err := intervals.ParseRegions("chr1:2-3")
	if err != nil {
		t.Fatal(err)
	}
	query := testReader(t, "A\tB\tC\tD", crossCheckSites...)
	checker, _ := run(t, Config{Regions: intervals.NewRegions(list)}, NewCrossCheck([]int{0, 1, 2, 3}), query, nil)
	if checker.Sites() != 2 || checker.Acc.Compared[0] != 2 {
		t.Error("region filter failed")
	}
}

func TestLikelihoodsSkipMissingTag(t *testing.T) {
	query := testReader(t, "A\tB",
		"chr1\t1\t.\tA\tG\t.\t.\t.\tGT:PL\t0/0:0,10,100\t0/1:10,0,10",
		"chr1\t2\t.\tA\tG\t.\t.\t.\tGT\t0/0\t0/0",
		"chr1\t3\t.\tA\tG\t.\t.\t.\tPL\t0,10,100\t0,20,100")
	checker, _ := run(t, Config{Query: Likelihood, Reference: Likelihood}, NewCrossCheck([]int{0, 1}), query, nil)
	if checker.Sites() != 2 || checker.Acc.Mismatch[0] != 1 || checker.Acc.Compared[0] != 2 {
		t.Error("likelihood cross-check failed")
	}
}

func distinctiveRun(t *testing.T, seed int64) string {
	query := testReader(t, "Q1\tQ2\tQ3",
		site("chr1", 1, "0/0", "0/1", "1/1"),
		site("chr1", 2, "0/0", "0/0", "1/1"),
		site("chr1", 3, "0/1", "0/0", "0/0"),
		site("chr2", 4, "0/0", "1/1", "0/0"),
		site("chr2", 5, "1/1", "1/1", "1/1"))
	reference := testReader(t, "R1\tR2",
		site("chr1", 1, "0/0", "0/0"),
		site("chr1", 2, "0/0", "1/1"),
		site("chr1", 3, "0/0", "0/0"),
		site("chr2", 4, "0/0", "0/0"),
		site("chr2", 5, "0/0", "1/1"))
	pairs := []Pair{{0, 0}, {1, 0}, {2, 1}, {2, 0}}
	_, out := run(t, Config{DistinctiveSites: 1, Seed: seed, TempDir: t.TempDir()}, NewExplicit(pairs), query, reference)
	i := strings.Index(out, "\nDC\t")
	if i < 0 || !strings.Contains(out, "\nDS\t") {
		t.Fatal("distinctive sites report failed", out)
	}
	// the timing line differs between runs
	return out[i:]
}

func TestDistinctiveSitesReproducible(t *testing.T) {
	first := distinctiveRun(t, 7)
	second := distinctiveRun(t, 7)
	if first != second {
		t.Error("identical seeds produced different output")
	}
	// every pair is discordant somewhere, so block 0 distinguishes all
	// four pairs
	last := ""
	for _, line := range strings.Split(first, "\n") {
		if strings.HasPrefix(line, "DS\t") && strings.HasSuffix(line, "\t0") {
			last = line
		}
	}
	if fields := strings.Split(last, "\t"); len(fields) != 5 || fields[3] != "4" {
		t.Error("first block should distinguish all pairs", first)
	}
}

func TestConfigErrors(t *testing.T) {
	if _, err := NewChecker(Config{NMatches: 2}, NewExplicit([]Pair{{0, 0}}), []string{"A"}, []string{"B"}); err == nil {
		t.Error("n-matches with pairs should fail")
	}
	if _, err := NewChecker(Config{DistinctiveSites: 1}, NewCrossCheck([]int{0, 1}), []string{"A", "B"}, []string{"A", "B"}); err == nil {
		t.Error("distinctive sites without pairs should fail")
	}
	if _, err := NewChecker(Config{NMatches: -1}, NewCrossCheck([]int{0, 1}), []string{"A", "B"}, []string{"A", "B"}); err == nil {
		t.Error("sorting by HWE score without HWE should fail")
	}
	if _, err := NewChecker(Config{}, NewCrossCheck([]int{0}), []string{"A"}, []string{"A"}); err == nil {
		t.Error("cross-check of one sample should fail")
	}
}

func TestParallelRowsMatchSequential(t *testing.T) {
	const nSamples = 200
	names := make([]string, nSamples)
	all := make([]int, nSamples)
	for i := range names {
		names[i] = "S" + strconv.Itoa(i)
		all[i] = i
	}
	rnd := rand.New(rand.NewSource(7))
	genotypes := []string{"0/0", "0/1", "1/1", "./."}
	var sites []string
	for pos := 1; pos <= 20; pos++ {
		gts := make([]string, nSamples)
		for i := range gts {
			gts[i] = genotypes[rnd.Intn(len(genotypes))]
		}
		sites = append(sites, site("chr1", pos, gts...))
	}
	samples := strings.Join(names, "\t")

	newChecker := func() *Checker {
		checker, err := NewChecker(Config{HWE: true}, NewCrossCheck(all), names, names)
		if err != nil {
			t.Fatal(err)
		}
		return checker
	}
	each := func(f func(v *vcf.Variant)) {
		reader := testReader(t, samples, sites...)
		for {
			v, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			f(v)
		}
	}

	par := newChecker()
	defer par.Close()
	if par.Pairing.NPairs() < parallelPairsGrainSize {
		t.Fatal("too few pairs for parallel rows", par.Pairing.NPairs())
	}
	each(func(v *vcf.Variant) {
		if ok, err := par.Process(v, nil); err != nil || !ok {
			t.Fatal("Process failed", ok, err)
		}
	})

	seq := newChecker()
	defer seq.Close()
	each(func(v *vcf.Variant) {
		seq.processRows(0, len(seq.Pairing.Query), seq.Query.Blocks(v), seq.Reference.Blocks(v), seq.hweScores(v))
	})

	compared := false
	for i := range seq.Acc.Compared {
		if par.Acc.Mismatch[i] != seq.Acc.Mismatch[i] || par.Acc.Compared[i] != seq.Acc.Compared[i] || par.Acc.HWE[i] != seq.Acc.HWE[i] {
			t.Error("parallel rows failed for pair", i)
			break
		}
		if seq.Acc.Compared[i] > 0 {
			compared = true
		}
	}
	if !compared {
		t.Error("no pairs compared")
	}
	checkInvariant(t, par.Acc)
}
