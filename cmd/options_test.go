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
	"bufio"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/exascience/gtcheck/gtcheck"
	"github.com/exascience/gtcheck/vcf"
)

func testHeader(t *testing.T, formats []string, samples string) *vcf.Header {
	data := "##fileformat=VCFv4.2\n"
	for _, format := range formats {
		data += "##FORMAT=<ID=" + format + ",Number=.,Type=String,Description=\"" + format + "\">\n"
	}
	data += "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t" + samples + "\n"
	reader, err := vcf.NewReader(bufio.NewReader(strings.NewReader(data)), false, false)
	if err != nil {
		t.Fatal(err)
	}
	return reader.Header
}

func TestSampleFlag(t *testing.T) {
	var selection sampleSelection
	var flags flag.FlagSet
	flags.Var(sampleFlag{&selection, false}, "samples", "")
	flags.Var(sampleFlag{&selection, true}, "samples-file", "")
	if err := flags.Parse([]string{"--samples", "qry:A,B", "--samples-file", "GT:list.txt"}); err != nil {
		t.Fatal(err)
	}
	if selection.query != "A,B" || selection.queryFile {
		t.Error("query samples failed", selection)
	}
	if selection.reference != "list.txt" || !selection.referenceFile {
		t.Error("genotyped samples failed", selection)
	}
	if err := (sampleFlag{&selection, false}).Set("A,B"); err == nil {
		t.Error("missing prefix accepted")
	}
}

func TestParseCluster(t *testing.T) {
	min, max, err := parseCluster("0.23,-0.3")
	if err != nil || min != 0.23 || max != -0.3 {
		t.Error("parseCluster failed", min, max, err)
	}
	for _, s := range []string{"", "0.23", "a,b", "1,2,3"} {
		if _, _, err := parseCluster(s); err == nil {
			t.Error("parseCluster accepted", s)
		}
	}
}

func TestParseUse(t *testing.T) {
	use, err := parseUse("gt,PL")
	if err != nil || len(use) != 2 || use[0] != gtcheck.HardCall || use[1] != gtcheck.Likelihood {
		t.Error("parseUse failed", use, err)
	}
	if use, err := parseUse(""); err != nil || use != nil {
		t.Error("empty parseUse failed")
	}
	if _, err := parseUse("GP"); err == nil {
		t.Error("parseUse accepted GP")
	}
	if _, err := parseUse("GT,PL,GT"); err == nil {
		t.Error("parseUse accepted three tags")
	}
}

func TestSelectRepresentations(t *testing.T) {
	both := testHeader(t, []string{"GT", "PL"}, "A\tB")
	gtOnly := testHeader(t, []string{"GT"}, "C")
	plOnly := testHeader(t, []string{"PL"}, "D")
	none := testHeader(t, nil, "E")

	if q, r, err := selectRepresentations(nil, both, "q.vcf", both, "g.vcf"); err != nil || q != gtcheck.Likelihood || r != gtcheck.HardCall {
		t.Error("default two-file selection failed", q, r, err)
	}
	if q, r, err := selectRepresentations(nil, gtOnly, "q.vcf", plOnly, "g.vcf"); err != nil || q != gtcheck.HardCall || r != gtcheck.Likelihood {
		t.Error("fallback selection failed", q, r, err)
	}
	if q, r, err := selectRepresentations(nil, both, "q.vcf", nil, ""); err != nil || q != gtcheck.Likelihood || r != gtcheck.Likelihood {
		t.Error("single-file selection failed", q, r, err)
	}
	if q, r, err := selectRepresentations([]gtcheck.Representation{gtcheck.HardCall, gtcheck.Likelihood}, both, "q.vcf", nil, ""); err != nil || q != gtcheck.HardCall || r != gtcheck.Likelihood {
		t.Error("single-file explicit selection failed", q, r, err)
	}
	if _, _, err := selectRepresentations([]gtcheck.Representation{gtcheck.Likelihood}, gtOnly, "q.vcf", nil, ""); err == nil {
		t.Error("undeclared query tag accepted")
	}
	if _, _, err := selectRepresentations([]gtcheck.Representation{gtcheck.HardCall, gtcheck.HardCall}, both, "q.vcf", plOnly, "g.vcf"); err == nil {
		t.Error("undeclared genotypes tag accepted")
	}
	if _, _, err := selectRepresentations(nil, none, "q.vcf", nil, ""); err == nil {
		t.Error("header without GT and PL accepted")
	}
}

func TestBuildPairing(t *testing.T) {
	query := testHeader(t, []string{"GT"}, "A\tB\tC")
	reference := testHeader(t, []string{"GT"}, "X\tY")

	p, err := buildPairing(query, "q.vcf", nil, "", sampleSelection{}, "", false)
	if err != nil || p.Mode != gtcheck.CrossCheck || p.NPairs() != 3 {
		t.Error("cross-check pairing failed", err)
	}

	p, err = buildPairing(query, "q.vcf", nil, "", sampleSelection{query: "C,A"}, "", false)
	if err != nil || p.Mode != gtcheck.CrossCheck || p.NPairs() != 1 || p.Query[0] != 0 || p.Query[1] != 2 {
		t.Error("cross-check subset failed", err)
	}

	p, err = buildPairing(query, "q.vcf", nil, "", sampleSelection{query: "A", reference: "B,C"}, "", false)
	if err != nil || p.Mode != gtcheck.Rectangular || p.NPairs() != 2 {
		t.Error("single-file rectangular pairing failed", err)
	}

	p, err = buildPairing(query, "q.vcf", reference, "g.vcf", sampleSelection{}, "", false)
	if err != nil || p.Mode != gtcheck.Rectangular || p.NPairs() != 6 {
		t.Error("two-file pairing failed", err)
	}

	p, err = buildPairing(query, "q.vcf", reference, "g.vcf", sampleSelection{}, "C,X,A,Y", false)
	if err != nil || p.Mode != gtcheck.Explicit || p.NPairs() != 2 {
		t.Fatal("explicit pairing failed", err)
	}
	if p.Pairs[0] != (gtcheck.Pair{Query: 0, Reference: 1}) || p.Pairs[1] != (gtcheck.Pair{Query: 2, Reference: 0}) {
		t.Error("explicit pairs not sorted", p.Pairs)
	}

	if _, err = buildPairing(query, "q.vcf", reference, "g.vcf", sampleSelection{}, "A,Z", false); err == nil {
		t.Error("unknown genotyped sample accepted")
	}
	if _, err = buildPairing(query, "q.vcf", nil, "", sampleSelection{query: "A,A"}, "", false); err == nil {
		t.Error("duplicate sample accepted")
	}
}

func TestBuildPairingFromFiles(t *testing.T) {
	query := testHeader(t, []string{"GT"}, "A\tB\tC")
	reference := testHeader(t, []string{"GT"}, "X\tY")
	dir := t.TempDir()

	pairsFile := filepath.Join(dir, "pairs.txt")
	if err := os.WriteFile(pairsFile, []byte("B\tY\n\nA X\n"), 0666); err != nil {
		t.Fatal(err)
	}
	p, err := buildPairing(query, "q.vcf", reference, "g.vcf", sampleSelection{}, pairsFile, true)
	if err != nil || p.NPairs() != 2 || p.Pairs[0] != (gtcheck.Pair{Query: 0, Reference: 0}) {
		t.Error("pairs file failed", err)
	}

	samplesFile := filepath.Join(dir, "samples.txt")
	if err := os.WriteFile(samplesFile, []byte("Y\n"), 0666); err != nil {
		t.Fatal(err)
	}
	p, err = buildPairing(query, "q.vcf", reference, "g.vcf", sampleSelection{reference: samplesFile, referenceFile: true}, "", false)
	if err != nil || p.Mode != gtcheck.Rectangular || p.NPairs() != 3 || p.Reference[0] != 1 {
		t.Error("samples file failed", err)
	}
}
