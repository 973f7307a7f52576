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
	"bufio"
	"io"
	"strconv"
	"strings"
	"testing"
)

const testVcf = `##fileformat=VCFv4.2
##contig=<ID=chr1,length=1000>
##contig=<ID=chr2,length=1000>
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##INFO=<ID=AN,Number=1,Type=Integer,Description="Total number of alleles">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=PL,Number=G,Type=Integer,Description="Phred-scaled likelihoods">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	A	B	C
chr1	10	.	A	G	50	PASS	AC=3;AN=6	GT:PL	0/0:0,10,100	0|1:10,0,10	1/1:.
chr1	20	rs1	C	T	.	.	.	GT	./.	1	0/1
chr2	5	.	G	A,C	.	.	DP=3	PL:GT	0,1,2,3,4,5:0/2	.:1/1	0,5,9:0/0
`

func newTestReader(t *testing.T, data string, decodeGT, decodePL bool) *Reader {
	reader, err := NewReader(bufio.NewReader(strings.NewReader(data)), decodeGT, decodePL)
	if err != nil {
		t.Fatal(err)
	}
	return reader
}

func blockEqual(block []int32, values ...int32) bool {
	if len(block) != len(values) {
		return false
	}
	for i, v := range values {
		if block[i] != v {
			return false
		}
	}
	return true
}

func TestParseHeader(t *testing.T) {
	reader := newTestReader(t, testVcf, true, true)
	header := reader.Header
	if header.NSamples() != 3 {
		t.Error("NSamples failed")
	}
	if header.SampleIndex("B") != 1 || header.SampleIndex("D") != -1 {
		t.Error("SampleIndex failed")
	}
	if !header.HasFormat(GT) || !header.HasFormat(PL) {
		t.Error("HasFormat failed")
	}
	if len(header.Contigs) != 2 || *header.Contigs[1] != "chr2" {
		t.Error("Contigs failed")
	}
	if len(header.Infos) != 2 || header.Infos[0].Number != NumberA || header.Infos[1].Type != Integer {
		t.Error("INFO parsing failed")
	}
	if header.Formats[1].Number != NumberG || header.Formats[1].Description != "Phred-scaled likelihoods" {
		t.Error("FORMAT parsing failed")
	}
}

func TestParseHeaderErrors(t *testing.T) {
	for _, data := range []string{
		"##fileformat=VCFv4.2\n##INFO=<ID=AC,Type=Integer>\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
		"not a vcf\n",
		"##fileformat=VCFv4.2\n##FORMAT=<ID=GT,Number=1,Type=Nonsense>\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
	} {
		if _, _, err := ParseHeader(bufio.NewReader(strings.NewReader(data))); err == nil {
			t.Error("ParseHeader should have failed for", data)
		}
	}
}

func TestReadVariants(t *testing.T) {
	reader := newTestReader(t, testVcf, true, true)

	v, err := reader.Read()
	if err != nil {
		t.Fatal(err)
	}
	if *v.Chrom != "chr1" || v.Pos != 10 || v.Ref != "A" || len(v.Alt) != 1 {
		t.Error("fixed columns failed")
	}
	if v.AN != 6 || len(v.AC) != 1 || v.AC[0] != 3 {
		t.Error("INFO AC/AN failed")
	}
	if !blockEqual(v.GTBlock(0), 0, 0) || !blockEqual(v.GTBlock(1), 0, 1) || !blockEqual(v.GTBlock(2), 1, 1) {
		t.Error("GT decoding failed")
	}
	if !blockEqual(v.PLBlock(0), 0, 10, 100) || !blockEqual(v.PLBlock(2), MissingValue, VectorEnd, VectorEnd) {
		t.Error("PL decoding failed")
	}
	if ref, alt, ok := v.AlleleCounts(); !ok || ref != 3 || alt != 3 {
		t.Error("AlleleCounts from INFO failed")
	}

	v, err = reader.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !blockEqual(v.GTBlock(0), MissingValue, MissingValue) || !blockEqual(v.GTBlock(1), 1, VectorEnd) {
		t.Error("missing and haploid GT decoding failed")
	}
	if v.PL != nil {
		t.Error("absent PL should be nil")
	}
	if ref, alt, ok := v.AlleleCounts(); !ok || ref != 1 || alt != 2 {
		t.Error("AlleleCounts from GT failed")
	}

	v, err = reader.Read()
	if err != nil {
		t.Fatal(err)
	}
	if v.PL != nil {
		t.Error("multi-allelic PL should be nil")
	}
	if !blockEqual(v.GTBlock(0), 0, 2) {
		t.Error("multi-allelic GT decoding failed")
	}
	if af, ok := v.AltAlleleFrequency(); !ok || af != 0.5 {
		t.Error("AltAlleleFrequency failed", af)
	}

	if _, err = reader.Read(); err != io.EOF {
		t.Error("expected io.EOF")
	}
}

func TestReadTriploid(t *testing.T) {
	data := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tA\tB\n" +
		"chr1\t1\t.\tA\tG\t.\t.\t.\tGT\t0/1/1\t0/0\n"
	reader := newTestReader(t, data, true, false)
	v, err := reader.Read()
	if err != nil {
		t.Fatal(err)
	}
	if v.GT != nil {
		t.Error("triploid GT should be nil")
	}
}

func TestReadMalformed(t *testing.T) {
	data := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tA\tB\n" +
		"chr1\t1\t.\tA\tG\t.\t.\t.\tGT\t0/1\n"
	reader := newTestReader(t, data, true, false)
	if _, err := reader.Read(); err == nil || err == io.EOF {
		t.Error("missing sample column should fail")
	}
}

func TestSyncedReader(t *testing.T) {
	first := `##fileformat=VCFv4.2
##contig=<ID=chr1>
##contig=<ID=chr2>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	A
chr1	10	.	A	G	.	.	.	GT	0/1
chr1	15	.	A	G	.	.	.	GT	0/1
chr2	7	.	A	G	.	.	.	GT	1/1
chr2	9	.	A	G	.	.	.	GT	1/1
`
	second := `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	B
chr1	5	.	A	G	.	.	.	GT	0/0
chr1	10	.	A	G	.	.	.	GT	0/0
chr2	7	.	A	G	.	.	.	GT	0/1
chr2	8	.	A	G	.	.	.	GT	0/1
`
	sr := NewSyncedReader(newTestReader(t, first, true, false), newTestReader(t, second, true, false))
	var positions []int32
	if err := sr.Each(func(a, b *Variant) error {
		if a.Chrom != b.Chrom || a.Pos != b.Pos {
			t.Error("SyncedReader paired different positions")
		}
		positions = append(positions, a.Pos)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(positions) != 2 || positions[0] != 10 || positions[1] != 7 {
		t.Error("SyncedReader failed", positions)
	}
}

func TestSyncedReaderAlleles(t *testing.T) {
	first := `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	A
chr1	100	.	A	G	.	.	.	GT	0/1
chr1	100	.	A	T	.	.	.	GT	1/1
chr1	200	.	C	.	.	.	.	GT	0/0
chr1	300	.	G	A	.	.	.	GT	0/1
chr1	400	.	T	C	.	.	.	GT	0/1
`
	second := `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	B
chr1	100	.	A	T	.	.	.	GT	1/1
chr1	200	.	C	G	.	.	.	GT	0/0
chr1	300	.	GA	G	.	.	.	GT	0/1
chr1	400	.	T	C	.	.	.	GT	0/1
`
	sr := NewSyncedReader(newTestReader(t, first, true, false), newTestReader(t, second, true, false))
	var pairs []string
	if err := sr.Each(func(a, b *Variant) error {
		pairs = append(pairs, strconv.Itoa(int(a.Pos))+":"+a.Ref+">"+strings.Join(a.Alt, ",")+"/"+b.Ref+">"+strings.Join(b.Alt, ","))
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	expected := []string{"100:A>T/A>T", "200:C>/C>G", "400:T>C/T>C"}
	if len(pairs) != len(expected) {
		t.Fatal("SyncedReader allele pairing failed", pairs)
	}
	for i, pair := range pairs {
		if pair != expected[i] {
			t.Error("SyncedReader allele pairing failed", pairs)
			break
		}
	}
}
