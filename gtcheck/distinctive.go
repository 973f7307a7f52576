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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/gtcheck/extsort"
	"github.com/exascience/gtcheck/internal"
	"github.com/exascience/gtcheck/utils"
)

// ErrCorrupted is returned when a sorted site record does not hold the
// number of discordant pairs it was stored with.
var ErrCorrupted = errors.New("distinctive sites: corrupted site record")

const siteRecordHeaderSize = 16

// A SiteRecord holds the pairs that are discordant at one site.
type SiteRecord struct {
	Discordant uint32
	Chrom      uint32
	Pos        uint32 // 0-based
	Tiebreak   uint32
	Bits       []uint64
}

func wordsNeeded(npairs int) int {
	return (npairs + 63) / 64
}

// SiteRecordSize returns the encoded size of a SiteRecord for the given
// number of pairs.
func SiteRecordSize(npairs int) int {
	return siteRecordHeaderSize + 8*wordsNeeded(npairs)
}

// Encode stores the record in buf, which must be SiteRecordSize bytes
// long.
func (r *SiteRecord) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], r.Discordant)
	binary.LittleEndian.PutUint32(buf[4:], r.Chrom)
	binary.LittleEndian.PutUint32(buf[8:], r.Pos)
	binary.LittleEndian.PutUint32(buf[12:], r.Tiebreak)
	words := buf[siteRecordHeaderSize:]
	for i := 0; 8*i < len(words); i++ {
		var word uint64
		if i < len(r.Bits) {
			word = r.Bits[i]
		}
		binary.LittleEndian.PutUint64(words[8*i:], word)
	}
}

// Decode loads the record from buf, reusing r.Bits.
func (r *SiteRecord) Decode(buf []byte) {
	r.Discordant = binary.LittleEndian.Uint32(buf[0:])
	r.Chrom = binary.LittleEndian.Uint32(buf[4:])
	r.Pos = binary.LittleEndian.Uint32(buf[8:])
	r.Tiebreak = binary.LittleEndian.Uint32(buf[12:])
	words := buf[siteRecordHeaderSize:]
	n := len(words) / 8
	if cap(r.Bits) < n {
		r.Bits = make([]uint64, n)
	}
	r.Bits = r.Bits[:n]
	for i := range r.Bits {
		r.Bits[i] = binary.LittleEndian.Uint64(words[8*i:])
	}
}

// siteRecordLess orders encoded records by descending discordant count,
// then by ascending tiebreak.
func siteRecordLess(a, b []byte) bool {
	na, nb := binary.LittleEndian.Uint32(a), binary.LittleEndian.Uint32(b)
	if na != nb {
		return na > nb
	}
	return binary.LittleEndian.Uint32(a[12:]) < binary.LittleEndian.Uint32(b[12:])
}

// DistinctiveThreshold converts a --distinctive-sites value into a
// number of pairs. Values up to 1 are a fraction of npairs.
func DistinctiveThreshold(value float64, npairs int) (int, error) {
	var n int
	if value <= 1 {
		n = int(float64(npairs) * value)
	} else {
		n = int(value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("the value for --distinctive-sites was set too low: %v", n)
	}
	if n > npairs {
		log.Printf("The value for --distinctive-sites was set too high, setting to all pairs (%v) instead.\n", npairs)
		n = npairs
	}
	return n, nil
}

// DistinctiveSites collects the discordant pairs of every site, and
// selects the sites that distinguish the pairs in blocks of at least
// Threshold pairs.
type DistinctiveSites struct {
	NPairs    int
	Threshold int

	rand   *internal.Rand
	sorter *extsort.Sorter

	chroms   []utils.Symbol
	chromIDs map[utils.Symbol]uint32

	site   *bitset.BitSet
	record SiteRecord
	buf    []byte
}

// NewDistinctiveSites creates an engine for npairs pairs. The record
// size and order of opts are set here.
func NewDistinctiveSites(npairs, threshold int, rnd *internal.Rand, opts extsort.Options) (*DistinctiveSites, error) {
	opts.RecordSize = SiteRecordSize(npairs)
	opts.Less = siteRecordLess
	sorter, err := extsort.New(opts)
	if err != nil {
		return nil, err
	}
	return &DistinctiveSites{
		NPairs:    npairs,
		Threshold: threshold,
		rand:      rnd,
		sorter:    sorter,
		chromIDs:  make(map[utils.Symbol]uint32),
		site:      bitset.New(uint(npairs)),
		buf:       make([]byte, opts.RecordSize),
	}, nil
}

// Reset starts a new site.
func (ds *DistinctiveSites) Reset() {
	ds.site.ClearAll()
}

// Mark records a discordant pair at the current site.
func (ds *DistinctiveSites) Mark(index int) {
	ds.site.Set(uint(index))
}

func (ds *DistinctiveSites) chromID(chrom utils.Symbol) uint32 {
	id, ok := ds.chromIDs[chrom]
	if !ok {
		id = uint32(len(ds.chroms))
		ds.chroms = append(ds.chroms, chrom)
		ds.chromIDs[chrom] = id
	}
	return id
}

// Push hands the current site to the external sorter, unless no pair
// was discordant. pos is 1-based.
func (ds *DistinctiveSites) Push(chrom utils.Symbol, pos int32) error {
	count := ds.site.Count()
	if count == 0 {
		return nil
	}
	ds.record = SiteRecord{
		Discordant: uint32(count),
		Chrom:      ds.chromID(chrom),
		Pos:        uint32(pos - 1),
		Tiebreak:   ds.rand.Uint32(),
		Bits:       ds.site.Bytes(),
	}
	ds.record.Encode(ds.buf)
	return ds.sorter.Push(ds.buf)
}

// Len returns the number of sites pushed.
func (ds *DistinctiveSites) Len() int64 {
	return ds.sorter.Len()
}

// Drain sorts the sites and calls emit for every site that
// distinguishes pairs not yet distinguished in the current block. pos
// is 1-based, cumulative is the number of pairs distinguished in the
// block so far, and block counts from 0.
func (ds *DistinctiveSites) Drain(emit func(chrom utils.Symbol, pos int32, cumulative, block int) error) error {
	if err := ds.sorter.Sort(); err != nil {
		return err
	}
	seen := bitset.New(uint(64 * wordsNeeded(ds.NPairs)))
	var record SiteRecord
	total, block := 0, 0
	for {
		buf, err := ds.sorter.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		record.Decode(buf)
		bits := bitset.From(record.Bits)
		if bits.Count() != uint(record.Discordant) {
			return ErrCorrupted
		}
		if int(record.Chrom) >= len(ds.chroms) {
			return ErrCorrupted
		}
		n := int(bits.DifferenceCardinality(seen))
		if n == 0 {
			continue
		}
		seen.InPlaceUnion(bits)
		total += n
		if err := emit(ds.chroms[record.Chrom], int32(record.Pos)+1, total, block); err != nil {
			return err
		}
		if total >= ds.Threshold {
			total = 0
			seen.ClearAll()
			block++
		}
	}
}

// Close releases the scratch space of the external sorter.
func (ds *DistinctiveSites) Close() error {
	return ds.sorter.Close()
}
