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

import "testing"

func TestCrossCheckIndex(t *testing.T) {
	p := NewCrossCheck([]int{0, 1, 2, 3})
	if p.NPairs() != 6 {
		t.Error("NPairs failed")
	}
	expected := []Pair{{1, 0}, {2, 0}, {2, 1}, {3, 0}, {3, 1}, {3, 2}}
	n := 0
	p.Each(func(index int, pair Pair) {
		if index != n || pair != expected[n] {
			t.Error("Each failed at", n)
		}
		if p.Index(pair.Query, pair.Reference) != index || p.Index(pair.Reference, pair.Query) != index {
			t.Error("Index failed for", pair)
		}
		n++
	})
	if n != 6 {
		t.Error("Each enumerated", n, "pairs")
	}
	if p.Index(2, 2) != -1 {
		t.Error("Index of self pair failed")
	}
}

func TestCrossCheckSubset(t *testing.T) {
	p := NewCrossCheck([]int{1, 4, 6})
	var pairs []Pair
	p.Each(func(_ int, pair Pair) {
		pairs = append(pairs, pair)
	})
	if len(pairs) != 3 || pairs[0] != (Pair{4, 1}) || pairs[2] != (Pair{6, 4}) {
		t.Error("subset enumeration failed", pairs)
	}
}

func TestRectangularIndex(t *testing.T) {
	p := NewRectangular([]int{0, 2}, []int{0, 1, 2})
	if p.NPairs() != 6 {
		t.Error("NPairs failed")
	}
	p.Each(func(index int, pair Pair) {
		row := 0
		if pair.Query == 2 {
			row = 1
		}
		if index != row*3+pair.Reference || p.Index(row, pair.Reference) != index {
			t.Error("rectangular index failed for", pair)
		}
	})
	if p.RowStart(1) != 3 || p.Columns(1) != 3 {
		t.Error("row layout failed")
	}
}

func TestExplicitOrder(t *testing.T) {
	p := NewExplicit([]Pair{{2, 0}, {0, 3}, {0, 1}, {2, 0}})
	expected := []Pair{{0, 1}, {0, 3}, {2, 0}, {2, 0}}
	if p.NPairs() != 4 {
		t.Error("NPairs failed")
	}
	p.Each(func(index int, pair Pair) {
		if pair != expected[index] {
			t.Error("explicit order failed at", index)
		}
	})
}
