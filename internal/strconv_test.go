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

package internal

import "testing"

func TestParseMemorySize(t *testing.T) {
	for _, test := range []struct {
		in  string
		out int64
	}{
		{"500M", 500 << 20},
		{"1g", 1 << 30},
		{"16k", 16 << 10},
		{"1000", 1000},
		{"0.5K", 512},
	} {
		if n, err := ParseMemorySize(test.in); err != nil || n != test.out {
			t.Error("ParseMemorySize", test.in, "failed:", n, err)
		}
	}
	for _, in := range []string{"", "M", "-5M", "abc", "0"} {
		if _, err := ParseMemorySize(in); err == nil {
			t.Error("ParseMemorySize", in, "should have failed")
		}
	}
}
