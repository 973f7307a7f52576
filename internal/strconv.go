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

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMemorySize parses a byte count with an optional K, M or G
// suffix (powers of 1024), as in "500M".
func ParseMemorySize(s string) (int64, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	shift := uint(0)
	switch str[len(str)-1] {
	case 'k', 'K':
		shift = 10
	case 'm', 'M':
		shift = 20
	case 'g', 'G':
		shift = 30
	}
	if shift > 0 {
		str = str[:len(str)-1]
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	return int64(value * float64(int64(1)<<shift)), nil
}
