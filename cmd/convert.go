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
	"flag"
	"log"
	"os"

	"github.com/exascience/gtcheck/intervals"
)

// VcfToElsitesHelp is the help string for this command.
const VcfToElsitesHelp = "vcf-to-elsites parameters:\n" +
	"gtcheck vcf-to-elsites vcf-file elsites-file\n" +
	"[--log-path path]\n"

// VcfToElsites implements the gtcheck vcf-to-elsites command.
func VcfToElsites() error {
	var logPath string

	var flags flag.FlagSet
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(&flags, 4, VcfToElsitesHelp)

	input := getFilename(os.Args[2], VcfToElsitesHelp)
	output := getFilename(os.Args[3], VcfToElsitesHelp)

	setLogOutput(logPath)

	inter, err := intervals.FromVcfFile(input)
	if err != nil {
		return err
	}
	return writeElsites(inter, output)
}

// BedToElsitesHelp is the help string for this command.
const BedToElsitesHelp = "\nbed-to-elsites parameters:\n" +
	"gtcheck bed-to-elsites bed-file elsites-file\n" +
	"[--log-path path]\n"

// BedToElsites implements the gtcheck bed-to-elsites command.
func BedToElsites() error {
	var logPath string

	var flags flag.FlagSet
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(&flags, 4, BedToElsitesHelp)

	input := getFilename(os.Args[2], BedToElsitesHelp)
	output := getFilename(os.Args[3], BedToElsitesHelp)

	setLogOutput(logPath)

	inter, err := intervals.FromBedFile(input)
	if err != nil {
		return err
	}
	return writeElsites(inter, output)
}

func writeElsites(inter map[string][]intervals.Interval, output string) error {
	n := 0
	for chrom, ivals := range inter {
		intervals.ParallelSortByStart(ivals)
		inter[chrom] = intervals.ParallelFlatten(ivals)
		n += len(inter[chrom])
	}
	log.Printf("Writing %v intervals on %v chromosomes to %v.\n", n, len(inter), output)
	return intervals.ToElsitesFile(inter, output)
}
