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

// gtcheck is a high-performance tool for checking sample identity by
// genotype concordance in .vcf files.
//
// Please see https://github.com/exascience/gtcheck for a documentation
// of the tool, and below (and/or
// https://godoc.org/github.com/ExaScience/gtcheck) for the API
// documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/gtcheck/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: check, vcf-to-elsites, bed-to-elsites")
	fmt.Fprint(os.Stderr, "\n", cmd.CheckHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.VcfToElsitesHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.BedToElsitesHelp)
}

func main() {
	fmt.Fprint(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "check":
		err = cmd.Check()
	case "vcf-to-elsites":
		err = cmd.VcfToElsites()
	case "bed-to-elsites":
		err = cmd.BedToElsites()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
