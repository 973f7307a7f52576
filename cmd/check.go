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
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/exascience/gtcheck/gtcheck"
	"github.com/exascience/gtcheck/internal"
	"github.com/exascience/gtcheck/intervals"
	"github.com/exascience/gtcheck/vcf"
)

// CheckHelp is the help string for this command.
const CheckHelp = "\ncheck parameters:\n" +
	"gtcheck check vcf-file\n" +
	"[--genotypes vcf-file]\n" +
	"[--use tag1[,tag2]]\n" +
	"[--homs-only]\n" +
	"[--samples [qry|gt]:list]\n" +
	"[--samples-file [qry|gt]:file]\n" +
	"[--pairs list]\n" +
	"[--pairs-file file]\n" +
	"[--n-matches nr]\n" +
	"[--no-HWE-prob]\n" +
	"[--distinctive-sites nr]\n" +
	"[--seed nr]\n" +
	"[--tmp-dir path]\n" +
	"[--max-mem size]\n" +
	"[--regions list]\n" +
	"[--regions-file file]\n" +
	"[--cluster min,max]\n" +
	"[--dry-run]\n" +
	"[--output file]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

func openVcf(filename string) (*vcf.InputFile, *vcf.Reader, error) {
	input, err := vcf.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	reader, err := vcf.NewReader(input.Reader, false, false)
	if err != nil {
		_ = input.Close()
		return nil, nil, fmt.Errorf("%v, while reading the header of %v", err, filename)
	}
	return input, reader, nil
}

func closeInput(input *vcf.InputFile, err *error) {
	if input == nil {
		return
	}
	if nerr := input.Close(); *err == nil {
		*err = nerr
	}
}

// Check implements the gtcheck check command.
func Check() (err error) {
	var (
		genotypes            string
		use                  string
		homsOnly             bool
		samples              sampleSelection
		pairs, pairsFile     string
		nMatches             int
		noHWEProb            bool
		distinctiveSites     float64
		seed                 int64
		tmpDir, maxMem       string
		regions, regionsFile string
		cluster              string
		dryRun               bool
		output               string
		nrOfThreads          int
		timed                bool
		profile              string
		logPath              string
	)

	var flags flag.FlagSet

	flags.StringVar(&genotypes, "genotypes", "", "genotypes to compare against")
	flags.StringVar(&use, "use", "", "which tag to use in the query file (tag1) and in the genotypes file (tag2), GT or PL")
	flags.BoolVar(&homsOnly, "homs-only", false, "compare homozygous genotypes only, useful with low coverage data (requires --genotypes)")
	flags.Var(sampleFlag{&samples, false}, "samples", "comma-separated list of query (qry:) or genotyped (gt:) samples")
	flags.Var(sampleFlag{&samples, true}, "samples-file", "file with query (qry:) or genotyped (gt:) samples, one per line")
	flags.StringVar(&pairs, "pairs", "", "comma-separated sample pairs to compare (qry,gt[,qry,gt..])")
	flags.StringVar(&pairsFile, "pairs-file", "", "file with tab-delimited sample pairs to compare (qry,gt)")
	flags.IntVar(&nMatches, "n-matches", 0, "print only the top matches for each query sample, sorted by Hardy-Weinberg score if negative")
	flags.BoolVar(&noHWEProb, "no-HWE-prob", false, "disable calculation of HWE probability")
	flags.Float64Var(&distinctiveSites, "distinctive-sites", 0, "find sites that can distinguish between at least this many sample pairs, or this fraction of pairs if <= 1")
	flags.Int64Var(&seed, "seed", 1, "random seed for breaking ties among distinctive sites")
	flags.StringVar(&tmpDir, "tmp-dir", "", "directory for temporary files of the distinctive sites sort")
	flags.StringVar(&maxMem, "max-mem", "500M", "maximum memory for the distinctive sites sort")
	flags.StringVar(&regions, "regions", "", "comma-separated list of regions chr, chr:beg or chr:beg-end")
	flags.StringVar(&regionsFile, "regions-file", "", "restrict to regions listed in a bed or elsites file")
	flags.StringVar(&cluster, "cluster", "0.23,-0.3", "min inter-sample and max intra-sample error, passed on to the output")
	flags.BoolVar(&dryRun, "dry-run", false, "stop after the first record to estimate the required time")
	flags.StringVar(&output, "output", "", "write the output to a file (default stdout)")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 3, CheckHelp)

	input := getFilename(os.Args[2], CheckHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if genotypes != "" && !checkExist("--genotypes", genotypes) {
		sanityChecksFailed = true
	}
	if pairs != "" && pairsFile != "" {
		log.Println("Error: Only one of --pairs and --pairs-file can be given.")
		sanityChecksFailed = true
	}
	if pairsFile != "" {
		if checkExist("--pairs-file", pairsFile) {
			pairs = pairsFile
		} else {
			sanityChecksFailed = true
		}
	}
	if pairs != "" && (samples.query != "" || samples.reference != "") {
		log.Println("Error: The --pairs option cannot be combined with --samples or --samples-file.")
		sanityChecksFailed = true
	}
	if pairs != "" && nMatches != 0 {
		log.Println("Error: The --pairs option cannot be combined with --n-matches.")
		sanityChecksFailed = true
	}
	if distinctiveSites != 0 && pairs == "" {
		log.Println("Error: The --distinctive-sites option requires --pairs or --pairs-file.")
		sanityChecksFailed = true
	}
	if distinctiveSites < 0 {
		log.Printf("Error: Invalid value for --distinctive-sites: %v.\n", distinctiveSites)
		sanityChecksFailed = true
	}
	if homsOnly && genotypes == "" {
		log.Println("Error: The --homs-only option requires --genotypes.")
		sanityChecksFailed = true
	}
	if nMatches < 0 && noHWEProb {
		log.Println("Error: Sorting by Hardy-Weinberg score with a negative --n-matches cannot be combined with --no-HWE-prob.")
		sanityChecksFailed = true
	}
	useTags, err := parseUse(use)
	if err != nil {
		log.Printf("Error: %v.\n", err)
		sanityChecksFailed = true
	}
	maxMemory, err := internal.ParseMemorySize(maxMem)
	if err != nil {
		log.Printf("Error: %v for command line parameter --max-mem.\n", err)
		sanityChecksFailed = true
	}
	if tmpDir != "" && !checkDir("--tmp-dir", tmpDir) {
		sanityChecksFailed = true
	}
	if regions != "" && regionsFile != "" {
		log.Println("Error: Only one of --regions and --regions-file can be given.")
		sanityChecksFailed = true
	}
	if regionsFile != "" && !checkExist("--regions-file", regionsFile) {
		sanityChecksFailed = true
	}
	minInterErr, maxIntraErr, err := parseCluster(cluster)
	if err != nil {
		log.Printf("Error: %v.\n", err)
		sanityChecksFailed = true
	}
	if output != "" && output != "-" && !checkCreate("--output", output) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, CheckHelp)
		os.Exit(1)
	}

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}

	// opening inputs

	queryInput, queryReader, err := openVcf(input)
	if err != nil {
		return err
	}
	defer closeInput(queryInput, &err)

	var referenceInput *vcf.InputFile
	var referenceReader *vcf.Reader
	var referenceHeader *vcf.Header
	if genotypes != "" {
		referenceInput, referenceReader, err = openVcf(genotypes)
		if err != nil {
			return err
		}
		defer closeInput(referenceInput, &err)
		referenceHeader = referenceReader.Header
	}

	queryRepr, referenceRepr, err := selectRepresentations(useTags, queryReader.Header, input, referenceHeader, genotypes)
	if err != nil {
		return err
	}
	hwe := !noHWEProb
	if referenceReader == nil {
		queryReader.Parser.DecodeGT = queryRepr == gtcheck.HardCall || referenceRepr == gtcheck.HardCall || hwe
		queryReader.Parser.DecodePL = queryRepr == gtcheck.Likelihood || referenceRepr == gtcheck.Likelihood
	} else {
		queryReader.Parser.DecodeGT = queryRepr == gtcheck.HardCall
		queryReader.Parser.DecodePL = queryRepr == gtcheck.Likelihood
		referenceReader.Parser.DecodeGT = referenceRepr == gtcheck.HardCall || hwe
		referenceReader.Parser.DecodePL = referenceRepr == gtcheck.Likelihood
	}

	pairing, err := buildPairing(queryReader.Header, input, referenceHeader, genotypes, samples, pairs, pairsFile != "")
	if err != nil {
		return err
	}

	config := gtcheck.Config{
		Query:            queryRepr,
		Reference:        referenceRepr,
		HomOnly:          homsOnly,
		HWE:              hwe,
		NMatches:         nMatches,
		DistinctiveSites: distinctiveSites,
		Seed:             seed,
		TempDir:          tmpDir,
		MaxMemory:        maxMemory,
		DryRun:           dryRun,
	}

	if regions != "" || regionsFile != "" {
		var inter map[string][]intervals.Interval
		if regions != "" {
			inter, err = intervals.ParseRegions(regions)
		} else {
			inter, err = intervals.FromRegionsFile(regionsFile)
		}
		if err != nil {
			return err
		}
		config.Regions = intervals.NewRegions(inter)
	}

	referenceSamples := queryReader.Header.Samples()
	if referenceHeader != nil {
		referenceSamples = referenceHeader.Samples()
	}
	checker, err := gtcheck.NewChecker(config, pairing, queryReader.Header.Samples(), referenceSamples)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := checker.Close(); err == nil {
			err = nerr
		}
	}()

	// executing command

	var out io.Writer = os.Stdout
	if output != "" && output != "-" {
		file, ferr := os.Create(output)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if nerr := file.Close(); err == nil {
				err = nerr
			}
		}()
		out = file
	}
	buf := bufio.NewWriter(out)
	defer func() {
		if nerr := buf.Flush(); err == nil {
			err = nerr
		}
	}()

	log.Printf("Comparing %v with %v (%v, %v sample pairs, %v vs %v).\n", input, describeGenotypes(genotypes), pairing.Mode, pairing.NPairs(), queryRepr, referenceRepr)
	if checker.Distinctive != nil {
		log.Printf("Selecting distinctive sites in blocks of %v pairs, sorting with %v bytes of memory.\n", checker.Distinctive.Threshold, maxMemory)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err = gtcheck.WriteHeader(buf, os.Args, cwd, minInterErr, maxIntraErr); err != nil {
		return err
	}

	err = timedRun(timed, profile, "Comparing genotypes.", 1, func() error {
		return checker.Run(queryReader, referenceReader, buf)
	})
	if err != nil {
		return err
	}
	log.Printf("Compared %v sites.\n", checker.Sites())
	if dryRun {
		return nil
	}
	return timedRun(timed, profile, "Writing report.", 2, func() error {
		return checker.Report(buf)
	})
}

func describeGenotypes(genotypes string) string {
	if genotypes == "" {
		return "itself"
	}
	return genotypes
}
