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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/gtcheck/utils"
)

const (
	descriptionKey = "Description"
	idKey          = "ID"
	numberKey      = "Number"
	typeKey        = "Type"
)

// ParseMetaField parses a VCF meta field
func (sc *StringScanner) ParseMetaField() (key, value string) {
	if sc.err != nil {
		return
	}
	sc.SkipSpace()
	start := sc.index
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == '=') {
			break
		}
	}
	key = sc.data[start:sc.index]
	sc.SkipSpace()
	if sc.index >= len(sc.data) || sc.data[sc.index] != '=' {
		sc.err = fmt.Errorf("invalid key=pair pair in a VCF meta-information line: %v", sc.data)
		return
	}
	sc.index++
	start = sc.index
	if sc.index < len(sc.data) && sc.data[sc.index] == '"' {
		sc.index++
		var buf strings.Builder
		for ; sc.index < len(sc.data); sc.index++ {
			switch sc.data[sc.index] {
			case '"':
				sc.index++
				return key, buf.String()
			case '\\':
				sc.index++
			}
			if sc.index < len(sc.data) {
				_ = buf.WriteByte(sc.data[sc.index])
			}
		}
		sc.err = fmt.Errorf("missing closing \" in a VCF meta-information line: %v", sc.data)
		return key, buf.String()
	}
	for ; sc.index < len(sc.data); sc.index++ {
		if c := sc.data[sc.index]; (c == ' ') || (c == ',') || (c == '>') {
			return key, sc.data[start:sc.index]
		}
	}
	sc.err = fmt.Errorf("missing closing > in a VCF meta-information line: %v", sc.data)
	return key, sc.data[start:]
}

// parseFields parses the <key=value,...> part of a structured meta
// line and calls set for each field.
func (sc *StringScanner) parseFields(set func(key, value string)) {
	if sc.index >= len(sc.data) || sc.data[sc.index] != '<' {
		sc.err = fmt.Errorf("missing open angle bracket in a VCF meta-information line: %v", sc.data)
		return
	}
	sc.index++
	for sc.err == nil {
		key, value := sc.ParseMetaField()
		if sc.err != nil {
			return
		}
		set(key, value)
		sc.SkipSpace()
		if sc.index < len(sc.data) {
			if c := sc.data[sc.index]; c == ',' {
				sc.index++
				continue
			} else if c == '>' {
				sc.index++
				return
			}
		}
		if sc.err == nil {
			sc.err = fmt.Errorf("invalid syntax in a VCF meta-information line: %v", sc.data)
		}
	}
}

// ParseMetaInformation parses VCF meta information
func (sc *StringScanner) ParseMetaInformation() interface{} {
	if sc.err != nil {
		return nil
	}
	if sc.index >= len(sc.data) || sc.data[sc.index] != '<' {
		start := sc.index
		sc.index = len(sc.data)
		return sc.data[start:]
	}
	meta := NewMetaInformation()
	sc.parseFields(func(key, value string) {
		switch key {
		case idKey:
			if meta.ID != nil {
				sc.err = fmt.Errorf("multiple IDs in a VCF meta-information line: %v", sc.data)
			} else {
				meta.ID = utils.Intern(value)
			}
		case descriptionKey:
			meta.Description = value
		default:
			if _, found := meta.Fields[key]; found {
				sc.err = fmt.Errorf("duplicate field key %v in a VCF meta-information line: %v", key, sc.data)
			} else {
				meta.Fields[key] = value
			}
		}
	})
	if meta.ID == nil && sc.err == nil {
		sc.err = fmt.Errorf("missing ID in a VCF meta-information line: %v", sc.data)
	}
	return meta
}

func parseNumber(value string) (int32, error) {
	switch value {
	case "a", "A":
		return NumberA, nil
	case "r", "R":
		return NumberR, nil
	case "g", "G":
		return NumberG, nil
	case ".":
		return NumberDot, nil
	default:
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return InvalidNumber, err
		}
		return int32(n), nil
	}
}

func parseType(value string) Type {
	switch value {
	case "Integer":
		return Integer
	case "Float":
		return Float
	case "Flag":
		return Flag
	case "Character":
		return Character
	case "String":
		return String
	default:
		return InvalidType
	}
}

// ParseFormatInformation parses VCF format information
func (sc *StringScanner) ParseFormatInformation() *FormatInformation {
	if sc.err != nil {
		return nil
	}
	format := NewFormatInformation()
	sc.parseFields(func(key, value string) {
		switch key {
		case idKey:
			if format.ID != nil {
				sc.err = fmt.Errorf("multiple IDs in a VCF INFO/FORMAT meta-information line: %v", sc.data)
			} else {
				format.ID = utils.Intern(value)
			}
		case descriptionKey:
			format.Description = value
		case numberKey:
			n, err := parseNumber(value)
			if err != nil {
				sc.err = err
			}
			format.Number = n
		case typeKey:
			if format.Type = parseType(value); format.Type == InvalidType {
				sc.err = fmt.Errorf("unknown type in a VCF INFO/FORMAT meta-information line: %v", sc.data)
			}
		default:
			format.Fields[key] = value
		}
	})
	if sc.err != nil {
		return nil
	}
	switch {
	case format.ID == nil:
		sc.err = fmt.Errorf("missing ID in a VCF INFO/FORMAT meta-information line: %v", sc.data)
	case format.Number <= InvalidNumber:
		sc.err = fmt.Errorf("missing number entry in a VCF INFO/FORMAT meta-information line: %v", sc.data)
	case format.Type == InvalidType:
		sc.err = fmt.Errorf("missing type in a VCF INFO/FORMAT meta-information line: %v", sc.data)
	}
	return format
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	switch {
	case err == nil:
		line = line[:len(line)-1]
	case err == io.EOF && line != "":
		err = nil
	}
	return strings.TrimSuffix(line, "\r"), err
}

// ParseHeader parses a VCF header
func ParseHeader(reader *bufio.Reader) (hdr *Header, lines int, err error) {
	line, err := getLine(reader)
	if err != nil {
		return nil, 0, err
	}
	lines++
	if !strings.HasPrefix(line, fileFormatVersionLinePrefix) {
		return nil, 0, errors.New("invalid first line in a VCF file")
	}
	hdr = NewHeader()
	hdr.FileFormat = line
	var sc StringScanner
	for {
		if data, e := reader.Peek(2); e != nil || data[0] != '#' {
			return nil, 0, errors.New("unexpected end of VCF header")
		} else if data[1] != '#' {
			break
		}
		line, err = getLine(reader)
		if err != nil {
			return nil, 0, err
		}
		lines++
		sc.Reset(line[2:])
		key, found := sc.readUntilByte('=')
		switch {
		case !found:
			return nil, 0, errors.New("invalid syntax in a VCF header")
		case key == "fileformat":
			return nil, 0, errors.New("multiple file format meta-information lines in a VCF file")
		case key == "INFO":
			hdr.Infos = append(hdr.Infos, sc.ParseFormatInformation())
		case key == "FORMAT":
			hdr.Formats = append(hdr.Formats, sc.ParseFormatInformation())
		default:
			meta := sc.ParseMetaInformation()
			if m, ok := meta.(*MetaInformation); ok && key == "contig" {
				hdr.Contigs = append(hdr.Contigs, m.ID)
			}
			hdr.Meta[key] = append(hdr.Meta[key], meta)
		}
		if sc.err != nil {
			return nil, 0, sc.err
		}
	}
	line, err = getLine(reader)
	if err != nil {
		return nil, 0, err
	}
	lines++
	sc.Reset(line[1:])
	for sc.Len() > 0 {
		column, _ := sc.readUntilByte('\t')
		hdr.Columns = append(hdr.Columns, column)
	}
	if len(hdr.Columns) < len(DefaultHeaderColumns) {
		return nil, 0, fmt.Errorf("invalid VCF column header line: %v", line)
	}
	return hdr, lines, nil
}

// VariantParser is an optimized parser for VCF variant lines.
//
// Only the GT and PL tags that are requested are decoded. NSamples
// can be set to zero to skip the sample columns altogether.
type VariantParser struct {
	NSamples           int
	DecodeGT, DecodePL bool
}

// NewVariantParser creates a VariantParser for the given VCF header.
func (header *Header) NewVariantParser(decodeGT, decodePL bool) *VariantParser {
	return &VariantParser{
		NSamples: header.NSamples(),
		DecodeGT: decodeGT,
		DecodePL: decodePL,
	}
}

func (sc *StringScanner) missingTab() {
	if sc.err == nil {
		sc.err = errors.New("missing tabulator in VCF data line")
	}
}

func (sc *StringScanner) doField() string {
	value, ok := sc.readUntilByte('\t')
	if !ok {
		sc.missingTab()
	}
	return value
}

func (sc *StringScanner) doInt32() int32 {
	value := sc.doField()
	if value == "." {
		return -1
	}
	i, err := strconv.ParseInt(value, 10, 32)
	if err != nil && sc.err == nil {
		sc.err = err
	}
	return int32(i)
}

func splitList(value string, separator byte) (result []string) {
	if value == "." || value == "" {
		return nil
	}
	for {
		i := strings.IndexByte(value, separator)
		if i < 0 {
			return append(result, value)
		}
		result = append(result, value[:i])
		value = value[i+1:]
	}
}

func (sc *StringScanner) doInfo(variant *Variant) {
	info, _ := sc.readUntilByte('\t')
	variant.AN = -1
	if info == "." {
		return
	}
	for len(info) > 0 {
		entry := info
		if i := strings.IndexByte(info, ';'); i >= 0 {
			entry, info = info[:i], info[i+1:]
		} else {
			info = ""
		}
		switch {
		case strings.HasPrefix(entry, "AN="):
			if n, err := strconv.ParseInt(entry[3:], 10, 32); err == nil {
				variant.AN = int32(n)
			}
		case strings.HasPrefix(entry, "AC="):
			values := splitList(entry[3:], ',')
			counts := make([]int32, 0, len(values))
			for _, value := range values {
				n, err := strconv.ParseInt(value, 10, 32)
				if err != nil {
					counts = nil
					break
				}
				counts = append(counts, int32(n))
			}
			variant.AC = counts
		}
	}
}

// formatIndex returns the positions of the GT and PL tags in the
// FORMAT column, or -1.
func formatIndex(format string) (gt, pl int) {
	gt, pl = -1, -1
	for i := 0; len(format) > 0; i++ {
		key := format
		if j := strings.IndexByte(format, ':'); j >= 0 {
			key, format = format[:j], format[j+1:]
		} else {
			format = ""
		}
		switch key {
		case *GT:
			gt = i
		case *PL:
			pl = i
		}
	}
	return
}

// subField returns the i-th ':'-separated entry of a sample column,
// or "." if the column has fewer entries.
func subField(sample string, i int) string {
	for ; i > 0; i-- {
		j := strings.IndexByte(sample, ':')
		if j < 0 {
			return "."
		}
		sample = sample[j+1:]
	}
	if j := strings.IndexByte(sample, ':'); j >= 0 {
		return sample[:j]
	}
	return sample
}

// ParseVariant parses a VCF variant line
func (sc *StringScanner) ParseVariant(vp *VariantParser) *Variant {
	var variant Variant
	variant.Chrom = utils.Intern(sc.doField())
	variant.Pos = sc.doInt32()
	sc.doField() // ID
	variant.Ref = sc.doField()
	variant.Alt = splitList(sc.doField(), ',')
	sc.doField() // QUAL
	sc.doField() // FILTER
	sc.doInfo(&variant)
	if sc.err != nil {
		return nil
	}
	if vp.NSamples == 0 || !(vp.DecodeGT || vp.DecodePL) {
		return &variant
	}
	if sc.index >= len(sc.data) {
		return &variant
	}
	gtIndex, plIndex := formatIndex(sc.doField())
	if !vp.DecodeGT {
		gtIndex = -1
	}
	if !vp.DecodePL {
		plIndex = -1
	}
	if gtIndex < 0 && plIndex < 0 {
		return &variant
	}
	var gts gtDecoder
	var pls plDecoder
	if gtIndex >= 0 {
		gts.init(vp.NSamples)
	}
	if plIndex >= 0 {
		pls.init(vp.NSamples)
	}
	for i := 0; i < vp.NSamples; i++ {
		if sc.err != nil {
			return nil
		}
		if sc.index >= len(sc.data) {
			sc.err = fmt.Errorf("expected %v sample columns, found %v", vp.NSamples, i)
			return nil
		}
		sample, _ := sc.readUntilByte('\t')
		if gtIndex >= 0 {
			gts.decode(i, subField(sample, gtIndex))
		}
		if plIndex >= 0 {
			pls.decode(i, subField(sample, plIndex))
		}
	}
	if gtIndex >= 0 {
		if gts.err != nil {
			sc.err = gts.err
			return nil
		}
		variant.GT = gts.result()
		variant.gtRef, variant.gtAlt, variant.gtCounted = gts.ref, gts.alt, true
	}
	if plIndex >= 0 {
		if pls.err != nil {
			sc.err = pls.err
			return nil
		}
		variant.PL = pls.result()
	}
	return &variant
}

// InputFile represents a VCF file for input, possibly gzip or BGZF
// compressed.
type InputFile struct {
	rc io.ReadCloser
	*bufio.Reader
}

// Open a VCF file for input.
//
// Compressed input is detected by its first byte, not by the file
// extension. If the name is "-" or "/dev/stdin", then the input is read
// from os.Stdin.
func Open(name string) (*InputFile, error) {
	var rc io.ReadCloser
	if name == "-" || name == "/dev/stdin" {
		rc = os.Stdin
	} else {
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		rc = file
	}
	reader, err := utils.HandleGzip(bufio.NewReader(rc))
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("%v, while opening %v", err, name)
	}
	if buf, ok := reader.(*bufio.Reader); ok {
		return &InputFile{rc, buf}, nil
	}
	return &InputFile{rc, bufio.NewReaderSize(reader, 1<<16)}, nil
}

// Close the VCF input file.
func (input *InputFile) Close() error {
	if input.rc != os.Stdin {
		return input.rc.Close()
	}
	return nil
}

// A Reader parses variants one by one from a VCF input.
type Reader struct {
	Header *Header
	Parser *VariantParser
	input  *bufio.Reader
	sc     StringScanner
	line   int
}

// NewReader parses the header of the given input and prepares for
// reading variants. The GT and PL tags are decoded as requested.
func NewReader(input *bufio.Reader, decodeGT, decodePL bool) (*Reader, error) {
	header, lines, err := ParseHeader(input)
	if err != nil {
		return nil, err
	}
	return &Reader{
		Header: header,
		Parser: header.NewVariantParser(decodeGT, decodePL),
		input:  input,
		line:   lines,
	}, nil
}

// Input returns the buffered input positioned after the header.
func (r *Reader) Input() *bufio.Reader {
	return r.input
}

// Read returns the next variant, or io.EOF when the input is
// exhausted.
func (r *Reader) Read() (*Variant, error) {
	for {
		line, err := getLine(r.input)
		if err != nil {
			return nil, err
		}
		r.line++
		if line == "" || line[0] == '#' {
			continue
		}
		r.sc.Reset(line)
		variant := r.sc.ParseVariant(r.Parser)
		if err := r.sc.Err(); err != nil {
			return nil, fmt.Errorf("%v, while parsing VCF line %v", err, r.line)
		}
		return variant, nil
	}
}
