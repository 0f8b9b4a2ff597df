package audit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/personal-audit/internal/pkg/logger"
)

var (
	errNoColumns       = errors.New("no columns to parse from file")
	errMalformedHeader = errors.New("header row spans multiple lines")
)

// Strategy is one structured attempt at reading the file.
type Strategy struct {
	Name string
	// Encoding picks the encoding to decode with, given the detected one.
	Encoding func(working Encoding) Encoding
	// Lenient tolerates stray quotes and skips rows the reader rejects.
	// A strict strategy fails outright on them.
	Lenient bool
}

func workingEncoding(working Encoding) Encoding { return working }

func fixedEncoding(e Encoding) func(Encoding) Encoding {
	return func(Encoding) Encoding { return e }
}

// Strategies are tried in order; the first that reads the whole file wins.
var Strategies = []Strategy{
	{Name: "working-lenient", Encoding: workingEncoding, Lenient: true},
	{Name: "working-strict", Encoding: workingEncoding, Lenient: false},
	{Name: "latin-1", Encoding: fixedEncoding(Latin1), Lenient: true},
	{Name: "cp1252", Encoding: fixedEncoding(CP1252), Lenient: true},
}

// ManualStrategy names results produced by the header-split fallback.
const ManualStrategy = "manual"

// ParseResult is a table plus how it was obtained.
type ParseResult struct {
	Table    *Table
	Encoding string
	Strategy string
	Skipped  int
}

// Parser turns raw CSV bytes into a Table. Diagnostics for the manual
// fallback are written to out.
type Parser struct {
	out io.Writer
}

// NewParser creates a parser. A nil out discards diagnostics.
func NewParser(out io.Writer) *Parser {
	if out == nil {
		out = io.Discard
	}
	return &Parser{out: out}
}

// Parse runs the structured strategies in order and falls back to reading
// the header line by hand when all of them fail.
func (p *Parser) Parse(data []byte, working Encoding) (*ParseResult, error) {
	for _, s := range Strategies {
		enc := s.Encoding(working)
		res, err := parseStructured(data, enc, s.Lenient)
		if err != nil {
			logger.Debug("parse strategy failed", "strategy", s.Name, "encoding", enc.Name, "error", err)
			continue
		}
		res.Strategy = s.Name
		return res, nil
	}

	fmt.Fprintln(p.out, "All parsing methods failed. Trying manual approach...")
	res, err := p.parseManual(data, working)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return res, nil
}

func parseStructured(data []byte, enc Encoding, lenient bool) (*ParseResult, error) {
	text, err := enc.Decode(data)
	if err != nil {
		return nil, err
	}
	table, skipped, err := readTable(text, nil, lenient)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Table: table, Encoding: enc.Name, Skipped: skipped}, nil
}

func (p *Parser) parseManual(data []byte, working Encoding) (*ParseResult, error) {
	text, err := working.Decode(data)
	if err != nil {
		return nil, err
	}

	headerLine, rest, _ := strings.Cut(text, "\n")
	headerLine = strings.TrimSpace(headerLine)
	if headerLine == "" {
		return nil, errNoColumns
	}

	parts := strings.Split(headerLine, ",")
	names := make([]string, len(parts))
	for i, h := range parts {
		names[i] = strings.Trim(h, `"`)
	}
	fmt.Fprintf(p.out, "Manual headers: %s\n", quoteList(names))

	table, skipped, err := readTable(rest, names, true)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Table: table, Encoding: working.Name, Strategy: ManualStrategy, Skipped: skipped}, nil
}

// readTable reads decoded CSV text. When header is nil the first record is
// the header. Rows wider than the header are skipped; narrower rows are
// padded with nulls.
func readTable(text string, header []string, lenient bool) (*Table, int, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = lenient

	if header == nil {
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				return nil, 0, errNoColumns
			}
			if err != nil {
				return nil, 0, fmt.Errorf("read header: %w", err)
			}
			if isBlank(rec) {
				continue
			}
			// A lazily quoted header can swallow the rest of the file.
			for _, h := range rec {
				if strings.ContainsAny(h, "\r\n") {
					return nil, 0, errMalformedHeader
				}
			}
			header = rec
			break
		}
	}

	table := &Table{Columns: normalizeHeader(header)}
	width := len(table.Columns)
	skipped := 0

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if lenient && errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, 0, err
		}
		if isBlank(rec) {
			continue
		}
		if len(rec) > width {
			skipped++
			continue
		}

		row := make([]Cell, width)
		for i, v := range rec {
			if v != "" {
				row[i] = Text(v)
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if skipped > 0 {
		logger.Warn("skipped malformed lines", "count", skipped)
	}
	return table, skipped, nil
}

func isBlank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}

// normalizeHeader names empty columns "Unnamed: N" and suffixes repeats
// with ".1", ".2" so every column name is unique.
func normalizeHeader(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	counts := make(map[string]int)
	for i, name := range raw {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for seen[name] {
			counts[base]++
			name = fmt.Sprintf("%s.%d", base, counts[base])
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
