package audit

import (
	"fmt"
	"io"
	"time"

	"github.com/ignite/personal-audit/internal/pkg/logger"
)

// Options configures an Auditor. Zero values fall back to the defaults.
type Options struct {
	StatusColumn string
	OutputColumn string
	ExtraDomains []string
	// Encoding, when set, names the working encoding and skips detection.
	Encoding string
	// Diagnostics receives the plain-text messages printed during parsing.
	Diagnostics io.Writer
}

// Auditor runs the detect, parse, validate and classify pipeline over one
// file held in memory.
type Auditor struct {
	statusColumn string
	outputColumn string
	encoding     string
	parser       *Parser
	classifier   *Classifier
}

// NewAuditor creates an auditor from opts.
func NewAuditor(opts Options) *Auditor {
	if opts.StatusColumn == "" {
		opts.StatusColumn = DefaultStatusColumn
	}
	if opts.OutputColumn == "" {
		opts.OutputColumn = DefaultOutputColumn
	}
	return &Auditor{
		statusColumn: opts.StatusColumn,
		outputColumn: opts.OutputColumn,
		encoding:     opts.Encoding,
		parser:       NewParser(opts.Diagnostics),
		classifier:   NewClassifier(opts.ExtraDomains...),
	}
}

// Audit classifies every row of data. On error no table is returned.
func (a *Auditor) Audit(data []byte) (*Result, error) {
	start := time.Now()

	working, err := a.resolveEncoding(data)
	if err != nil {
		return nil, err
	}

	parsed, err := a.parser.Parse(data, working)
	if err != nil {
		return nil, err
	}
	logger.Info("parsed input",
		"strategy", parsed.Strategy,
		"encoding", parsed.Encoding,
		"rows", parsed.Table.Len(),
		"skipped", parsed.Skipped,
	)

	table := parsed.Table
	TrimColumns(table)
	if err := RequireColumn(table, a.statusColumn); err != nil {
		return nil, fmt.Errorf("validate columns: %w", err)
	}

	personal := a.classifier.ClassifyTable(table, a.statusColumn, a.outputColumn)

	return &Result{
		Table:    table,
		Encoding: parsed.Encoding,
		Strategy: parsed.Strategy,
		Rows:     table.Len(),
		Personal: personal,
		Skipped:  parsed.Skipped,
		Duration: time.Since(start),
	}, nil
}

func (a *Auditor) resolveEncoding(data []byte) (Encoding, error) {
	if a.encoding != "" {
		enc, ok := LookupEncoding(a.encoding)
		if !ok {
			return Encoding{}, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, a.encoding)
		}
		logger.Info("using configured encoding", "encoding", enc.Name)
		return enc, nil
	}

	enc, err := DetectEncoding(data)
	if err != nil {
		return Encoding{}, err
	}
	logger.Info("detected encoding", "encoding", enc.Name)
	return enc, nil
}
