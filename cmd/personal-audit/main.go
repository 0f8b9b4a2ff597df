package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/personal-audit/internal/audit"
	"github.com/ignite/personal-audit/internal/config"
	"github.com/ignite/personal-audit/internal/history"
	"github.com/ignite/personal-audit/internal/pkg/logger"
	"github.com/ignite/personal-audit/internal/report"
	"github.com/ignite/personal-audit/internal/storage"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("personal-audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to config file (optional)")
	logLevel := fs.String("log-level", "", "override logging level (debug, info, warn, error)")
	sheet := fs.String("sheet", "", "override output sheet name")
	encoding := fs.String("encoding", "", "skip detection and read input with this encoding")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: personal-audit [flags] INPUT_FILE OUTPUT_FILE")
		fmt.Fprintln(stderr, "\nINPUT_FILE and OUTPUT_FILE may be local paths or s3://bucket/key.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: loading config: %v\n", err)
		return exitFailure
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *sheet != "" {
		cfg.Audit.SheetName = *sheet
	}
	if *encoding != "" {
		cfg.Audit.Encoding = *encoding
	}
	if cfg.Audit.Encoding != "" {
		if _, ok := audit.LookupEncoding(cfg.Audit.Encoding); !ok {
			fmt.Fprintf(stderr, "Error: Invalid value for '-encoding': %q is not supported.\n", cfg.Audit.Encoding)
			return exitUsage
		}
	}

	runID := uuid.New()
	setupLogging(cfg.Logging, stderr, runID)

	inLoc, err := storage.ParseLocation(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: Invalid value for 'INPUT_FILE': %v\n", err)
		return exitUsage
	}
	outLoc, err := storage.ParseLocation(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "Error: Invalid value for 'OUTPUT_FILE': %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	store := storage.New(cfg.Storage)
	ok, err := store.Exists(ctx, inLoc)
	if err != nil {
		fmt.Fprintf(stderr, "Error: checking %s: %v\n", inLoc, err)
		return exitFailure
	}
	if !ok {
		fmt.Fprintf(stderr, "Error: Invalid value for 'INPUT_FILE': Path '%s' does not exist.\n", inLoc)
		return exitUsage
	}

	a := &auditRun{
		id:     runID,
		cfg:    cfg,
		store:  store,
		in:     inLoc,
		out:    outLoc,
		stdout: stdout,
	}
	a.recorder = openHistory(ctx, cfg.History)
	if a.recorder != nil {
		defer a.recorder.Close()
	}

	if err := a.execute(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", describe(err))
		return exitFailure
	}
	return exitOK
}

func setupLogging(cfg config.LoggingConfig, w io.Writer, runID uuid.UUID) {
	logger.SetOutput(w)
	level, err := logger.ParseLevel(cfg.Level)
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Redact())
	logger.SetFields("run_id", runID.String())
	if err != nil {
		logger.Warn("invalid log level, using info", "error", err)
	}
}

// openHistory returns nil when history is disabled or unreachable.
func openHistory(ctx context.Context, cfg config.HistoryConfig) *history.Recorder {
	if !cfg.Enabled {
		return nil
	}
	r, err := history.Open(ctx, cfg.DatabaseURL, cfg.Table)
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
		return nil
	}
	if err := r.EnsureSchema(ctx); err != nil {
		logger.Warn("run history unavailable", "error", err)
		r.Close()
		return nil
	}
	return r
}

// auditRun carries one invocation from input to output.
type auditRun struct {
	id       uuid.UUID
	cfg      *config.Config
	store    *storage.Store
	recorder *history.Recorder
	in, out  storage.Location
	stdout   io.Writer
}

func (a *auditRun) execute(ctx context.Context) error {
	started := time.Now()
	logger.Info("audit started", "input", a.in.String(), "output", a.out.String())

	res, err := a.process(ctx)

	rec := history.Run{
		ID:         a.id,
		Input:      a.in.String(),
		Output:     a.out.String(),
		Status:     history.StatusCompleted,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if res != nil {
		rec.Encoding = res.Encoding
		rec.Strategy = res.Strategy
		rec.Rows = res.Rows
		rec.Personal = res.Personal
		rec.Skipped = res.Skipped
	}
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Error = describe(err)
		logger.Error("audit failed", "error", err)
	} else {
		logger.Info("audit complete",
			"rows", res.Rows,
			"personal", res.Personal,
			"skipped", res.Skipped,
			"encoding", res.Encoding,
			"strategy", res.Strategy,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}

	if a.recorder != nil {
		if recErr := a.recorder.Record(ctx, rec); recErr != nil {
			logger.Warn("failed to record run", "error", recErr)
		}
	}
	return err
}

// process reads, audits and writes. Nothing is written unless the audit
// succeeds.
func (a *auditRun) process(ctx context.Context) (*audit.Result, error) {
	data, err := a.store.Read(ctx, a.in)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	auditor := audit.NewAuditor(audit.Options{
		StatusColumn: a.cfg.Audit.StatusColumn,
		OutputColumn: a.cfg.Audit.OutputColumn,
		ExtraDomains: a.cfg.Audit.ExtraDomains,
		Encoding:     a.cfg.Audit.Encoding,
		Diagnostics:  a.stdout,
	})
	res, err := auditor.Audit(data)
	if err != nil {
		return nil, err
	}

	workbook, err := report.Bytes(a.cfg.Audit.SheetName, res.Table)
	if err != nil {
		return res, fmt.Errorf("rendering workbook: %w", err)
	}
	if err := a.store.Write(ctx, a.out, workbook, xlsxContentType); err != nil {
		return res, fmt.Errorf("writing output: %w", err)
	}
	return res, nil
}

// describe renders pipeline errors the way users expect to read them.
func describe(err error) string {
	var mce *audit.MissingColumnError
	switch {
	case errors.As(err, &mce):
		return mce.Error()
	case errors.Is(err, audit.ErrEncodingUndetermined):
		return "Could not determine file encoding"
	default:
		return err.Error()
	}
}
