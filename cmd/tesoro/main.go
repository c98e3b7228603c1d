package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/tesoro/internal/cache"
	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	tesorofs "github.com/rumor-ml/commons.systems/tesoro/internal/firestore"
	"github.com/rumor-ml/commons.systems/tesoro/internal/output"
	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
	"github.com/rumor-ml/commons.systems/tesoro/internal/pipeline"
	"github.com/rumor-ml/commons.systems/tesoro/internal/rules"
	"github.com/rumor-ml/commons.systems/tesoro/internal/scanner"
	"github.com/rumor-ml/commons.systems/tesoro/internal/transform"
	"github.com/rumor-ml/commons.systems/tesoro/internal/ui"
	"github.com/rumor-ml/commons.systems/tesoro/internal/validate"
)

const (
	version = "0.1.0"
)

var (
	versionFlag = flag.Bool("version", false, "Show version")

	inputPath = flag.String("input", "", "Statement file or directory of statements (required)")
	cacheFile = flag.String("cache", "", "Local transaction cache (SQLite); empty classifies against nothing")
	rulesFile = flag.String("rules", "", "Category rules file (default: embedded rules)")
	account   = flag.String("account", "", "Account number override when the input carries none")

	projectFlag = flag.String("project", "", "Classify against this Firestore project instead of the local cache (read-only)")
	orgFlag     = flag.String("org", "", "Organization ID for -project runs")

	outputPath = flag.String("output", "", "Report destination: file for single input, directory for a scan (default: stdout)")
	dryRun     = flag.Bool("dry-run", false, "Scan and list statements without classifying")
	verbose    = flag.Bool("verbose", false, "Show per-row classification detail")

	commitFlag = flag.Bool("commit", false, "Write the selected rows into the cache after review")
	selectFlag = flag.String("select", "", "Comma-separated candidate indexes to opt in (single file only, implies -commit)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `tesoro - bank statement import review for nonprofit bookkeeping

Usage:
  tesoro [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Classify one export against the local cache, report to stdout
  tesoro -input extracto-enero.csv -cache tesoro.db

  # Scan a statements tree and write one report per file
  tesoro -input ~/extractos -cache tesoro.db -output reports/

  # Review, opt candidate 0 in, and commit to the cache
  tesoro -input extracto-enero.csv -cache tesoro.db -select 0

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("tesoro version %s\n", version)
		os.Exit(0)
	}

	if *inputPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	ui.Header("Statement Import Review")
	ui.Step(1, 4, "Scanning input")

	files, err := collectInputFiles(*inputPath)
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Found %d statement file(s)", len(files)))

	if *verbose {
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s (institution: %s, account: %s)\n",
				f.Path, f.Metadata.Institution(), f.Metadata.AccountNumber())
		}
	}

	if *dryRun {
		fmt.Printf("Dry run complete. Would classify %d file(s).\n", len(files))
		return nil
	}

	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s (supported extensions: .csv, .ofx, .qfx)", *inputPath)
	}

	selected, err := parseSelectedIndexes(*selectFlag)
	if err != nil {
		return err
	}
	commit := *commitFlag || *selectFlag != ""
	if *selectFlag != "" && len(files) > 1 {
		return fmt.Errorf("-select applies to a single statement file, got %d", len(files))
	}

	ui.Step(2, 4, "Opening transaction store")
	var (
		store      pipeline.Store
		localCache *cache.Cache
	)
	if *projectFlag != "" {
		if *orgFlag == "" {
			return fmt.Errorf("-project requires -org")
		}
		if commit {
			return fmt.Errorf("-commit/-select write to the local cache only; use the review API for remote imports")
		}
		client, err := tesorofs.NewClient(ctx, *projectFlag)
		if err != nil {
			return err
		}
		defer client.Close()
		store = &remoteStore{client: client, orgID: *orgFlag}
		ui.Info(fmt.Sprintf("classifying against project %s (org %s)", *projectFlag, *orgFlag))
	} else {
		cachePath := *cacheFile
		if cachePath == "" {
			ui.Warning("no -cache given, classifying without stored history")
			cachePath = ":memory:"
		}
		var err error
		localCache, err = cache.Open(cachePath)
		if err != nil {
			return err
		}
		defer localCache.Close()
		store = localCache
	}

	ui.Step(3, 4, "Loading category rules")
	engine, err := loadRules(*rulesFile)
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "  Loaded %d rules\n", len(engine.GetRules()))
	}

	if *outputPath != "" && len(files) > 1 {
		if err := os.MkdirAll(*outputPath, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", *outputPath, err)
		}
	}

	ui.Step(4, 4, "Classifying statements")
	pipe := pipeline.New(store, engine, nil)

	for _, file := range files {
		if err := processFile(ctx, pipe, localCache, file, selected, commit, len(files) > 1); err != nil {
			return fmt.Errorf("%s: %w", file.Path, err)
		}
	}

	return nil
}

func processFile(ctx context.Context, pipe *pipeline.Pipeline, store *cache.Cache, file scanner.ScanResult, selected []int, commit bool, multiFile bool) error {
	sessionID := transform.GenerateSessionID()

	meta := file.Metadata
	if *account != "" {
		meta.SetAccountNumber(*account)
	}
	result, err := pipe.PreviewFile(ctx, sessionID, file.Path, &meta)
	if err != nil {
		return err
	}

	check := validate.ValidateClassified(result.Classified)
	for _, w := range check.Warnings {
		ui.Warning(fmt.Sprintf("%s %s: %s", w.Entity, w.ID, w.Message))
	}
	if check.HasErrors() {
		e := check.Errors[0]
		return fmt.Errorf("classification invalid (%d error(s)), first: %s %s: %s",
			len(check.Errors), e.Entity, e.ID, e.Message)
	}

	report := output.NewReport(sessionID, filepath.Base(file.Path), result.Batch.Account.ID, result.SearchRange, result.Classified)
	printSummary(file.Path, report, result)

	if commit {
		if err := commitSelection(ctx, pipe, store, sessionID, result, selected); err != nil {
			return err
		}
	}

	return output.WriteReportToFile(report, output.WriteOptions{FilePath: reportDestination(file.Path, multiFile)})
}

func printSummary(path string, report *output.Report, result *pipeline.PreviewResult) {
	ui.Info(fmt.Sprintf("%s → account %s", filepath.Base(path), ui.BlueText(report.AccountID)))
	ui.Success(fmt.Sprintf("%d rows: %d new, %d safe duplicates, %d candidates",
		report.Summary.Total, report.Summary.New,
		report.Summary.DuplicateSafe, report.Summary.DuplicateCandidate))

	if report.Summary.DuplicateCandidate > 0 {
		ui.Warning(fmt.Sprintf("%d candidate(s) need review, pass -select to opt in:", report.Summary.DuplicateCandidate))
		for i, cr := range result.CandidateRows() {
			fmt.Fprintf(os.Stderr, "  [%d] %s  %s  %.2f  (%s, matches %s)\n",
				i, cr.Row.Date, cr.Row.Description, cr.Row.Amount,
				cr.Reason, strings.Join(cr.MatchedExistingIDs, ", "))
		}
	}

	if *verbose {
		for _, cr := range result.Classified {
			fmt.Fprintf(os.Stderr, "  %-20s %s %10.2f  %s\n",
				cr.Status, cr.Row.Date, cr.Row.Amount, cr.Row.Description)
		}
	}
}

func commitSelection(ctx context.Context, pipe *pipeline.Pipeline, store *cache.Cache, sessionID string, result *pipeline.PreviewResult, selected []int) error {
	if max := len(result.CandidateRows()); maxIndex(selected) >= max {
		return fmt.Errorf("-select index %d out of range, batch has %d candidate(s)", maxIndex(selected), max)
	}

	commit := pipe.Commit(sessionID, result.Classified, selected)

	check := validate.ValidateSelection(result.Classified, &commit.Selection)
	if check.HasErrors() {
		e := check.Errors[0]
		return fmt.Errorf("selection invalid: %s", e.Message)
	}

	txns := make([]domain.ExistingTransaction, len(commit.Selection.RowsToImport))
	for i, row := range commit.Selection.RowsToImport {
		txns[i] = domain.ExistingTransaction{
			ID:            "txn-" + uuid.NewString(),
			AccountID:     row.AccountID,
			Date:          row.Date,
			OperationDate: row.OperationDate,
			Description:   row.Description,
			Amount:        row.Amount,
			BankReference: row.BankReference,
			BalanceAfter:  row.BalanceAfter,
			Category:      commit.Categories[i],
		}
	}
	if err := store.Put(ctx, txns); err != nil {
		return err
	}

	stats := commit.Selection.Stats
	ui.Success(fmt.Sprintf("Imported %d row(s) (%d duplicates skipped, %d candidate(s) opted in, %d skipped)",
		len(txns), stats.DuplicateSkippedCount,
		stats.CandidateUserImportedCount, stats.CandidateUserSkippedCount))
	return nil
}

// remoteStore scopes the Firestore range query to one organization so it
// satisfies the pipeline store interface.
type remoteStore struct {
	client *tesorofs.Client
	orgID  string
}

func (s *remoteStore) GetTransactionsInRange(ctx context.Context, accountID string, rng domain.SearchRange) ([]domain.ExistingTransaction, error) {
	return s.client.GetTransactionsInRange(ctx, s.orgID, accountID, rng)
}

// collectInputFiles accepts either a single statement file or a directory
// laid out {root}/{institution}/{account}/file.ext.
func collectInputFiles(input string) ([]scanner.ScanResult, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", input, err)
	}

	if info.IsDir() {
		return scanner.New(input).Scan()
	}

	meta, err := parser.NewMetadata(input, time.Now())
	if err != nil {
		return nil, err
	}
	return []scanner.ScanResult{{Path: input, Metadata: *meta}}, nil
}

func loadRules(path string) (*rules.Engine, error) {
	if path != "" {
		engine, err := rules.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		return engine, nil
	}
	engine, err := rules.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

// parseSelectedIndexes parses the -select flag: comma-separated,
// non-negative, no repeats.
func parseSelectedIndexes(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var indexes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid -select value %q: %w", part, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid -select value %d: must be non-negative", n)
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate -select value %d", n)
		}
		seen[n] = true
		indexes = append(indexes, n)
	}
	return indexes, nil
}

func maxIndex(indexes []int) int {
	max := -1
	for _, n := range indexes {
		if n > max {
			max = n
		}
	}
	return max
}

// reportDestination maps a statement path to where its report goes.
// Single-file runs honor -output as a file path; scans treat it as a
// directory and write one report per statement.
func reportDestination(statementPath string, multiFile bool) string {
	if *outputPath == "" {
		return ""
	}
	if !multiFile {
		return *outputPath
	}
	base := strings.TrimSuffix(filepath.Base(statementPath), filepath.Ext(statementPath))
	return filepath.Join(*outputPath, base+".report.json")
}
