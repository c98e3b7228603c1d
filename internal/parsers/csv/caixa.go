// Package csv provides CSV statement parsing for tesoro
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
)

// Parser implements parsing of the semicolon-separated account export used
// by Iberian retail banks (CaixaBank-style). The struct has no fields
// because parsing requires no configuration state, so the parser is safe
// for concurrent use without locking.
//
// Expected layout, one header line then one line per movement:
//
//	Fecha;Fecha valor;Concepto;Importe;Saldo;Referencia
//
// Fecha is the booking date, Fecha valor the value date (they disagree for
// movements booked across a month or year boundary), Importe a
// decimal-comma amount, Saldo the running balance after the movement and
// Referencia the optional bank line reference.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// getFileInfo returns a formatted file path string for error messages
func getFileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.FilePath() != "" {
		return fmt.Sprintf(" from %s", meta.FilePath())
	}
	return ""
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv-caixa"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		return false
	}

	// First line must be the semicolon-separated Spanish header
	firstLine := string(header)
	if i := strings.IndexAny(firstLine, "\r\n"); i >= 0 {
		firstLine = firstLine[:i]
	}
	lower := strings.ToLower(firstLine)

	return strings.Count(lower, ";") >= 4 &&
		strings.Contains(lower, "fecha") &&
		strings.Contains(lower, "concepto") &&
		strings.Contains(lower, "importe")
}

// Parse extracts raw data from a bank CSV export
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.RawStatement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = ';'
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content%s: %w", getFileInfo(meta), err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file has no movement lines%s", getFileInfo(meta))
	}

	transactions, periodStart, periodEnd, err := p.parseMovements(records[1:], meta)
	if err != nil {
		return nil, err
	}

	account, err := p.buildAccount(meta)
	if err != nil {
		return nil, err
	}

	period, err := parser.NewPeriod(periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to derive statement period%s: %w", getFileInfo(meta), err)
	}

	return &parser.RawStatement{
		Account:      *account,
		Period:       *period,
		Transactions: transactions,
	}, nil
}

// buildAccount derives account identity from directory metadata, since the
// export itself carries no account block.
func (p *Parser) buildAccount(meta *parser.Metadata) (*parser.RawAccount, error) {
	institution := "UNKNOWN"
	accountNumber := "UNKNOWN"
	if meta != nil {
		if meta.Institution() != "" {
			institution = meta.Institution()
		}
		if meta.AccountNumber() != "" {
			accountNumber = meta.AccountNumber()
		}
	}

	account, err := parser.NewRawAccount(institution, institution, accountNumber, "checking")
	if err != nil {
		return nil, fmt.Errorf("failed to create raw account: %w", err)
	}
	return account, nil
}

// parseMovements converts movement lines into raw transactions and tracks
// the statement period from the booking dates.
func (p *Parser) parseMovements(records [][]string, meta *parser.Metadata) ([]parser.RawTransaction, time.Time, time.Time, error) {
	var (
		transactions []parser.RawTransaction
		periodStart  time.Time
		periodEnd    time.Time
	)

	for i, record := range records {
		// Trailing empty line tolerated
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 4 {
			return nil, time.Time{}, time.Time{}, fmt.Errorf(
				"movement line %d has %d fields, want at least 4 (Fecha;Fecha valor;Concepto;Importe)%s",
				i+2, len(record), getFileInfo(meta))
		}

		bookingDate, err := parseSpanishDate(record[0])
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("movement line %d: invalid booking date %q%s: %w",
				i+2, record[0], getFileInfo(meta), err)
		}

		description := strings.TrimSpace(record[2])
		if description == "" {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("movement line %d: empty description%s", i+2, getFileInfo(meta))
		}

		amount, err := parseDecimalComma(record[3])
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("movement line %d: invalid amount %q%s: %w",
				i+2, record[3], getFileInfo(meta), err)
		}

		txn, err := parser.NewRawTransaction(bookingDate.Format("2006-01-02"), description, amount)
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("movement line %d%s: %w", i+2, getFileInfo(meta), err)
		}

		// Value date is optional; an unparseable one is dropped rather
		// than failing the file, the import engine treats it as absent.
		if valueDate, err := parseSpanishDate(record[1]); err == nil {
			txn.SetOperationDate(valueDate.Format("2006-01-02"))
		}

		if len(record) >= 5 {
			if balance, err := parseDecimalComma(record[4]); err == nil {
				txn.SetBalanceAfter(balance)
			}
		}

		if len(record) >= 6 {
			if ref := strings.TrimSpace(record[5]); ref != "" {
				txn.SetBankReference(ref)
			}
		}

		txn.SetRawPayload(strings.Join(record, ";"))
		transactions = append(transactions, *txn)

		if periodStart.IsZero() || bookingDate.Before(periodStart) {
			periodStart = bookingDate
		}
		if periodEnd.IsZero() || bookingDate.After(periodEnd) {
			periodEnd = bookingDate
		}
	}

	if len(transactions) == 0 {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("CSV file has no movement lines%s", getFileInfo(meta))
	}

	return transactions, periodStart, periodEnd, nil
}

// parseSpanishDate parses DD/MM/YYYY with no timezone interpretation
func parseSpanishDate(value string) (time.Time, error) {
	return time.Parse("02/01/2006", strings.TrimSpace(value))
}

// parseDecimalComma parses "1.234,56" / "1234,56" / "-88,40" amounts
func parseDecimalComma(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a decimal-comma amount: %w", err)
	}
	return amount, nil
}
