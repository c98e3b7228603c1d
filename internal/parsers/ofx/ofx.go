// Package ofx provides OFX/QFX statement parsing for tesoro
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
)

// Parser implements OFX/QFX parsing. The struct has no fields because
// parsing requires no configuration state, so the parser is safe for
// concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
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
	return "ofx"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	// Look for OFX header markers (both v1 SGML and v2 XML formats)
	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts raw data from an OFX/QFX file
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.RawStatement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content%s: %w", getFileInfo(meta), err)
	}

	// ofxgo.ParseResponse does not support context cancellation, so this
	// check only catches cancellation between file read and parsing.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file%s (%d bytes): %w", getFileInfo(meta), len(content), err)
	}

	if len(response.CreditCard) > 0 {
		return p.parseCreditCard(response, meta)
	}

	if len(response.Bank) > 0 {
		return p.parseBank(response, meta)
	}

	return nil, fmt.Errorf("no supported statement type found in OFX file%s. Expected a bank (BANKMSGSRSV1) or credit card (CREDITCARDMSGSRSV1) statement (bank: %d, creditcard: %d)",
		getFileInfo(meta), len(response.Bank), len(response.CreditCard))
}

// parseBank parses a bank account statement
func (p *Parser) parseBank(resp *ofxgo.Response, meta *parser.Metadata) (*parser.RawStatement, error) {
	bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert bank statement: expected *ofxgo.StatementResponse, got %T", resp.Bank[0])
	}

	institutionID, err := extractInstitutionID(resp)
	if err != nil {
		return nil, err
	}

	accountID := bankStmt.BankAcctFrom.AcctID.String()
	if accountID == "" {
		return nil, fmt.Errorf("missing account ID in bank statement")
	}

	accountType, err := mapBankAccountType(bankStmt.BankAcctFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to map account type: %w", err)
	}

	account, err := parser.NewRawAccount(institutionID, "", accountID, accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw account: %w", err)
	}
	setInstitutionNameFromMeta(account, meta)

	if bankStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in bank statement")
	}

	period, err := parser.NewPeriod(
		bankStmt.BankTranList.DtStart.Time,
		bankStmt.BankTranList.DtEnd.Time,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}

	transactions, err := p.parseTransactions(bankStmt.BankTranList)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	return &parser.RawStatement{
		Account:      *account,
		Period:       *period,
		Transactions: transactions,
	}, nil
}

// parseCreditCard parses a credit card statement
func (p *Parser) parseCreditCard(resp *ofxgo.Response, meta *parser.Metadata) (*parser.RawStatement, error) {
	ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert credit card statement: expected *ofxgo.CCStatementResponse, got %T", resp.CreditCard[0])
	}

	institutionID, err := extractInstitutionID(resp)
	if err != nil {
		return nil, err
	}

	accountID := ccStmt.CCAcctFrom.AcctID.String()
	if accountID == "" {
		return nil, fmt.Errorf("missing account ID in credit card statement")
	}

	account, err := parser.NewRawAccount(institutionID, "", accountID, "credit")
	if err != nil {
		return nil, fmt.Errorf("failed to create raw account: %w", err)
	}
	setInstitutionNameFromMeta(account, meta)

	if ccStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in credit card statement")
	}

	period, err := parser.NewPeriod(
		ccStmt.BankTranList.DtStart.Time,
		ccStmt.BankTranList.DtEnd.Time,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}

	transactions, err := p.parseTransactions(ccStmt.BankTranList)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	return &parser.RawStatement{
		Account:      *account,
		Period:       *period,
		Transactions: transactions,
	}, nil
}

// parseTransactions converts OFX transactions to RawTransactions
func (p *Parser) parseTransactions(tranList *ofxgo.TransactionList) ([]parser.RawTransaction, error) {
	transactions := make([]parser.RawTransaction, 0, len(tranList.Transactions))

	for i, txn := range tranList.Transactions {
		rawTxn, err := extractTransaction(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction at index %d: %w", i, err)
		}
		transactions = append(transactions, *rawTxn)
	}

	return transactions, nil
}

// mapBankAccountType maps OFX account type to internal account type
func mapBankAccountType(ofxAcct ofxgo.BankAcct) (string, error) {
	switch ofxAcct.AcctType {
	case ofxgo.AcctTypeChecking:
		return "checking", nil
	case ofxgo.AcctTypeSavings:
		return "savings", nil
	default:
		return "", fmt.Errorf("unsupported OFX account type %v for account %s (supported: CHECKING, SAVINGS)",
			ofxAcct.AcctType, ofxAcct.AcctID.String())
	}
}

// extractInstitutionID extracts and validates institution ID from OFX response
func extractInstitutionID(resp *ofxgo.Response) (string, error) {
	institutionID := resp.Signon.Org.String()
	if institutionID == "" {
		return "", fmt.Errorf("missing institution ID in OFX response")
	}
	return institutionID, nil
}

// setInstitutionNameFromMeta sets institution name from metadata if available
func setInstitutionNameFromMeta(account *parser.RawAccount, meta *parser.Metadata) {
	if meta != nil && meta.Institution() != "" {
		account.SetInstitutionName(meta.Institution())
	}
}

// extractTransaction converts one OFX transaction into a RawTransaction.
// DTPOSTED becomes the booking date and DTUSER, when present, the value
// date. FITID is kept as the bank reference so downstream matching can
// anchor on it.
func extractTransaction(txn ofxgo.Transaction) (*parser.RawTransaction, error) {
	fitID := txn.FiTID.String()

	postedDate := txn.DtPosted.Time
	if postedDate.IsZero() && txn.DtUser != nil {
		postedDate = txn.DtUser.Time
	}
	if postedDate.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", fitID)
	}

	// Use Name field for description; if empty, fall back to Memo
	description := txn.Name.String()
	if description == "" {
		description = txn.Memo.String()
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo fields", fitID)
	}

	// Float64 reports whether the amount is exactly representable. Typical
	// two-decimal amounts always are, so the flag is ignored here.
	amount, _ := txn.TrnAmt.Float64()

	rawTxn, err := parser.NewRawTransaction(postedDate.Format("2006-01-02"), description, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction %s: %w", fitID, err)
	}

	if txn.DtUser != nil {
		if userDate := txn.DtUser.Time; !userDate.IsZero() {
			rawTxn.SetOperationDate(userDate.Format("2006-01-02"))
		}
	}
	if fitID != "" {
		rawTxn.SetBankReference(fitID)
	}
	rawTxn.SetRawPayload(fmt.Sprintf("%s|%s|%s|%v", fitID, postedDate.Format("2006-01-02"), description, txn.TrnAmt))

	return rawTxn, nil
}
