package domain

import (
	"strings"
	"testing"
)

func TestValidateImportStatus(t *testing.T) {
	t.Run("valid statuses", func(t *testing.T) {
		for _, s := range []ImportStatus{StatusNew, StatusDuplicateSafe, StatusDuplicateCandidate} {
			if !ValidateImportStatus(s) {
				t.Errorf("Expected %s to be valid", s)
			}
		}
	})

	t.Run("invalid statuses", func(t *testing.T) {
		invalidCases := []ImportStatus{
			"",
			"NEW",             // wrong case
			"duplicate",       // incomplete
			"duplicate_sure",  // wrong word
			"new ",            // trailing space
			"candidate",       // missing prefix
		}

		for _, s := range invalidCases {
			if ValidateImportStatus(s) {
				t.Errorf("Expected %q to be invalid", s)
			}
		}
	})
}

func TestValidateMatchReason(t *testing.T) {
	t.Run("valid reasons", func(t *testing.T) {
		for _, r := range []MatchReason{ReasonNone, ReasonIntraFile, ReasonBankRef, ReasonBalanceAmountDate, ReasonBaseKey} {
			if !ValidateMatchReason(r) {
				t.Errorf("Expected %q to be valid", r)
			}
		}
	})

	t.Run("invalid reasons", func(t *testing.T) {
		for _, r := range []MatchReason{"BANK_REF", "exact", "fuzzy", "bank_ref "} {
			if ValidateMatchReason(r) {
				t.Errorf("Expected %q to be invalid", r)
			}
		}
	})
}

func TestValidateCategory(t *testing.T) {
	t.Run("valid categories", func(t *testing.T) {
		validCategories := []Category{
			CategoryDonation,
			CategoryMembership,
			CategoryGrant,
			CategoryPayroll,
			CategoryRent,
			CategoryUtilities,
			CategorySupplies,
			CategoryEvents,
			CategoryBankFees,
			CategoryTransfer,
			CategoryOther,
		}

		for _, cat := range validCategories {
			if !ValidateCategory(cat) {
				t.Errorf("Expected %s to be valid", cat)
			}
		}
	})

	t.Run("invalid categories", func(t *testing.T) {
		invalidCases := []Category{
			"invalid",
			"DONATION",  // wrong case
			"",          // empty
			"bank fees", // space instead of underscore
			"donation ", // trailing space
		}

		for _, cat := range invalidCases {
			if ValidateCategory(cat) {
				t.Errorf("Expected %q to be invalid", cat)
			}
		}
	})
}

func TestValidateAccountType(t *testing.T) {
	for _, typ := range []AccountType{AccountTypeChecking, AccountTypeSavings, AccountTypeCredit} {
		if !ValidateAccountType(typ) {
			t.Errorf("Expected %s to be valid", typ)
		}
	}
	for _, typ := range []AccountType{"", "CHECKING", "investment", "current"} {
		if ValidateAccountType(typ) {
			t.Errorf("Expected %q to be invalid", typ)
		}
	}
}

func TestSearchRangeContains(t *testing.T) {
	rng := SearchRange{From: "2026-01-05", To: "2026-01-31"}

	tests := []struct {
		date string
		want bool
	}{
		{"2026-01-05", true},  // inclusive lower bound
		{"2026-01-31", true},  // inclusive upper bound
		{"2026-01-15", true},
		{"2026-01-04", false},
		{"2026-02-01", false},
		{"2025-12-31", false},
	}

	for _, tt := range tests {
		if got := rng.Contains(tt.date); got != tt.want {
			t.Errorf("Contains(%q) = %v; want %v", tt.date, got, tt.want)
		}
	}
}

func TestNewAccount(t *testing.T) {
	account, err := NewAccount("acc-caixa-0042", "caixa", "CaixaBank 0042", AccountTypeChecking)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if account.ID != "acc-caixa-0042" || account.Type != AccountTypeChecking {
		t.Errorf("Unexpected account: %+v", account)
	}

	if _, err := NewAccount("", "caixa", "x", AccountTypeChecking); err == nil {
		t.Error("Expected error for empty ID")
	}
	if _, err := NewAccount("acc-1", "", "x", AccountTypeChecking); err == nil {
		t.Error("Expected error for empty institution ID")
	}
	if _, err := NewAccount("acc-1", "caixa", "x", "investment"); err == nil {
		t.Error("Expected error for invalid account type")
	}
}

func TestNewInstitution(t *testing.T) {
	inst, err := NewInstitution("caixa", "CaixaBank")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if inst.Name != "CaixaBank" {
		t.Errorf("Expected name CaixaBank, got %s", inst.Name)
	}

	if _, err := NewInstitution("", "CaixaBank"); err == nil {
		t.Error("Expected error for empty ID")
	}
	if _, err := NewInstitution("caixa", ""); err == nil {
		t.Error("Expected error for empty name")
	}
}

func TestNewExistingTransaction(t *testing.T) {
	txn, err := NewExistingTransaction("txn-1", "acc-caixa-0042", "2026-01-05", "Cuota socio", -25.00)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if txn.Category != CategoryOther {
		t.Errorf("Expected default category other, got %s", txn.Category)
	}

	if _, err := NewExistingTransaction("", "acc-1", "2026-01-05", "x", 1); err == nil {
		t.Error("Expected error for empty ID")
	}
	if _, err := NewExistingTransaction("txn-1", "acc-1", "05/01/2026", "x", 1); err == nil {
		t.Error("Expected error for non-ISO date")
	}
	_, err = NewExistingTransaction("txn-1", "acc-1", "2026-01-05", "", 1)
	if err == nil || !strings.Contains(err.Error(), "description") {
		t.Errorf("Expected description error, got: %v", err)
	}
}
