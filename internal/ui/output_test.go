package ui

import (
	"strings"
	"testing"
)

func TestCenter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		expected string
	}{
		{
			name:     "shorter than width",
			text:     "Hello",
			width:    15,
			expected: "     Hello",
		},
		{
			name:     "same as width",
			text:     "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "longer than width unchanged",
			text:     "Hello World",
			width:    5,
			expected: "Hello World",
		},
		{
			name:     "odd padding rounds down",
			text:     "Test",
			width:    11,
			expected: "   Test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := center(tt.text, tt.width); got != tt.expected {
				t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, got, tt.expected)
			}
		})
	}
}

// The print helpers write straight to stdout; these only verify they
// don't panic.
func TestPrintHelpers(t *testing.T) {
	Header("Import Summary")
	Step(1, 4, "Parsing statement")
	Success("4 movements parsed")
	Info("account acc-caixa-0042")
	Warning("1 candidate needs review")
	Error("store unavailable")

	if BlueText("azul") == "" {
		t.Error("BlueText returned empty string")
	}
	if YellowText("amarillo") == "" {
		t.Error("YellowText returned empty string")
	}
}

func TestHeaderWidth(t *testing.T) {
	centered := center("Test", headerWidth)
	if !strings.Contains(centered, "Test") {
		t.Errorf("center() should contain the original text")
	}
	if len(centered) >= headerWidth {
		t.Errorf("centered text should be shorter than the full line")
	}
}
