package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

func TestIsAcceptable(t *testing.T) {
	defaults := domain.DefaultQualityOptions()
	strict := domain.QualityOptions{MinLength: 30, AllowNumericTables: false}

	tests := []struct {
		name string
		text string
		opts domain.QualityOptions
		want bool
	}{
		{"empty", "", defaults, false},
		{"whitespace only", "   \n\t  ", defaults, false},
		{"below floor", "Faktura VAT nr 12", defaults, false},
		{"below floor after trim", "   " + strings.Repeat("a", 29) + "   ", defaults, false},
		{"exactly at floor", strings.Repeat("a", 30), defaults, true},
		{"fifty letters with keyword", "faktura " + strings.Repeat("a", 42), defaults, true},
		{"polish prose", "Zażółć gęślą jaźń, ulica Długa 5, Kraków", defaults, true},
		{"digits no keyword", strings.Repeat("1234 5678 ", 6), defaults, false},
		{"digits with keyword", strings.Repeat("1234 5678 ", 6) + "kod", defaults, true},
		{"numeric table allowed", "Suma 12 34 56 78 90 12 34 56 78 90 ab cd ef", defaults, true},
		{"numeric table strict", "Suma 12 34 56 78 90 12 34 56 78 90 ab cd ef", strict, false},
		{"strict prose", "To jest zwykły tekst dokumentu o budowie.", strict, true},
		{"keyword case insensitive", strings.Repeat("9", 40) + "FAKTURA", defaults, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAcceptable(tt.text, tt.opts))
		})
	}
}

func TestIsAcceptable_DecomposedDiacritics(t *testing.T) {
	// z + combining dot above composes to one letter; uncomposed, the ratio
	// would fall to 0.25 and fail the strict floor.
	decomposed := strings.Repeat("z\u0307", 10) + strings.Repeat("1", 20)
	opts := domain.QualityOptions{MinLength: 30, AllowNumericTables: false}
	assert.True(t, IsAcceptable(decomposed, opts))
}

func TestIsAcceptable_ZeroFloor(t *testing.T) {
	assert.False(t, IsAcceptable("", domain.QualityOptions{}))
	assert.True(t, IsAcceptable("abc", domain.QualityOptions{}))
}
