package services

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// Letter-ratio floors used by the quality gate.
const (
	numericTableRatio = 0.3
	garbageRatio      = 0.2
)

// polishLetters are counted as letters alongside ASCII.
const polishLetters = "ąćęłńóśźżĄĆĘŁŃÓŚŹŻ"

// commonWords rescue low-ratio text that still carries domain vocabulary.
var commonWords = []string{"ulica", "faktura", "data", "zł", "adres", "nazwa", "budynek", "nr", "kod", "tak"}

// IsAcceptable reports whether extracted text looks like real prose rather
// than OCR noise. It is a cheap heuristic and never errors.
func IsAcceptable(text string, opts domain.QualityOptions) bool {
	trimmed := strings.TrimSpace(norm.NFC.String(text))
	length := utf8.RuneCountInString(trimmed)
	if length == 0 || length < opts.MinLength {
		return false
	}

	ratio := float64(countLetters(trimmed)) / float64(length)

	if !opts.AllowNumericTables && ratio < numericTableRatio {
		return false
	}
	if ratio < garbageRatio && !containsCommonWord(trimmed) {
		return false
	}
	return true
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if isGateLetter(r) {
			n++
		}
	}
	return n
}

func isGateLetter(r rune) bool {
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return strings.ContainsRune(polishLetters, r)
}

func containsCommonWord(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range commonWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
