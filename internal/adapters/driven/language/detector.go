// Package language detects the language of extracted text.
package language

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// ErrUndetermined is returned when no language can be told apart.
var ErrUndetermined = errors.New("language undetermined")

// Ensure Detector implements the interface.
var _ driven.LanguageDetector = (*Detector)(nil)

// Detector wraps whatlanggo's trigram detector.
type Detector struct {
	minConfidence float64
	options       whatlanggo.Options
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinConfidence rejects detections below c (0..1).
func WithMinConfidence(c float64) Option {
	return func(d *Detector) { d.minConfidence = c }
}

// WithCandidates restricts detection to the given ISO 639-1 codes.
// Unknown codes are ignored.
func WithCandidates(codes ...string) Option {
	return func(d *Detector) {
		wl := make(map[whatlanggo.Lang]bool)
		for _, code := range codes {
			for lang := range whatlanggo.Langs {
				if lang.Iso6391() == strings.ToLower(code) {
					wl[lang] = true
				}
			}
		}
		if len(wl) > 0 {
			d.options.Whitelist = wl
		}
	}
}

// NewDetector creates a language detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the canonical ISO 639-1 code of the text's language.
func (d *Detector) Detect(_ context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}

	info := whatlanggo.DetectWithOptions(text, d.options)
	if info.Lang == -1 || info.Confidence < d.minConfidence {
		return "", fmt.Errorf("%w: confidence %.2f", ErrUndetermined, info.Confidence)
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return "", fmt.Errorf("%w: %s has no two-letter code", ErrUndetermined, info.Lang.String())
	}
	return canonical(code), nil
}

// canonical normalises a code through BCP 47 parsing, so deprecated
// aliases come back in their current form.
func canonical(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	return base.String()
}
