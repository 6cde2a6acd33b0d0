// Package pdf reads the embedded text layer of PDF documents.
//
// Only text drawn with the standard show-text operators is recovered.
// Scanned pages and fonts without a Unicode mapping produce little or
// garbled text, which the extraction quality gate rejects so that the
// chain falls through to OCR.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents.
type Normaliser struct {
	maxPages int
}

// New creates a PDF normaliser that reads every page.
func New() *Normaliser {
	return &Normaliser{}
}

// NewWithPageLimit creates a PDF normaliser that stops after maxPages.
func NewWithPageLimit(maxPages int) *Normaliser {
	return &Normaliser{maxPages: maxPages}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{domain.MimePDF}
}

// Normalise returns the text layer of every page, pages separated by a
// blank line. A PDF without a text layer yields "".
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(raw.Content), conf)
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf %s: %v", domain.ErrInvalidInput, raw.Name, err)
	}

	pages := pdfCtx.PageCount
	if n.maxPages > 0 && pages > n.maxPages {
		pages = n.maxPages
	}

	var out strings.Builder
	for pageNr := 1; pageNr <= pages; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		text := ContentText(data)
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}

	return out.String(), nil
}

// ContentText recovers the text shown by a page content stream.
// Line breaks follow T*, ', " and vertical Td/TD moves.
func ContentText(stream []byte) string {
	s := &scanner{data: stream}

	var (
		lines    []string
		line     strings.Builder
		operands []string
		pending  []string
	)
	newline := func() {
		text := strings.TrimSpace(line.String())
		line.Reset()
		if text != "" {
			lines = append(lines, text)
		}
	}
	show := func() {
		for _, p := range pending {
			line.WriteString(p)
		}
	}

	for {
		tok, kind, ok := s.next()
		if !ok {
			break
		}
		switch kind {
		case tokString:
			pending = append(pending, tok)
		case tokNumber:
			operands = append(operands, tok)
		case tokArrayEnd:
		case tokGap:
			pending = append(pending, " ")
		case tokOperator:
			switch tok {
			case "Tj", "TJ":
				show()
			case "'":
				newline()
				show()
			case `"`:
				newline()
				show()
			case "T*":
				newline()
			case "Td", "TD":
				if len(operands) >= 2 && nonZero(operands[len(operands)-1]) {
					newline()
				} else if line.Len() > 0 {
					line.WriteByte(' ')
				}
			case "ET":
				newline()
			}
			operands = operands[:0]
			pending = pending[:0]
		}
	}
	newline()

	return strings.Join(lines, "\n")
}

// wordGapKerning is the TJ adjustment, in thousandths of an em, at or
// beyond which a space is inserted.
const wordGapKerning = -200

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokArrayEnd
	tokGap
	tokOther
)

// scanner tokenises just enough of the content stream syntax to find
// show-text operators and their string operands.
type scanner struct {
	data    []byte
	pos     int
	inArray bool
}

func (s *scanner) next() (string, tokenKind, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return s.literal(), tokString, true
		case c == '<' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '<':
			s.pos += 2
			return "<<", tokOther, true
		case c == '>' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '>':
			s.pos += 2
			return ">>", tokOther, true
		case c == '<':
			return s.hex(), tokString, true
		case c == '[':
			s.pos++
			s.inArray = true
			return "[", tokOther, true
		case c == ']':
			s.pos++
			s.inArray = false
			return "]", tokArrayEnd, true
		case c == '/':
			s.pos++
			s.word()
			return "", tokOther, true
		case c == '\'' || c == '"':
			s.pos++
			return string(c), tokOperator, true
		default:
			w := s.word()
			if w == "" {
				s.pos++
				continue
			}
			if isNumber(w) {
				// A large negative kerning inside a TJ array marks a word gap.
				if v, err := strconv.ParseFloat(w, 64); err == nil && s.inArray && v <= wordGapKerning {
					return w, tokGap, true
				}
				return w, tokNumber, true
			}
			return w, tokOperator, true
		}
	}
	return "", tokOther, false
}

func (s *scanner) word() string {
	start := s.pos
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isSpace(c) || strings.IndexByte("()<>[]{}/%'\"", c) >= 0 {
			break
		}
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a (...) string, honouring nesting and escapes.
func (s *scanner) literal() string {
	s.pos++ // (
	var buf []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				break
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b', 'f':
			case '\n', '\r':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						val = val*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					buf = append(buf, byte(val))
				} else {
					buf = append(buf, e)
				}
			}
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth == 0 {
				return decodeText(buf)
			}
			buf = append(buf, c)
		default:
			buf = append(buf, c)
		}
	}
	return decodeText(buf)
}

// hex reads a <...> string.
func (s *scanner) hex() string {
	s.pos++ // <
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		if c := s.data[s.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	buf := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		hi, ok1 := hexVal(digits[i])
		lo, ok2 := hexVal(digits[i+1])
		if !ok1 || !ok2 {
			return ""
		}
		buf = append(buf, hi<<4|lo)
	}
	return decodeText(buf)
}

// decodeText turns string bytes into text. UTF-16BE with a byte order
// mark is decoded; anything else is read as Latin-1.
func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func nonZero(w string) bool {
	v, err := strconv.ParseFloat(w, 64)
	return err == nil && v != 0
}

func isNumber(w string) bool {
	if w == "" || w == "-" || w == "+" || w == "." {
		return false
	}
	for i, c := range w {
		if (c == '-' || c == '+') && i == 0 {
			continue
		}
		if c != '.' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
