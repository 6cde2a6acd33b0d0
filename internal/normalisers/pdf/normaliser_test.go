package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// buildPDF assembles a single-font PDF with one page per content stream.
func buildPDF(streams ...string) []byte {
	var objects []string
	kids := ""
	fontObj := 3 + 2*len(streams)
	for i, content := range streams {
		pageObj := 3 + 2*i
		kids += fmt.Sprintf("%d 0 R ", pageObj)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
				"/Resources << /Font << /F1 %d 0 R >> >> >>", pageObj+1, fontObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content)+1, content),
		)
	}
	all := append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(streams)),
	}, objects...)
	all = append(all, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(all))
	for i, obj := range all {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(all)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(all)+1, xref)
	return buf.Bytes()
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{domain.MimePDF}, New().SupportedMIMETypes())
}

func TestNormalise_TextLayer(t *testing.T) {
	content := buildPDF(
		"BT /F1 12 Tf 72 712 Td (Protokol odbioru) Tj 0 -14 Td (Inwestycja Krakow) Tj ET",
		"BT /F1 12 Tf 72 712 Td (Strona druga) Tj ET",
	)

	text, err := New().Normalise(context.Background(), &domain.RawDocument{
		Name: "protokol.pdf", MIMEType: domain.MimePDF, Content: content,
	})

	require.NoError(t, err)
	assert.Equal(t, "Protokol odbioru\nInwestycja Krakow\n\nStrona druga", text)
}

func TestNormalise_PageLimit(t *testing.T) {
	content := buildPDF(
		"BT (one) Tj ET",
		"BT (two) Tj ET",
	)

	text, err := NewWithPageLimit(1).Normalise(context.Background(), &domain.RawDocument{Content: content})

	require.NoError(t, err)
	assert.Equal(t, "one", text)
}

func TestNormalise_NoTextLayer(t *testing.T) {
	content := buildPDF("q 100 0 0 100 0 0 cm Q")

	text, err := New().Normalise(context.Background(), &domain.RawDocument{Content: content})

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNormalise_Errors(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), &domain.RawDocument{Name: "x.pdf", Content: []byte("not a pdf")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestContentText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "Tj with vertical moves",
			stream: "BT 72 712 Td (Umowa nr 12) Tj 0 -14 Td (Strona) Tj ET",
			want:   "Umowa nr 12\nStrona",
		},
		{
			name:   "TJ kerning and word gaps",
			stream: "BT [(Stro) 20 (na) -300 (pierwsza)] TJ ET",
			want:   "Strona pierwsza",
		},
		{
			name:   "horizontal Td joins with a space",
			stream: "BT (Kwota:) Tj 120 0 Td (1200 PLN) Tj ET",
			want:   "Kwota: 1200 PLN",
		},
		{
			name:   "T* and quote operators break lines",
			stream: "BT (a) Tj T* (b) Tj (c) ' ET",
			want:   "a\nb\nc",
		},
		{
			name:   "escapes and nested parentheses",
			stream: `BT (nawias \(x\) i (y)) Tj (\101\102) Tj ET`,
			want:   "nawias (x) i (y)AB",
		},
		{
			name:   "utf-16 hex string",
			stream: "BT <FEFF0141006F00640142> Tj ET",
			want:   "Łodł",
		},
		{
			name:   "latin-1 hex string",
			stream: "BT <4B72616BF37720> Tj ET",
			want:   "Kraków",
		},
		{
			name:   "marked content dictionaries are skipped",
			stream: "/Span <</ActualText (ignored)>> BDC BT (seen) Tj ET EMC",
			want:   "seen",
		},
		{
			name:   "comments are skipped",
			stream: "% (not text) Tj\nBT (text) Tj ET",
			want:   "text",
		},
		{
			name:   "no text operators",
			stream: "q 1 0 0 1 0 0 cm Q",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentText([]byte(tt.stream)))
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
