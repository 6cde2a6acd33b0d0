// Package spreadsheet reads xlsx workbooks for the tabular extraction chain.
package spreadsheet

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.SpreadsheetReader = (*Reader)(nil)

// Reader opens workbooks with excelize.
type Reader struct{}

// NewReader creates a spreadsheet reader.
func NewReader() *Reader {
	return &Reader{}
}

// OpenTabular returns every sheet in workbook order with its cell values.
// Empty trailing cells are dropped by excelize; blank rows are kept.
func (r *Reader) OpenTabular(ctx context.Context, content []byte) ([]domain.Sheet, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty workbook", domain.ErrInvalidInput)
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidInput, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Debug("close workbook: %v", err)
		}
	}()

	names := f.GetSheetList()
	sheets := make([]domain.Sheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheets = append(sheets, domain.Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}
