package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
	appreport "github.com/mystique/backend/internal/application/report"
	"github.com/shopspring/decimal"
)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	xlsxColWidth  = 22
	headerStyleJS = `{"font":{"bold":true},"fill":{"type":"pattern","color":["#E0E0E0"],"pattern":1}}`
	totalStyleJS  = `{"font":{"bold":true}}`
)

// XLSXRenderer writes the rows to a single worksheet, with the summary
// totals below the table. Numeric cells are stored as numbers
type XLSXRenderer struct{}

// NewXLSXRenderer creates an XLSX renderer
func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

func (r *XLSXRenderer) Format() appreport.Format { return appreport.FormatXLSX }

func (r *XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (r *XLSXRenderer) Render(ctx context.Context, doc *appreport.Document, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := tableOf(doc)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheet := sheetName(doc.Title)
	f.SetSheetName(defaultSheet, sheet)

	for c, h := range t.Headers {
		f.SetCellValue(sheet, cellName(c, 1), h)
	}
	if headerStyle, err := f.NewStyle(headerStyleJS); err == nil && len(t.Headers) > 0 {
		f.SetCellStyle(sheet, cellName(0, 1), cellName(len(t.Headers)-1, 1), headerStyle)
	}

	for i, rec := range t.Records {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for c, v := range rec {
			f.SetCellValue(sheet, cellName(c, i+2), cellValue(v))
		}
	}

	if len(doc.Summary) > 0 {
		row := len(t.Records) + 3
		totalStyle, styleErr := f.NewStyle(totalStyleJS)
		for i, item := range doc.Summary {
			label := cellName(0, row+i)
			f.SetCellValue(sheet, label, item.Label)
			if styleErr == nil {
				f.SetCellStyle(sheet, label, label, totalStyle)
			}
			v, _ := item.Value.Float64()
			f.SetCellValue(sheet, cellName(1, row+i), v)
		}
	}

	if n := len(t.Headers); n > 0 {
		f.SetColWidth(sheet, excelize.ToAlphaString(0), excelize.ToAlphaString(n-1), xlsxColWidth)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write xlsx: %w", err)
	}
	return nil
}

// cellName converts a zero-based column and one-based row to an A1 reference
func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", excelize.ToAlphaString(col), row)
}

// cellValue keeps amounts numeric so spreadsheet formulas work on them
func cellValue(v string) interface{} {
	if v == "" || strings.ContainsAny(v, "-eE") {
		return v
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return v
	}
	f, _ := d.Float64()
	return f
}

func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		return defaultSheet
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

var _ appreport.Renderer = (*XLSXRenderer)(nil)
