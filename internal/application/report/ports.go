package report

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// SummaryItem is a labelled total printed under the table
type SummaryItem struct {
	Label string
	Value decimal.Decimal
	// Money values are printed with two decimals and the currency sign
	Money bool
}

// Document is a tabular report ready for rendering.
// Rows is a slice of structs whose csv tags name the columns
type Document struct {
	Title       string
	GeneratedAt time.Time
	Rows        interface{}
	Summary     []SummaryItem
}

// Renderer writes a Document in one file format
type Renderer interface {
	Format() Format
	ContentType() string
	Render(ctx context.Context, doc *Document, w io.Writer) error
}
