package report

import (
	"context"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	appreport "github.com/mystique/backend/internal/application/report"
)

// CSVRenderer writes the rows as RFC 4180 CSV with a header line.
// Summary totals are left out so the file stays one table
type CSVRenderer struct{}

// NewCSVRenderer creates a CSV renderer
func NewCSVRenderer() *CSVRenderer { return &CSVRenderer{} }

func (r *CSVRenderer) Format() appreport.Format { return appreport.FormatCSV }

func (r *CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (r *CSVRenderer) Render(ctx context.Context, doc *appreport.Document, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.Rows == nil {
		return errNoRows
	}
	if err := gocsv.Marshal(doc.Rows, w); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}

var _ appreport.Renderer = (*CSVRenderer)(nil)
