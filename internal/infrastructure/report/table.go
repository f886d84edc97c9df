// Package report renders tabular admin reports as CSV, XLSX and PDF files.
package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/gocarina/gocsv"
	appreport "github.com/mystique/backend/internal/application/report"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var errNoRows = errors.New("report: document has no rows value")

// table is a document flattened to header and cell strings
type table struct {
	Headers []string
	Records [][]string
}

// tableOf flattens doc.Rows using the csv struct tags, so every format
// shares the column names and order of the CSV export
func tableOf(doc *appreport.Document) (*table, error) {
	if doc == nil || doc.Rows == nil {
		return nil, errNoRows
	}
	data, err := gocsv.MarshalBytes(doc.Rows)
	if err != nil {
		return nil, fmt.Errorf("report: marshal rows: %w", err)
	}
	all, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("report: read rows: %w", err)
	}
	if len(all) == 0 {
		return nil, errNoRows
	}
	return &table{Headers: all[0], Records: all[1:]}, nil
}

// summaryFormatter prints summary values with locale digit grouping
type summaryFormatter struct {
	printer *message.Printer
	symbol  string
}

func newSummaryFormatter(localeTag string) *summaryFormatter {
	tag, err := language.Parse(localeTag)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return &summaryFormatter{printer: message.NewPrinter(tag), symbol: "$"}
}

func (f *summaryFormatter) format(item appreport.SummaryItem) string {
	if item.Money {
		v, _ := item.Value.Round(2).Float64()
		return f.symbol + f.printer.Sprintf("%.2f", v)
	}
	return f.printer.Sprintf("%d", item.Value.IntPart())
}
