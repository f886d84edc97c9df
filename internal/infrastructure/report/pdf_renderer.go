package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	appreport "github.com/mystique/backend/internal/application/report"
	"go.uber.org/zap"
)

const (
	defaultPDFTimeout = 30 * time.Second
	// A4 in inches, which is what Chrome's print API expects
	a4Width  = 8.27
	a4Height = 11.69
	margin   = 0.4
)

// PDFConfig contains configuration for the chromedp PDF renderer
type PDFConfig struct {
	// ExecPath is the Chrome/Chromium binary. Empty uses chromedp's lookup
	ExecPath string
	// RemoteURL is the DevTools websocket URL of a remote browser (optional)
	RemoteURL string
	Timeout   time.Duration
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox     bool
	LocaleTag     string
	CompanyHeader string
}

// PDFRenderer prints an HTML table to PDF through headless Chrome
type PDFRenderer struct {
	config PDFConfig
	tmpl   *template.Template
	logger *zap.Logger

	once        sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewPDFRenderer creates the renderer. The browser is launched on first use
func NewPDFRenderer(config PDFConfig, logger *zap.Logger) *PDFRenderer {
	if config.Timeout <= 0 {
		config.Timeout = defaultPDFTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFRenderer{
		config: config,
		tmpl:   template.Must(template.New("report").Parse(reportTemplate)),
		logger: logger,
	}
}

func (r *PDFRenderer) Format() appreport.Format { return appreport.FormatPDF }

func (r *PDFRenderer) ContentType() string { return "application/pdf" }

func (r *PDFRenderer) Render(ctx context.Context, doc *appreport.Document, w io.Writer) error {
	html, err := r.buildHTML(doc)
	if err != nil {
		return err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocator(),
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// Tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4Width).
				WithPaperHeight(a4Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("report: pdf rendering timed out after %v: %w", r.config.Timeout, err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return fmt.Errorf("report: render pdf: %w", err)
	}
	if len(pdf) == 0 {
		return errors.New("report: generated PDF is empty")
	}

	r.logger.Debug("PDF rendered",
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)))
	_, err = w.Write(pdf)
	return err
}

// Close shuts the browser down
func (r *PDFRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func (r *PDFRenderer) allocator() context.Context {
	r.once.Do(func() {
		if r.config.RemoteURL != "" {
			r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
			return
		}
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("font-render-hinting", "none"),
		)
		if r.config.NoSandbox {
			opts = append(opts, chromedp.NoSandbox)
		}
		if r.config.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
		}
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return r.allocCtx
}

type summaryLine struct {
	Label string
	Value string
}

type pageData struct {
	Title       string
	Company     string
	GeneratedAt string
	Headers     []string
	Records     [][]string
	Summary     []summaryLine
}

func (r *PDFRenderer) buildHTML(doc *appreport.Document) (string, error) {
	t, err := tableOf(doc)
	if err != nil {
		return "", err
	}
	fmtr := newSummaryFormatter(r.config.LocaleTag)
	data := pageData{
		Title:       doc.Title,
		Company:     r.config.CompanyHeader,
		GeneratedAt: doc.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
		Headers:     t.Headers,
		Records:     t.Records,
	}
	for _, item := range doc.Summary {
		data.Summary = append(data.Summary, summaryLine{Label: item.Label, Value: fmtr.format(item)})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: execute template: %w", err)
	}
	return buf.String(), nil
}

const reportTemplate = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 10px; color: #222; }
h1 { font-size: 16px; margin: 0 0 4px; }
.meta { color: #666; margin-bottom: 12px; }
table { width: 100%; border-collapse: collapse; }
th { background: #2d2d2d; color: #fff; text-align: left; padding: 5px; }
td { border-bottom: 1px solid #ddd; padding: 4px 5px; }
tr:nth-child(even) td { background: #f6f6f6; }
.summary { margin-top: 14px; }
.summary td { border: none; font-weight: bold; }
</style></head>
<body>
{{if .Company}}<div class="meta">{{.Company}}</div>{{end}}
<h1>{{.Title}}</h1>
<div class="meta">Generated {{.GeneratedAt}}</div>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Records}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{else}}<tr><td colspan="{{len .Headers}}">No records</td></tr>{{end}}</tbody>
</table>
{{if .Summary}}<table class="summary">{{range .Summary}}<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>{{end}}</table>{{end}}
</body></html>`

var _ appreport.Renderer = (*PDFRenderer)(nil)
