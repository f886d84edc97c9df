package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mystique/backend/internal/domain/identity"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	dateLayout     = "2006-01-02"
	defaultMaxRows = 10000
)

var (
	errUnknownFormat = shared.NewDomainError("INVALID_FORMAT", "Unsupported report format")
	errUnknownKind   = shared.NewDomainError("INVALID_REPORT", "Unknown report")
)

// ReportService builds the admin order and user reports
type ReportService struct {
	orderRepo trade.OrderRepository
	userRepo  identity.UserRepository
	renderers map[Format]Renderer
	maxRows   int
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(
	orderRepo trade.OrderRepository,
	userRepo identity.UserRepository,
	logger *zap.Logger,
	renderers ...Renderer,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	byFormat := make(map[Format]Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &ReportService{
		orderRepo: orderRepo,
		userRepo:  userRepo,
		renderers: byFormat,
		maxRows:   defaultMaxRows,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMaxRows caps the number of rows a report may contain
func (s *ReportService) SetMaxRows(n int) {
	if n > 0 {
		s.maxRows = n
	}
}

// Formats lists the formats that have a renderer
func (s *ReportService) Formats() []Format {
	out := make([]Format, 0, len(s.renderers))
	for _, f := range []Format{FormatCSV, FormatXLSX, FormatPDF} {
		if _, ok := s.renderers[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Orders returns the order report rows, newest first
func (s *ReportService) Orders(ctx context.Context, filter ReportFilter) ([]OrderRow, error) {
	rows, _, err := s.orderRows(ctx, filter)
	return rows, err
}

// Users returns the user report rows, newest first
func (s *ReportService) Users(ctx context.Context, filter ReportFilter) ([]UserRow, error) {
	users, err := s.userRepo.FindAll(ctx, s.domainFilter(filter))
	if err != nil {
		return nil, err
	}
	rows := make([]UserRow, len(users))
	for i, u := range users {
		rows[i] = UserRow{
			UserID:   u.ID.String(),
			Name:     u.Name,
			Email:    u.Email,
			JoinDate: u.CreatedAt.UTC().Format(dateLayout),
		}
	}
	return rows, nil
}

// Export renders a report in the requested format
func (s *ReportService) Export(ctx context.Context, kind Kind, format Format, filter ReportFilter) (*ExportResult, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, errUnknownFormat
	}

	doc := &Document{GeneratedAt: s.now().UTC()}
	var count int
	switch kind {
	case KindOrders:
		rows, summary, err := s.orderRows(ctx, filter)
		if err != nil {
			return nil, err
		}
		doc.Title = "Orders Report"
		doc.Rows = rows
		doc.Summary = summary
		count = len(rows)
	case KindUsers:
		rows, err := s.Users(ctx, filter)
		if err != nil {
			return nil, err
		}
		doc.Title = "Users Report"
		doc.Rows = rows
		doc.Summary = []SummaryItem{{Label: "Total users", Value: decimal.NewFromInt(int64(len(rows)))}}
		count = len(rows)
	default:
		return nil, errUnknownKind
	}

	var buf bytes.Buffer
	if err := renderer.Render(ctx, doc, &buf); err != nil {
		s.logger.Error("report rendering failed",
			zap.String("report", string(kind)),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("render %s report as %s: %w", kind, format, err)
	}

	s.logger.Info("report exported",
		zap.String("report", string(kind)),
		zap.String("format", string(format)),
		zap.Int("rows", count),
		zap.Int("bytes", buf.Len()),
	)
	return &ExportResult{
		Filename:    fmt.Sprintf("%s-report-%s.%s", kind, doc.GeneratedAt.Format(dateLayout), format),
		ContentType: renderer.ContentType(),
		Data:        buf.Bytes(),
		Rows:        count,
	}, nil
}

func (s *ReportService) orderRows(ctx context.Context, filter ReportFilter) ([]OrderRow, []SummaryItem, error) {
	orders, err := s.orderRepo.FindAll(ctx, s.domainFilter(filter))
	if err != nil {
		return nil, nil, err
	}

	rows := make([]OrderRow, len(orders))
	total := decimal.Zero
	paid := decimal.Zero
	for i := range orders {
		o := &orders[i]
		rows[i] = OrderRow{
			OrderID:       o.ID.String(),
			CustomerName:  o.Address.FullName(),
			PaymentStatus: o.PaymentStatusLabel(),
			Amount:        o.Amount.StringFixed(2),
			Date:          o.CreatedAt.UTC().Format(dateLayout),
			PaymentMethod: string(o.PaymentMethod),
		}
		if o.IsCancelled() {
			continue
		}
		total = total.Add(o.Amount)
		if o.Payment {
			paid = paid.Add(o.Amount)
		}
	}
	summary := []SummaryItem{
		{Label: "Total orders", Value: decimal.NewFromInt(int64(len(rows)))},
		{Label: "Order value", Value: total, Money: true},
		{Label: "Paid revenue", Value: paid, Money: true},
	}
	return rows, summary, nil
}

func (s *ReportService) domainFilter(f ReportFilter) shared.Filter {
	filter := shared.DefaultFilter()
	filter.Page = 1
	filter.PageSize = s.maxRows
	filter.Search = strings.TrimSpace(f.Search)
	return filter.WithDateRange(f.From, f.To)
}
