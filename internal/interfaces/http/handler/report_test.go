package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reportapp "github.com/mystique/backend/internal/application/report"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportService is a mock implementation of ReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Orders(ctx context.Context, filter reportapp.ReportFilter) ([]reportapp.OrderRow, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]reportapp.OrderRow), args.Error(1)
}

func (m *MockReportService) Users(ctx context.Context, filter reportapp.ReportFilter) ([]reportapp.UserRow, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]reportapp.UserRow), args.Error(1)
}

func (m *MockReportService) Export(ctx context.Context, kind reportapp.Kind, format reportapp.Format, filter reportapp.ReportFilter) (*reportapp.ExportResult, error) {
	args := m.Called(ctx, kind, format, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reportapp.ExportResult), args.Error(1)
}

func setupReportRouter(svc ReportService) *gin.Engine {
	h := NewReportHandler(svc)
	router := gin.New()
	group := router.Group("/report", asUser(uuid.New(), "admin"))
	group.GET("/orders", h.Orders)
	group.GET("/users", h.Users)
	return router
}

func TestReportHandler_OrdersJSON(t *testing.T) {
	svc := new(MockReportService)
	svc.On("Orders", mock.Anything, mock.MatchedBy(func(f reportapp.ReportFilter) bool {
		return f.Search == "ada" && f.From != nil && f.From.Day() == 2
	})).Return([]reportapp.OrderRow{{OrderID: "o-1", PaymentStatus: "Paid"}}, nil)

	w := doJSON(setupReportRouter(svc), http.MethodGet, "/report/orders?search=ada&from=2026-03-02", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decodeResponse(t, w).Data.([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Paid", rows[0].(map[string]any)["paymentStatus"])
	svc.AssertExpectations(t)
}

func TestReportHandler_UsersExport(t *testing.T) {
	svc := new(MockReportService)
	svc.On("Export", mock.Anything, reportapp.KindUsers, reportapp.FormatCSV, mock.Anything).
		Return(&reportapp.ExportResult{
			Filename:    "users-report-2026-03-02.csv",
			ContentType: "text/csv; charset=utf-8",
			Data:        []byte("User ID,Name,Email,Join Date\n"),
		}, nil)

	w := doJSON(setupReportRouter(svc), http.MethodGet, "/report/users?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="users-report-2026-03-02.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "User ID,Name,Email,Join Date\n", w.Body.String())
	svc.AssertExpectations(t)
}

func TestReportHandler_BadFormat(t *testing.T) {
	svc := new(MockReportService)
	w := doJSON(setupReportRouter(svc), http.MethodGet, "/report/orders?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReportHandler_RendererMissing(t *testing.T) {
	svc := new(MockReportService)
	svc.On("Export", mock.Anything, reportapp.KindOrders, reportapp.FormatPDF, mock.Anything).
		Return(nil, shared.NewDomainError("INVALID_FORMAT", "Unsupported report format"))

	w := doJSON(setupReportRouter(svc), http.MethodGet, "/report/orders?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FORMAT", decodeResponse(t, w).Error.Code)
}
