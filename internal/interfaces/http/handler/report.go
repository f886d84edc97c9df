package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	reportapp "github.com/mystique/backend/internal/application/report"
)

// ReportService is the part of report.ReportService the report endpoints call
type ReportService interface {
	Orders(ctx context.Context, filter reportapp.ReportFilter) ([]reportapp.OrderRow, error)
	Users(ctx context.Context, filter reportapp.ReportFilter) ([]reportapp.UserRow, error)
	Export(ctx context.Context, kind reportapp.Kind, format reportapp.Format, filter reportapp.ReportFilter) (*reportapp.ExportResult, error)
}

// ReportHandler serves the admin reports. Without a format the rows are returned as JSON
// for on-screen display; with one, the rendered file is sent as a download
type ReportHandler struct {
	BaseHandler
	reportService ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Orders godoc
// @Summary      Orders report
// @Tags         report
// @Produce      json,text/csv,application/pdf
// @Param        format query string false "csv, xlsx or pdf; omit for JSON rows"
// @Param        search query string false "Order id or customer name contains"
// @Param        from query string false "Placed on or after (YYYY-MM-DD)"
// @Param        to query string false "Placed on or before (YYYY-MM-DD)"
// @Success      200 {object} dto.Response{data=[]reportapp.OrderRow}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /report/orders [get]
func (h *ReportHandler) Orders(c *gin.Context) {
	filter, ok := h.bindReportFilter(c)
	if !ok {
		return
	}
	if filter.Format != "" {
		h.export(c, reportapp.KindOrders, filter)
		return
	}

	rows, err := h.reportService.Orders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Users godoc
// @Summary      Users report
// @Tags         report
// @Produce      json,text/csv,application/pdf
// @Param        format query string false "csv, xlsx or pdf; omit for JSON rows"
// @Param        search query string false "Name or email contains"
// @Param        from query string false "Joined on or after (YYYY-MM-DD)"
// @Param        to query string false "Joined on or before (YYYY-MM-DD)"
// @Success      200 {object} dto.Response{data=[]reportapp.UserRow}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /report/users [get]
func (h *ReportHandler) Users(c *gin.Context) {
	filter, ok := h.bindReportFilter(c)
	if !ok {
		return
	}
	if filter.Format != "" {
		h.export(c, reportapp.KindUsers, filter)
		return
	}

	rows, err := h.reportService.Users(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

func (h *ReportHandler) bindReportFilter(c *gin.Context) (reportapp.ReportFilter, bool) {
	var filter reportapp.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return filter, false
	}
	return filter, true
}

func (h *ReportHandler) export(c *gin.Context, kind reportapp.Kind, filter reportapp.ReportFilter) {
	result, err := h.reportService.Export(c.Request.Context(), kind, reportapp.Format(filter.Format), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("X-Report-Rows", strconv.Itoa(result.Rows))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
