package handlers

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/services"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/fasthttp/router"
)

type ReportService interface {
	Summarize(ctx context.Context, userID int64, start, end time.Time) (map[string]services.Totals, error)
	ExportCSV(ctx context.Context, userID int64, start, end time.Time, w io.Writer) error
}

type ReportHandler struct {
	svc ReportService
}

func RegisterReportRoutes(e *router.Group, h *ReportHandler) {
	e.GET("/reports/summary", h.GetSummary)
	e.GET("/reports/export", h.ExportCSV)
}

func NewReportHandler(svc ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func reportWindow(ctx *xhttp.RequestCtx) (time.Time, time.Time, bool) {
	from, err := parseTime(query(ctx, "from"))
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "query parameter \"from\" must be a date")
		return time.Time{}, time.Time{}, false
	}
	to, err := parseTime(query(ctx, "to"))
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "query parameter \"to\" must be a date")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *ReportHandler) GetSummary(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	from, to, ok := reportWindow(ctx)
	if !ok {
		return
	}

	report, err := h.svc.Summarize(ctx, userID, from, to)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, report)
}

func (h *ReportHandler) ExportCSV(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	from, to, ok := reportWindow(ctx)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.svc.ExportCSV(ctx, userID, from, to, &buf); err != nil {
		writeServiceError(ctx, err)
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", "attachment; filename=\"transactions.csv\"")
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBody(buf.Bytes())
}
