package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/abrahamus/iBeekeeper/internal/model"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/fasthttp/router"
	"github.com/google/uuid"
)

type ImportService interface {
	SubmitCSV(ctx context.Context, userID int64, path string) (*model.ImportRun, error)
	SubmitSync(ctx context.Context, userID int64, since string) (*model.ImportRun, error)
	GetRun(ctx context.Context, userID int64, id string) (*model.ImportRun, error)
	ListPendingReviews(ctx context.Context, userID int64, limit, offset int) ([]*model.ImportReview, int64, error)
	Decide(ctx context.Context, userID, reviewID int64, accept bool) (*model.Transaction, error)
}

type ImportHandler struct {
	svc      ImportService
	stageDir string
}

func RegisterImportRoutes(e *router.Group, h *ImportHandler) {
	e.POST("/imports/csv", h.SubmitCSV)
	e.POST("/imports/sync", h.SubmitSync)
	e.GET("/imports/reviews", h.ListReviews)
	e.POST("/imports/reviews/{id}", h.DecideReview)
	e.GET("/imports/{id}", h.GetRun)
}

// NewImportHandler stages uploaded CSV files under stageDir so the worker
// can read them after the HTTP request is gone.
func NewImportHandler(svc ImportService, stageDir string) *ImportHandler {
	return &ImportHandler{svc: svc, stageDir: stageDir}
}

type syncRequest struct {
	Since string `json:"since"`
}

type decisionRequest struct {
	Decision string `json:"decision"` // accept or reject
}

type reviewListResponse struct {
	Items []*model.ImportReview `json:"items"`
	Total int64                 `json:"total"`
}

func (h *ImportHandler) SubmitCSV(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	data, err := readUpload(header)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(ctx, xhttp.StatusBadRequest, "uploaded file is empty")
		return
	}

	staged := filepath.Join(h.stageDir, uuid.NewString()+".csv")
	if err := os.MkdirAll(h.stageDir, 0o755); err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, "staging upload: "+err.Error())
		return
	}
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, "staging upload: "+err.Error())
		return
	}

	run, err := h.svc.SubmitCSV(ctx, userID, staged)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, run)
}

func (h *ImportHandler) SubmitSync(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}

	var req syncRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	if req.Since != "" {
		if _, err := parseTime(req.Since); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid since date: "+req.Since)
			return
		}
	}

	run, err := h.svc.SubmitSync(ctx, userID, req.Since)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, run)
}

func (h *ImportHandler) GetRun(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		writeError(ctx, xhttp.StatusBadRequest, "invalid import run id")
		return
	}

	run, err := h.svc.GetRun(ctx, userID, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, run)
}

func (h *ImportHandler) ListReviews(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}

	limit, offset := 0, 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}

	items, total, err := h.svc.ListPendingReviews(ctx, userID, limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, reviewListResponse{Items: items, Total: total})
}

func (h *ImportHandler) DecideReview(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	reviewID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid review id")
		return
	}

	var req decisionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Decision != "accept" && req.Decision != "reject" {
		writeError(ctx, xhttp.StatusBadRequest, "decision must be accept or reject")
		return
	}

	txn, err := h.svc.Decide(ctx, userID, reviewID, req.Decision == "accept")
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if txn == nil {
		ctx.Response.SetStatusCode(xhttp.StatusNoContent)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, txn)
}
