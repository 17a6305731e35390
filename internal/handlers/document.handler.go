package handlers

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/abrahamus/iBeekeeper/internal/model"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/fasthttp/router"
)

type DocumentService interface {
	Upload(ctx context.Context, userID, transactionID int64, filename string, data []byte) (*model.Document, error)
	Detach(ctx context.Context, userID, transactionID, documentID int64) error
	Delete(ctx context.Context, userID, documentID int64) error
	ListByTransaction(ctx context.Context, userID, transactionID int64) ([]*model.Document, error)
	FilePath(ctx context.Context, userID, documentID int64) (*model.Document, string, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func RegisterDocumentRoutes(e *router.Group, h *DocumentHandler) {
	e.POST("/transactions/{id}/documents", h.UploadDocument)
	e.GET("/transactions/{id}/documents", h.ListDocuments)
	e.DELETE("/transactions/{id}/documents/{doc_id}", h.DetachDocument)
	e.GET("/documents/{id}/file", h.DownloadDocument)
	e.DELETE("/documents/{id}", h.DeleteDocument)
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type documentListResponse struct {
	Items []*model.Document `json:"items"`
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *DocumentHandler) UploadDocument(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	transactionID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
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

	doc, err := h.svc.Upload(ctx, userID, transactionID, header.Filename, data)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, doc)
}

func (h *DocumentHandler) ListDocuments(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	transactionID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}

	docs, err := h.svc.ListByTransaction(ctx, userID, transactionID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, documentListResponse{Items: docs})
}

func (h *DocumentHandler) DetachDocument(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	transactionID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}
	documentID, err := pathID(ctx, "doc_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.svc.Detach(ctx, userID, transactionID, documentID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func (h *DocumentHandler) DownloadDocument(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	documentID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid document id")
		return
	}

	doc, absPath, err := h.svc.FilePath(ctx, userID, documentID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	ctx.Response.Header.Set("Content-Type", "application/pdf")
	ctx.Response.Header.Set("Content-Disposition", "attachment; filename=\""+doc.Filename+"\"")
	ctx.SendFile(absPath)
}

func (h *DocumentHandler) DeleteDocument(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	documentID, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.svc.Delete(ctx, userID, documentID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}
