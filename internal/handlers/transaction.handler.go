package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/abrahamus/iBeekeeper/internal/dedup"
	"github.com/abrahamus/iBeekeeper/internal/model"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"
)

type TransactionService interface {
	Create(ctx context.Context, p model.TransactionCreateRequest) (*model.Transaction, *dedup.Match, error)
	Get(ctx context.Context, userID, id int64) (*model.Transaction, error)
	List(ctx context.Context, userID int64, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Update(ctx context.Context, userID, id int64, p model.TransactionCreateRequest) (*model.Transaction, *dedup.Match, error)
	Delete(ctx context.Context, userID, id int64) error
	Code(ctx context.Context, userID, transactionID int64, class model.CategoryClass, notes string) (*model.CategoryCode, error)
	Uncode(ctx context.Context, userID, transactionID int64) error
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.CreateTransaction)
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.PUT("/transactions/{id}", h.UpdateTransaction)
	e.DELETE("/transactions/{id}", h.DeleteTransaction)
	e.PUT("/transactions/{id}/code", h.CodeTransaction)
	e.DELETE("/transactions/{id}/code", h.UncodeTransaction)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type transactionRequest struct {
	Date             string `json:"date"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	PayeeName        string `json:"payee_name"`
	Merchant         string `json:"merchant"`
	PaymentReference string `json:"payment_reference"`
}

type codeRequest struct {
	Class string `json:"class"`
	Notes string `json:"notes"`
}

type duplicateWarning struct {
	Confidence string  `json:"confidence"`
	MatchedID  int64   `json:"matched_id"`
	Score      float64 `json:"score"`
}

type transactionResponse struct {
	Transaction      *model.Transaction `json:"transaction"`
	DuplicateWarning *duplicateWarning  `json:"duplicate_warning,omitempty"`
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

func warningFrom(match *dedup.Match) *duplicateWarning {
	if match == nil || match.Transaction == nil {
		return nil
	}
	return &duplicateWarning{
		Confidence: string(match.Confidence),
		MatchedID:  match.Transaction.ID,
		Score:      match.Score,
	}
}

func (h *TransactionHandler) parseRequest(ctx *xhttp.RequestCtx, userID int64) (model.TransactionCreateRequest, bool) {
	var req transactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return model.TransactionCreateRequest{}, false
	}

	date, err := parseTime(req.Date)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid date: "+req.Date)
		return model.TransactionCreateRequest{}, false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid amount: "+req.Amount)
		return model.TransactionCreateRequest{}, false
	}

	return model.TransactionCreateRequest{
		UserID:           userID,
		Date:             date,
		Amount:           amount,
		Currency:         req.Currency,
		Description:      req.Description,
		PayeeName:        req.PayeeName,
		Merchant:         req.Merchant,
		PaymentReference: req.PaymentReference,
	}, true
}

func (h *TransactionHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	p, ok := h.parseRequest(ctx, userID)
	if !ok {
		return
	}

	txn, match, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, transactionResponse{
		Transaction:      txn,
		DuplicateWarning: warningFrom(match),
	})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := h.svc.Get(ctx, userID, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}

	var f model.TransactionFilter
	if v := query(ctx, "status"); v != "" {
		status := model.ReconcileStatus(v)
		f.Status = &status
	}
	if v := query(ctx, "class"); v != "" {
		class := model.CategoryClass(v)
		f.Class = &class
	}
	if v := query(ctx, "currency"); v != "" {
		f.Currency = &v
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "search"); v != "" {
		f.Search = &v
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, userID, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{Items: items, Total: total})
}

func (h *TransactionHandler) UpdateTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}
	p, ok := h.parseRequest(ctx, userID)
	if !ok {
		return
	}

	txn, match, err := h.svc.Update(ctx, userID, id, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionResponse{
		Transaction:      txn,
		DuplicateWarning: warningFrom(match),
	})
}

func (h *TransactionHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := h.svc.Delete(ctx, userID, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func (h *TransactionHandler) CodeTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}
	var req codeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	code, err := h.svc.Code(ctx, userID, id, model.CategoryClass(req.Class), req.Notes)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, code)
}

func (h *TransactionHandler) UncodeTransaction(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := h.svc.Uncode(ctx, userID, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}
