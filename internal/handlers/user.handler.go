package handlers

import (
	"context"
	"errors"

	"github.com/abrahamus/iBeekeeper/internal/model"
	"github.com/abrahamus/iBeekeeper/internal/services"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
	"github.com/fasthttp/router"
)

type UserService interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

type UserHandler struct {
	svc UserService
}

func RegisterUserRoutes(e *router.Group, h *UserHandler) {
	e.POST("/users", h.RegisterUser)
	e.GET("/users/me", h.GetCurrentUser)
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) RegisterUser(ctx *xhttp.RequestCtx) {
	var req registerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	user, err := h.svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEmail) || errors.Is(err, services.ErrPasswordTooWeak) {
			writeError(ctx, xhttp.StatusUnprocessableEntity, err.Error())
			return
		}
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, user)
}

func (h *UserHandler) GetCurrentUser(ctx *xhttp.RequestCtx) {
	userID, ok := authUserID(ctx)
	if !ok {
		return
	}

	user, err := h.svc.Get(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, user)
}
