package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/importer"
	"github.com/abrahamus/iBeekeeper/internal/repository"
	"github.com/abrahamus/iBeekeeper/internal/services"
	"github.com/abrahamus/iBeekeeper/internal/validate"
	xhttp "github.com/abrahamus/iBeekeeper/pkg/http"
)

// UserIDHeader carries the authenticated account. The API sits behind a
// gateway that terminates auth and forwards the resolved user id.
const UserIDHeader = "X-User-Id"

func authUserID(ctx *xhttp.RequestCtx) (int64, bool) {
	raw := string(ctx.Request.Header.Peek(UserIDHeader))
	if raw == "" {
		writeError(ctx, xhttp.StatusUnauthorized, "missing "+UserIDHeader+" header")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(ctx, xhttp.StatusUnauthorized, "invalid "+UserIDHeader+" header")
		return 0, false
	}
	return id, true
}

func pathID(ctx *xhttp.RequestCtx, name string) (int64, error) {
	raw, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(raw, 10, 64)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognized is a server fault: the services mark every rejection of
// client input with one of the sentinels below.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var fieldErr *validate.FieldError
	var rangeErr *validate.RangeError

	switch {
	case errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrDocumentNotFound),
		errors.Is(err, repository.ErrCategoryCodeNotFound),
		errors.Is(err, repository.ErrImportRunNotFound),
		errors.Is(err, repository.ErrImportReviewNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateTransaction),
		errors.Is(err, services.ErrReviewAlreadyDecided),
		errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, importer.ErrImportInProgress):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		writeError(ctx, xhttp.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, services.ErrUnsupportedType):
		writeError(ctx, xhttp.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidCategoryClass),
		errors.Is(err, services.ErrEmptyFile),
		errors.As(err, &fieldErr), errors.As(err, &rangeErr):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	default:
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
