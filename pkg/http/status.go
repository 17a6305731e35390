package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusOK                    = fasthttp.StatusOK
	StatusCreated               = fasthttp.StatusCreated
	StatusAccepted              = fasthttp.StatusAccepted
	StatusNoContent             = fasthttp.StatusNoContent
	StatusBadRequest            = fasthttp.StatusBadRequest
	StatusUnauthorized          = fasthttp.StatusUnauthorized
	StatusForbidden             = fasthttp.StatusForbidden
	StatusNotFound              = fasthttp.StatusNotFound
	StatusConflict              = fasthttp.StatusConflict
	StatusRequestTimeout        = fasthttp.StatusRequestTimeout
	StatusRequestEntityTooLarge = fasthttp.StatusRequestEntityTooLarge
	StatusUnsupportedMediaType  = fasthttp.StatusUnsupportedMediaType
	StatusUnprocessableEntity   = fasthttp.StatusUnprocessableEntity
	StatusInternalServerError   = fasthttp.StatusInternalServerError
	StatusServiceUnavailable    = fasthttp.StatusServiceUnavailable
)

// StatusText returns the standard text for an HTTP status code.
func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}
