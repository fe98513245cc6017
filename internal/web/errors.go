package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/angelofallars/htmx-go"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/viewmodel"
)

// HTTPError represents an HTTP error with a status code
type HTTPError struct {
	Code    int
	Message string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// statusFor maps domain sentinels onto HTTP errors.
func statusFor(err error) HTTPError {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, content.ErrUnknownSection):
		return HTTPError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, ErrUnknownPageLoad):
		return HTTPError{Code: http.StatusConflict, Message: "page expired, reload it"}
	case errors.Is(err, qr.ErrUnsupportedWidth):
		return HTTPError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, qr.ErrNotReady):
		return HTTPError{Code: http.StatusNotFound, Message: "qr code is not ready"}
	case errors.Is(err, viewmodel.ErrNoAudio):
		return HTTPError{Code: http.StatusConflict, Message: "this page has no audio"}
	}
	return HTTPError{Code: http.StatusInternalServerError, Message: "internal server error"}
}

func errorHandler(logger *slog.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		he := statusFor(err)
		level := slog.LevelWarn
		if he.Code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", he.Code,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		if errors.Is(err, ErrUnknownPageLoad) {
			// the document's state is gone; have htmx load a fresh one
			if err := htmx.NewResponse().Refresh(true).Write(w); err != nil {
				return
			}
		}
		http.Error(w, he.Message, he.Code)
	}
}
