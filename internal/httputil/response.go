// Package httputil holds the JSON response helpers shared by the API
// handlers. Bodies follow the {"success": ..., "message": ...} envelope used
// by every endpoint.
package httputil

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrResponse is an error body rendered through go-chi/render.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorText string `json:"error,omitempty"`
}

// Render sets the response status.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// Error builds an error body. err, when non-nil, is exposed in "error".
func Error(status int, msg string, err error) render.Renderer {
	resp := &ErrResponse{Err: err, HTTPStatusCode: status, Message: msg}
	if err != nil {
		resp.ErrorText = err.Error()
	}
	return resp
}

// BadRequest is a 400 with msg.
func BadRequest(msg string) render.Renderer {
	return Error(http.StatusBadRequest, msg, nil)
}

// NotFound is a 404 with msg.
func NotFound(msg string) render.Renderer {
	return Error(http.StatusNotFound, msg, nil)
}

// TooLarge is a 413 with msg.
func TooLarge(msg string) render.Renderer {
	return Error(http.StatusRequestEntityTooLarge, msg, nil)
}

// Internal is a 500 carrying err.
func Internal(msg string, err error) render.Renderer {
	return Error(http.StatusInternalServerError, msg, err)
}

// WriteError renders an error body.
func WriteError(w http.ResponseWriter, r *http.Request, e render.Renderer) {
	if err := render.Render(w, r, e); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteJSON writes v as JSON with status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
