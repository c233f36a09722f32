// Package lax implements tools for building easy read only JSON APIs.
//
//	    ^ ^
//	("\(-_-)/")
//	)(       )(
//	((...) (...))
//
// Take it easy!
package lax

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// A flag for debugging the server.
var debug bool

// EnableDebugMode enables debugging for the API, so error details are shown.
func EnableDebugMode() {
	debug = true
}

// DisableDebugMode disables debugging for the API, so error details are hidden.
func DisableDebugMode() {
	debug = false
}

// DebugModeEnabled returns `true` if debug mode is enabled.
func DebugModeEnabled() bool {
	return debug
}

// Request wraps http.Request to provide convenience methods.
type Request struct {
	*http.Request
}

// Query returns a trimmed query string parameter.
func (request *Request) Query(name string) string {
	return strings.TrimSpace(request.URL.Query().Get(name))
}

// MethodHandler is a handler for an HTTP method.
//
// Handlers return a *Response, an error, or data to encode with a 200
// status.
type MethodHandler = func(request *Request) any

// View represents a view for a RESTful API.
type View struct {
	// The handler for HEAD requests.
	Head MethodHandler
	// The handler for GET requests.
	Get MethodHandler
}

// Response represents a response to return.
type Response struct {
	Status int
	Data   any
}

// IssueDescription is an issue created with Issue.
type IssueDescription struct {
	Path    string `json:"path"`
	Problem string `json:"problem"`
}

// Issue creates an issue for use with MakeErrorListResponse.
func Issue(path, problem string) IssueDescription {
	return IssueDescription{path, problem}
}

// MakeResponse creates a response with a status code and data.
func MakeResponse(status int, data any) *Response {
	return &Response{status, data}
}

// MakeErrorListResponse creates a 400 error response from parts.
func MakeErrorListResponse(parts ...IssueDescription) *Response {
	return &Response{http.StatusBadRequest, parts}
}

// MakeForbiddenResponse creates a 403 response.
func MakeForbiddenResponse() *Response {
	return &Response{http.StatusForbidden, "Forbidden"}
}

// MakeNotFoundResponse creates a 404 response.
func MakeNotFoundResponse() *Response {
	return &Response{http.StatusNotFound, "Not Found"}
}

// A default handler for handling methods that are not allowed.
func methodNotAllowedHandler(request *Request) any {
	return &Response{http.StatusMethodNotAllowed, "Method Not Allowed"}
}

// Get the handler for the HTTP request method.
func dispatch(view *View, requestMethod string) MethodHandler {
	var handler MethodHandler

	switch {
	case strings.EqualFold(requestMethod, http.MethodGet):
		handler = view.Get
	case strings.EqualFold(requestMethod, http.MethodHead):
		handler = view.Head

		if handler == nil {
			handler = view.Get
		}
	}

	if handler == nil {
		handler = methodNotAllowedHandler
	}

	return handler
}

// Normalise response data so we can consume it.
func normalise(response any) (*Response, error) {
	switch v := response.(type) {
	case *Response:
		return v, nil
	case error:
		return &Response{http.StatusInternalServerError, nil}, v
	default:
		return &Response{http.StatusOK, v}, nil
	}
}

// ErrorHook is called with errors handlers return, so they can be logged.
type ErrorHook = func(request *http.Request, err error)

// Wrap creates an HandlerFunc from a View.
func Wrap(view View, onError ErrorHook) http.HandlerFunc {
	return func(writer http.ResponseWriter, httpRequest *http.Request) {
		request := Request{httpRequest}
		method := dispatch(&view, request.Method)
		response, responseErr := normalise(method(&request))

		if responseErr != nil {
			if onError != nil {
				onError(httpRequest, responseErr)
			}

			if debug {
				http.Error(writer, responseErr.Error(), response.Status)
			} else {
				http.Error(writer, "Internal Server Error", response.Status)
			}

			return
		}

		// Encode first so a failure can still produce a 500.
		var body bytes.Buffer
		outputEncoder := json.NewEncoder(&body)
		outputEncoder.SetEscapeHTML(false)

		if err := outputEncoder.Encode(response.Data); err != nil {
			if onError != nil {
				onError(httpRequest, err)
			}

			http.Error(writer, "Internal Server Error", http.StatusInternalServerError)

			return
		}

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(response.Status)

		if request.Method != http.MethodHead {
			body.WriteTo(writer)
		}
	}
}
