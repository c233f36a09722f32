package util

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/dense-analysis/stockwarp/internal/form"
	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/dense-analysis/stockwarp/internal/template"
)

// Env holds the services request handlers use.
type Env struct {
	Ledger   *ledger.Service
	Sessions *session.Store
	Pages    *template.Renderer
}

// HandlerFunc is a request handler which needs an Env.
type HandlerFunc func(env *Env, writer http.ResponseWriter, request *http.Request)

// Handle binds an Env to a handler.
func Handle(env *Env, handler HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		handler(env, writer, request)
	}
}

// PageData is embedded in the data for every page so the layout can show
// who is logged in.
type PageData struct {
	User *model.User
}

// NewPageData loads the logged in user for a request, if any.
func NewPageData(request *http.Request) PageData {
	return PageData{User: session.UserFromContext(request.Context())}
}

type apologyData struct {
	PageData
	Message string
}

func RespondInternalServerError(writer http.ResponseWriter, request *http.Request, err error) {
	writer.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(writer, "Internal Server Error\n")
	logging.FromContext(request.Context()).WithError(err).Error("internal error")
}

func RespondNotFound(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(writer, "404: Not Found\n")
}

func RespondMethodNotAllowed(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusMethodNotAllowed)
	fmt.Fprintf(writer, "405: Method Not Allowed\n")
}

// RenderPage renders a page with a status code.
//
// The page is rendered before anything is written, so a broken template
// produces a 500 response instead of half a page.
func RenderPage(
	env *Env,
	writer http.ResponseWriter,
	request *http.Request,
	status int,
	name string,
	data any,
) {
	var buffer bytes.Buffer

	if err := env.Pages.Render(&buffer, name, data); err != nil {
		RespondInternalServerError(writer, request, err)

		return
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(status)
	buffer.WriteTo(writer)
}

// RespondApology renders the apology page with a message for the user.
func RespondApology(env *Env, writer http.ResponseWriter, request *http.Request, status int, message string) {
	logging.FromContext(request.Context()).
		WithField("status", status).
		WithField("message", message).
		Debug("apology")

	RenderPage(env, writer, request, status, template.Apology, apologyData{
		PageData: NewPageData(request),
		Message:  message,
	})
}

// RespondError shows an apology for errors users caused and a 500 for
// everything else.
func RespondError(env *Env, writer http.ResponseWriter, request *http.Request, err error) {
	var validationErr *form.ValidationError

	switch {
	case errors.As(err, &validationErr):
		RespondApology(env, writer, request, http.StatusOK, validationErr.Message)
	case ledger.IsUserError(err):
		RespondApology(env, writer, request, http.StatusOK, err.Error())
	default:
		RespondInternalServerError(writer, request, err)
	}
}
