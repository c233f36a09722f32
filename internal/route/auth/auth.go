package auth

import (
	"errors"
	"net/http"

	"github.com/dense-analysis/stockwarp/internal/form"
	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/dense-analysis/stockwarp/internal/template"
	"github.com/gorilla/mux"
)

// RequireUser redirects to the login page unless a user is logged in.
//
// The user is loaded on every request and stored in the request context.
func RequireUser(env *util.Env) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			userID, ok := env.Sessions.UserID(request)

			if !ok {
				http.Redirect(writer, request, "/login", http.StatusFound)

				return
			}

			user, err := env.Ledger.User(request.Context(), userID)

			if err != nil {
				if errors.Is(err, ledger.ErrUserNotFound) {
					http.Redirect(writer, request, "/login", http.StatusFound)
				} else {
					util.RespondInternalServerError(writer, request, err)
				}

				return
			}

			ctx := session.WithUser(request.Context(), &user)
			ctx = logging.WithEntry(ctx, logging.FromContext(ctx).WithField("user_id", user.ID))

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

func clearSession(env *util.Env, writer http.ResponseWriter, request *http.Request) bool {
	if err := env.Sessions.Clear(writer, request); err != nil {
		util.RespondInternalServerError(writer, request, err)

		return false
	}

	return true
}

func HandleViewLoginForm(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	if clearSession(env, writer, request) {
		util.RenderPage(env, writer, request, http.StatusOK, template.Login, util.PageData{})
	}
}

func HandleLogin(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	request.ParseForm()

	username, err := form.Required("username", request.Form.Get("username"))
	password := ""

	if err == nil {
		password, err = form.Required("password", request.Form.Get("password"))
	}

	if err == nil {
		var user model.User

		if user, err = env.Ledger.Authenticate(request.Context(), username, password); err == nil {
			if err := env.Sessions.SaveUserID(writer, request, user.ID); err != nil {
				util.RespondInternalServerError(writer, request, err)

				return
			}

			http.Redirect(writer, request, "/", http.StatusFound)

			return
		}

		if !errors.Is(err, ledger.ErrInvalidCredentials) {
			util.RespondInternalServerError(writer, request, err)

			return
		}
	}

	message := err.Error()

	var validationErr *form.ValidationError

	if errors.As(err, &validationErr) {
		message = validationErr.Message
	}

	if clearSession(env, writer, request) {
		util.RespondApology(env, writer, request, http.StatusForbidden, message)
	}
}

func HandleLogout(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	if clearSession(env, writer, request) {
		http.Redirect(writer, request, "/", http.StatusFound)
	}
}

func HandleViewRegisterForm(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	if clearSession(env, writer, request) {
		util.RenderPage(env, writer, request, http.StatusOK, template.Register, util.PageData{})
	}
}

func HandleRegister(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	request.ParseForm()

	user, err := env.Ledger.Register(
		request.Context(),
		request.Form.Get("username"),
		request.Form.Get("password"),
		request.Form.Get("confirmation"),
	)

	if err != nil {
		if clearSession(env, writer, request) {
			util.RespondError(env, writer, request, err)
		}

		return
	}

	logging.FromContext(request.Context()).WithField("user_id", user.ID).Info("user registered")

	if err := env.Sessions.SaveUserID(writer, request, user.ID); err != nil {
		util.RespondInternalServerError(writer, request, err)

		return
	}

	http.Redirect(writer, request, "/", http.StatusFound)
}
