package auth

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/dense-analysis/stockwarp/internal/route/routetest"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/gorilla/mux"
)

func newRouter(env *util.Env) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/login", util.Handle(env, HandleViewLoginForm)).Methods("GET")
	router.HandleFunc("/login", util.Handle(env, HandleLogin)).Methods("POST")
	router.HandleFunc("/logout", util.Handle(env, HandleLogout)).Methods("GET", "POST")
	router.HandleFunc("/register", util.Handle(env, HandleViewRegisterForm)).Methods("GET")
	router.HandleFunc("/register", util.Handle(env, HandleRegister)).Methods("POST")

	protected := router.PathPrefix("/").Subrouter()
	protected.Use(RequireUser(env))
	protected.HandleFunc("/", func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte("hello " + session.UserFromContext(request.Context()).Username))
	})

	return router
}

// sessionUserID reads the user ID from the cookies a response set.
func sessionUserID(env *util.Env, response *http.Response) (int64, bool) {
	request, _ := http.NewRequest(http.MethodGet, "/", nil)

	for _, cookie := range response.Cookies() {
		if cookie.MaxAge >= 0 {
			request.AddCookie(cookie)
		}
	}

	return env.Sessions.UserID(request)
}

func TestRequireUserRedirectsWithoutSession(t *testing.T) {
	f := routetest.NewFixture(t)

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/", nil, nil)

	if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/login" {
		t.Fatalf("expected a redirect to /login, got %d %q", recorder.Code, recorder.Header().Get("Location"))
	}
}

func TestRequireUserRedirectsForUnknownUser(t *testing.T) {
	f := routetest.NewFixture(t)
	other := routetest.NewFixture(t)
	// Sign a session for a user which only exists in another store.
	_, cookies := other.Login(t, "ghost")

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/", nil, cookies)

	if recorder.Code != http.StatusFound {
		t.Fatalf("expected a redirect, got %d", recorder.Code)
	}
}

func TestRequireUserLoadsUser(t *testing.T) {
	f := routetest.NewFixture(t)
	_, cookies := f.Login(t, "alice")

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/", nil, cookies)

	if recorder.Code != http.StatusOK || recorder.Body.String() != "hello alice" {
		t.Fatalf("unexpected response: %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestLogin(t *testing.T) {
	f := routetest.NewFixture(t)
	user, _ := f.Login(t, "alice")

	recorder := routetest.Serve(newRouter(f.Env), "POST", "/login", url.Values{
		"username": {"alice"},
		"password": {"password"},
	}, nil)

	if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/" {
		t.Fatalf("expected a redirect to /, got %d", recorder.Code)
	}

	if userID, ok := sessionUserID(f.Env, recorder.Result()); !ok || userID != user.ID {
		t.Fatalf("expected a session for user %d, got %d", user.ID, userID)
	}
}

func TestLoginFailures(t *testing.T) {
	f := routetest.NewFixture(t)
	f.Login(t, "alice")

	cases := []struct {
		name     string
		form     url.Values
		expected string
	}{
		{"missing username", url.Values{"password": {"password"}}, "must provide username"},
		{"missing password", url.Values{"username": {"alice"}}, "must provide password"},
		{"wrong password", url.Values{"username": {"alice"}, "password": {"wrong"}}, "invalid username and/or password"},
		{"unknown user", url.Values{"username": {"bob"}, "password": {"password"}}, "invalid username and/or password"},
	}

	for _, c := range cases {
		recorder := routetest.Serve(newRouter(f.Env), "POST", "/login", c.form, nil)

		if recorder.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", c.name, recorder.Code)
		}

		if !strings.Contains(recorder.Body.String(), c.expected) {
			t.Errorf("%s: expected the apology %q", c.name, c.expected)
		}

		if _, ok := sessionUserID(f.Env, recorder.Result()); ok {
			t.Errorf("%s: a session was established", c.name)
		}
	}
}

func TestLoginFormClearsSession(t *testing.T) {
	f := routetest.NewFixture(t)
	_, cookies := f.Login(t, "alice")

	recorder := routetest.Serve(newRouter(f.Env), "GET", "/login", nil, cookies)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	cleared := false

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared = true
		}
	}

	if !cleared {
		t.Fatal("expected the session cookie to be expired")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := routetest.NewFixture(t)
	_, cookies := f.Login(t, "alice")

	for _, method := range []string{"GET", "POST"} {
		for _, requestCookies := range [][]*http.Cookie{cookies, nil} {
			recorder := routetest.Serve(newRouter(f.Env), method, "/logout", nil, requestCookies)

			if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/" {
				t.Fatalf("%s /logout: expected a redirect to /, got %d", method, recorder.Code)
			}
		}
	}
}

func TestRegister(t *testing.T) {
	f := routetest.NewFixture(t)

	recorder := routetest.Serve(newRouter(f.Env), "POST", "/register", url.Values{
		"username":     {"alice"},
		"password":     {"secret"},
		"confirmation": {"secret"},
	}, nil)

	if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/" {
		t.Fatalf("expected a redirect to /, got %d", recorder.Code)
	}

	userID, ok := sessionUserID(f.Env, recorder.Result())

	if !ok {
		t.Fatal("expected registration to log the user in")
	}

	if cash := f.User(t, userID).Cash.String(); cash != "10000" {
		t.Fatalf("expected starting cash of 10000, got %s", cash)
	}
}

func TestRegisterFailures(t *testing.T) {
	f := routetest.NewFixture(t)
	f.Login(t, "taken")

	cases := []struct {
		name     string
		form     url.Values
		expected string
	}{
		{"empty username", url.Values{"password": {"a"}, "confirmation": {"a"}}, "must provide username"},
		{"empty password", url.Values{"username": {"bob"}, "confirmation": {"a"}}, "must provide password and confirmation"},
		{"empty confirmation", url.Values{"username": {"bob"}, "password": {"a"}}, "must provide password and confirmation"},
		{"mismatch", url.Values{"username": {"bob"}, "password": {"a"}, "confirmation": {"b"}}, "passwords don&#39;t match"},
		{"duplicate", url.Values{"username": {"taken"}, "password": {"a"}, "confirmation": {"a"}}, "username already exists"},
	}

	for _, c := range cases {
		recorder := routetest.Serve(newRouter(f.Env), "POST", "/register", c.form, nil)

		if recorder.Code != http.StatusOK {
			t.Errorf("%s: expected an apology with 200, got %d", c.name, recorder.Code)
		}

		if !strings.Contains(recorder.Body.String(), c.expected) {
			t.Errorf("%s: expected the apology %q in %s", c.name, c.expected, recorder.Body.String())
		}

		if _, ok := sessionUserID(f.Env, recorder.Result()); ok {
			t.Errorf("%s: a session was established", c.name)
		}
	}
}
