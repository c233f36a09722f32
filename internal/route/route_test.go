package route

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/route/routetest"
	"github.com/shopspring/decimal"
)

// liveCookies keeps the cookies a response set which have not expired.
func liveCookies(response *http.Response) []*http.Cookie {
	var cookies []*http.Cookie

	for _, cookie := range response.Cookies() {
		if cookie.MaxAge >= 0 {
			cookies = append(cookies, cookie)
		}
	}

	return cookies
}

func TestTradingSession(t *testing.T) {
	f := routetest.NewFixture(t)
	router := NewRouter(f.Env, "")

	recorder := routetest.Serve(router, "POST", "/register", url.Values{
		"username":     {"alice"},
		"password":     {"secret"},
		"confirmation": {"secret"},
	}, nil)

	if recorder.Code != http.StatusFound {
		t.Fatalf("registration failed with %d", recorder.Code)
	}

	cookies := liveCookies(recorder.Result())

	steps := []struct {
		path string
		form url.Values
	}{
		{"/buy", url.Values{"symbol": {"AAPL"}, "shares": {"10"}}},
		{"/sell", url.Values{"symbol": {"AAPL"}, "shares": {"4"}}},
		{"/add_cash", url.Values{"quantity": {"500"}}},
	}

	for i, step := range steps {
		if i == 1 {
			f.Quotes.Set(model.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromInt(120)})
		}

		recorder = routetest.Serve(router, "POST", step.path, step.form, cookies)

		if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/" {
			t.Fatalf("POST %s: expected a redirect to /, got %d:\n%s", step.path, recorder.Code, recorder.Body.String())
		}
	}

	recorder = routetest.Serve(router, "GET", "/", nil, cookies)
	html := recorder.Body.String()

	// 10000 - 1000 + 480 + 500 in cash, plus 6 shares at 120.
	for _, expected := range []string{"$9,980.00", "$720.00", "$10,700.00"} {
		if !strings.Contains(html, expected) {
			t.Errorf("expected the portfolio to contain %q", expected)
		}
	}

	if recorder.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
		t.Error("expected responses not to be cached")
	}

	if recorder.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request ID")
	}

	recorder = routetest.Serve(router, "GET", "/logout", nil, cookies)

	if recorder.Code != http.StatusFound {
		t.Fatalf("logout failed with %d", recorder.Code)
	}

	recorder = routetest.Serve(router, "GET", "/", nil, liveCookies(recorder.Result()))

	if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/login" {
		t.Fatalf("expected a redirect to /login after logging out, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRedirect(t *testing.T) {
	f := routetest.NewFixture(t)
	router := NewRouter(f.Env, "")

	for _, path := range []string{"/", "/history", "/quote", "/buy", "/sell", "/add_cash"} {
		recorder := routetest.Serve(router, "GET", path, nil, nil)

		if recorder.Code != http.StatusFound || recorder.Header().Get("Location") != "/login" {
			t.Errorf("GET %s: expected a redirect to /login, got %d", path, recorder.Code)
		}
	}
}

func TestPublicRoutes(t *testing.T) {
	f := routetest.NewFixture(t)
	router := NewRouter(f.Env, "")

	for _, path := range []string{"/login", "/register"} {
		if recorder := routetest.Serve(router, "GET", path, nil, nil); recorder.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, recorder.Code)
		}
	}

	if recorder := routetest.Serve(router, "GET", "/api/portfolio", nil, nil); recorder.Code != http.StatusForbidden {
		t.Errorf("expected the API to return 403, got %d", recorder.Code)
	}
}

func TestUnmatchedRequestsUseMiddleware(t *testing.T) {
	f := routetest.NewFixture(t)
	router := NewRouter(f.Env, "")

	cases := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/nope", http.StatusNotFound},
		{"DELETE", "/login", http.StatusMethodNotAllowed},
		{"PUT", "/buy", http.StatusMethodNotAllowed},
	}

	for _, c := range cases {
		recorder := routetest.Serve(router, c.method, c.path, nil, nil)

		if recorder.Code != c.status {
			t.Errorf("%s %s: expected %d, got %d", c.method, c.path, c.status, recorder.Code)
		}

		if recorder.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
			t.Errorf("%s %s: expected the response not to be cached", c.method, c.path)
		}

		if recorder.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s %s: expected a request ID", c.method, c.path)
		}
	}
}
