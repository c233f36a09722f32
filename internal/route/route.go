// Package route connects URLs to request handlers.
package route

import (
	"net/http"

	"github.com/dense-analysis/stockwarp/internal/route/api"
	"github.com/dense-analysis/stockwarp/internal/route/auth"
	"github.com/dense-analysis/stockwarp/internal/route/middleware"
	"github.com/dense-analysis/stockwarp/internal/route/portfolio"
	"github.com/dense-analysis/stockwarp/internal/route/trade"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/gorilla/mux"
)

// NewRouter builds the router for the whole site.
//
// Static files are served from `staticDir` when it is not empty.
func NewRouter(env *util.Env, staticDir string) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(middleware.Standard)
	// mux skips middleware for unmatched requests.
	router.NotFoundHandler = middleware.Standard(http.HandlerFunc(util.RespondNotFound))
	router.MethodNotAllowedHandler = middleware.Standard(http.HandlerFunc(util.RespondMethodNotAllowed))

	router.HandleFunc("/login", util.Handle(env, auth.HandleViewLoginForm)).Methods("GET")
	router.HandleFunc("/login", util.Handle(env, auth.HandleLogin)).Methods("POST")
	router.HandleFunc("/logout", util.Handle(env, auth.HandleLogout)).Methods("GET", "POST")
	router.HandleFunc("/register", util.Handle(env, auth.HandleViewRegisterForm)).Methods("GET")
	router.HandleFunc("/register", util.Handle(env, auth.HandleRegister)).Methods("POST")

	router.HandleFunc("/api/portfolio", api.HandlePortfolio(env)).Methods("GET", "HEAD")
	router.HandleFunc("/api/history", api.HandleHistory(env)).Methods("GET", "HEAD")
	router.HandleFunc("/api/quote", api.HandleQuote(env)).Methods("GET", "HEAD")

	if staticDir != "" {
		fileServer := http.FileServer(http.Dir(staticDir))
		router.PathPrefix("/static/").
			Handler(http.StripPrefix("/static/", fileServer))
	}

	protected := router.NewRoute().Subrouter()
	protected.Use(auth.RequireUser(env))

	protected.HandleFunc("/", util.Handle(env, portfolio.HandlePortfolio)).Methods("GET")
	protected.HandleFunc("/history", util.Handle(env, portfolio.HandleHistory)).Methods("GET")
	protected.HandleFunc("/quote", util.Handle(env, trade.HandleViewQuoteForm)).Methods("GET")
	protected.HandleFunc("/quote", util.Handle(env, trade.HandleQuote)).Methods("POST")
	protected.HandleFunc("/buy", util.Handle(env, trade.HandleViewBuyForm)).Methods("GET")
	protected.HandleFunc("/buy", util.Handle(env, trade.HandleBuy)).Methods("POST")
	protected.HandleFunc("/sell", util.Handle(env, trade.HandleViewSellForm)).Methods("GET")
	protected.HandleFunc("/sell", util.Handle(env, trade.HandleSell)).Methods("POST")
	protected.HandleFunc("/add_cash", util.Handle(env, trade.HandleViewAddCashForm)).Methods("GET")
	protected.HandleFunc("/add_cash", util.Handle(env, trade.HandleAddCash)).Methods("POST")

	return router
}
