// Package trade handles quotes and the requests which move money and shares.
package trade

import (
	"net/http"

	"github.com/dense-analysis/stockwarp/internal/form"
	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/dense-analysis/stockwarp/internal/template"
	"github.com/sirupsen/logrus"
)

type QuotedPageData struct {
	util.PageData
	Quote model.Quote
}

type SellPageData struct {
	util.PageData
	Holdings []model.Holding
}

// tradeForm holds a parsed buy or sell form.
type tradeForm struct {
	symbol string
	shares int64
}

// parseTradeForm reads shares before the symbol, so an invalid number of
// shares is reported first.
func parseTradeForm(request *http.Request) (tradeForm, error) {
	request.ParseForm()

	var parsed tradeForm
	var err error

	if parsed.shares, err = form.PositiveInt("shares", request.Form.Get("shares")); err != nil {
		return parsed, ledger.ErrInvalidQuantity
	}

	if parsed.symbol, err = form.Symbol("symbol", request.Form.Get("symbol")); err != nil {
		return parsed, err
	}

	return parsed, nil
}

func logTransaction(request *http.Request, transaction model.Transaction) {
	logging.FromContext(request.Context()).WithFields(logrus.Fields{
		"transaction_id": transaction.ID,
		"type":           transaction.Type,
		"symbol":         transaction.Symbol,
		"shares":         transaction.Quantity,
		"price":          transaction.Price.String(),
	}).Info("transaction completed")
}

func HandleViewQuoteForm(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	util.RenderPage(env, writer, request, http.StatusOK, template.Quote, util.NewPageData(request))
}

func HandleQuote(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	request.ParseForm()

	symbol, err := form.Symbol("symbol", request.Form.Get("symbol"))

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	quote, err := env.Ledger.Lookup(request.Context(), symbol)

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	util.RenderPage(env, writer, request, http.StatusOK, template.Quoted, QuotedPageData{
		PageData: util.NewPageData(request),
		Quote:    quote,
	})
}

func HandleViewBuyForm(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	util.RenderPage(env, writer, request, http.StatusOK, template.Buy, util.NewPageData(request))
}

func HandleBuy(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	user := session.UserFromContext(request.Context())
	parsed, err := parseTradeForm(request)

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	transaction, err := env.Ledger.Buy(request.Context(), user.ID, parsed.symbol, parsed.shares)

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	logTransaction(request, transaction)
	http.Redirect(writer, request, "/", http.StatusFound)
}

func HandleViewSellForm(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	user := session.UserFromContext(request.Context())
	holdingList, err := env.Ledger.Holdings(request.Context(), user.ID)

	if err != nil {
		util.RespondInternalServerError(writer, request, err)

		return
	}

	util.RenderPage(env, writer, request, http.StatusOK, template.Sell, SellPageData{
		PageData: util.NewPageData(request),
		Holdings: holdingList,
	})
}

func HandleSell(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	user := session.UserFromContext(request.Context())
	parsed, err := parseTradeForm(request)

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	transaction, err := env.Ledger.Sell(request.Context(), user.ID, parsed.symbol, parsed.shares)

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	logTransaction(request, transaction)
	http.Redirect(writer, request, "/", http.StatusFound)
}

func HandleViewAddCashForm(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	util.RenderPage(env, writer, request, http.StatusOK, template.AddCash, util.NewPageData(request))
}

func HandleAddCash(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	user := session.UserFromContext(request.Context())
	request.ParseForm()

	amount, err := form.PositiveInt("quantity", request.Form.Get("quantity"))

	if err != nil {
		util.RespondError(env, writer, request, ledger.ErrInvalidAmount)

		return
	}

	updated, err := env.Ledger.AddCash(request.Context(), user.ID, amount)

	if err != nil {
		util.RespondError(env, writer, request, err)

		return
	}

	logging.FromContext(request.Context()).
		WithField("amount", amount).
		WithField("cash", updated.Cash.String()).
		Info("cash added")

	http.Redirect(writer, request, "/", http.StatusFound)
}
