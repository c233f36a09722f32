package portfolio

import (
	"net/http"

	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/internal/session"
	"github.com/dense-analysis/stockwarp/internal/template"
)

type PortfolioPageData struct {
	util.PageData
	Portfolio model.Portfolio
}

type HistoryPageData struct {
	util.PageData
	Transactions []model.Transaction
}

func HandlePortfolio(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	user := session.UserFromContext(request.Context())
	portfolio, err := env.Ledger.Portfolio(request.Context(), user.ID)

	if err != nil {
		util.RespondInternalServerError(writer, request, err)

		return
	}

	util.RenderPage(env, writer, request, http.StatusOK, template.Index, PortfolioPageData{
		PageData:  util.NewPageData(request),
		Portfolio: portfolio,
	})
}

func HandleHistory(env *util.Env, writer http.ResponseWriter, request *http.Request) {
	user := session.UserFromContext(request.Context())
	transactionList, err := env.Ledger.History(request.Context(), user.ID)

	if err != nil {
		util.RespondInternalServerError(writer, request, err)

		return
	}

	util.RenderPage(env, writer, request, http.StatusOK, template.History, HistoryPageData{
		PageData:     util.NewPageData(request),
		Transactions: transactionList,
	})
}
