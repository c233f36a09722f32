// Package api serves read only JSON views of a user's account.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dense-analysis/stockwarp/internal/form"
	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/dense-analysis/stockwarp/internal/route/util"
	"github.com/dense-analysis/stockwarp/pkg/lax"
	"github.com/shopspring/decimal"
)

type Position struct {
	Symbol    string           `json:"symbol"`
	Name      string           `json:"name"`
	Shares    int64            `json:"shares"`
	Price     *decimal.Decimal `json:"price"`
	Value     *decimal.Decimal `json:"value"`
	Available bool             `json:"available"`
}

type Portfolio struct {
	Username  string          `json:"username"`
	Cash      decimal.Decimal `json:"cash"`
	Total     decimal.Decimal `json:"total"`
	Positions []Position      `json:"positions"`
}

type Transaction struct {
	ID     int64                 `json:"id"`
	Type   model.TransactionType `json:"type"`
	Symbol string                `json:"symbol"`
	Shares int64                 `json:"shares"`
	Price  decimal.Decimal       `json:"price"`
	Time   time.Time             `json:"time"`
}

type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

func logError(request *http.Request, err error) {
	logging.FromContext(request.Context()).WithError(err).Error("api error")
}

// loadUser returns the logged in user, or a response to send instead.
func loadUser(env *util.Env, request *lax.Request) (model.User, *lax.Response, error) {
	userID, ok := env.Sessions.UserID(request.Request)

	if !ok {
		return model.User{}, lax.MakeForbiddenResponse(), nil
	}

	user, err := env.Ledger.User(request.Context(), userID)

	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			return model.User{}, lax.MakeForbiddenResponse(), nil
		}

		return model.User{}, nil, err
	}

	return user, nil, nil
}

// authenticated runs a handler only for logged in users.
func authenticated(env *util.Env, handler func(request *lax.Request, user model.User) any) http.HandlerFunc {
	return lax.Wrap(lax.View{
		Get: func(request *lax.Request) any {
			user, response, err := loadUser(env, request)

			if err != nil {
				return err
			}

			if response != nil {
				return response
			}

			return handler(request, user)
		},
	}, logError)
}

// HandlePortfolio returns cash, positions and the total value.
func HandlePortfolio(env *util.Env) http.HandlerFunc {
	return authenticated(env, func(request *lax.Request, user model.User) any {
		portfolio, err := env.Ledger.Portfolio(request.Context(), user.ID)

		if err != nil {
			return err
		}

		data := Portfolio{
			Username:  portfolio.User.Username,
			Cash:      portfolio.User.Cash,
			Total:     portfolio.Total,
			Positions: make([]Position, 0, len(portfolio.Positions)),
		}

		for _, position := range portfolio.Positions {
			item := Position{
				Symbol:    position.Symbol,
				Name:      position.Name,
				Shares:    position.Quantity,
				Available: position.Available,
			}

			if position.Available {
				item.Price = &position.Price
				item.Value = &position.Value
			}

			data.Positions = append(data.Positions, item)
		}

		return data
	})
}

// HandleHistory returns every transaction, oldest first.
func HandleHistory(env *util.Env) http.HandlerFunc {
	return authenticated(env, func(request *lax.Request, user model.User) any {
		transactionList, err := env.Ledger.History(request.Context(), user.ID)

		if err != nil {
			return err
		}

		data := make([]Transaction, 0, len(transactionList))

		for _, transaction := range transactionList {
			data = append(data, Transaction{
				ID:     transaction.ID,
				Type:   transaction.Type,
				Symbol: transaction.Symbol,
				Shares: transaction.Quantity,
				Price:  transaction.Price,
				Time:   transaction.Time,
			})
		}

		return data
	})
}

// HandleQuote looks up the `symbol` query parameter.
func HandleQuote(env *util.Env) http.HandlerFunc {
	return authenticated(env, func(request *lax.Request, user model.User) any {
		symbol, err := form.Symbol("symbol", request.Query("symbol"))

		var validationErr *form.ValidationError

		if errors.As(err, &validationErr) {
			return lax.MakeErrorListResponse(lax.Issue(validationErr.Field, validationErr.Message))
		}

		quote, err := env.Ledger.Lookup(request.Context(), symbol)

		if err != nil {
			if errors.Is(err, ledger.ErrUnknownSymbol) {
				return lax.MakeNotFoundResponse()
			}

			return err
		}

		return Quote{Symbol: quote.Symbol, Name: quote.Name, Price: quote.Price}
	})
}
