// Package session handles saving/loading users to/from sessions
package session

import (
	"context"
	"net/http"

	"github.com/dense-analysis/stockwarp/internal/model"
	"github.com/gorilla/sessions"
)

const (
	cookieName = "sessionid"
	userIDKey  = "userID"
)

// Store keeps the logged in user ID in a signed cookie.
type Store struct {
	cookies *sessions.CookieStore
}

// NewStore creates session storage signed with a secret key.
//
// Sessions last until the browser is closed.
func NewStore(secretKey string, secure bool) *Store {
	cookies := sessions.NewCookieStore([]byte(secretKey))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Store{cookies: cookies}
}

// UserID returns the user ID saved in the session, if any.
//
// Cookies which fail to decode are treated as no session.
func (store *Store) UserID(request *http.Request) (int64, bool) {
	session, err := store.cookies.Get(request, cookieName)

	if err != nil {
		return 0, false
	}

	userID, ok := session.Values[userIDKey].(int64)

	return userID, ok && userID > 0
}

// SaveUserID remembers a user ID in the session.
func (store *Store) SaveUserID(writer http.ResponseWriter, request *http.Request, userID int64) error {
	// A bad cookie still returns a usable new session.
	session, _ := store.cookies.Get(request, cookieName)

	for key := range session.Values {
		delete(session.Values, key)
	}

	session.Values[userIDKey] = userID

	return session.Save(request, writer)
}

// Clear forgets everything in the session and removes the cookie.
func (store *Store) Clear(writer http.ResponseWriter, request *http.Request) error {
	session, _ := store.cookies.Get(request, cookieName)

	for key := range session.Values {
		delete(session.Values, key)
	}

	session.Options.MaxAge = -1

	return session.Save(request, writer)
}

type userContextKey struct{}

// WithUser returns a context carrying the logged in user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the logged in user, or nil.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey{}).(*model.User)

	return user
}
