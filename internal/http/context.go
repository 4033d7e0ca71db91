package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

type contextKey string

const userContextKey contextKey = "user"

func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the user resolved by the authenticated gate.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	return u, ok
}

// currentUser resolves the session cookie, if any. A missing or expired
// session is not an error.
func (s *Server) currentUser(r *http.Request) (core.User, bool, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return core.User{}, false, nil
	}
	u, err := s.auth.UserForSession(r.Context(), cookie.Value)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, err
	}
	return u, true, nil
}

// authenticated redirects anonymous requests to the login page, carrying the
// requested path in next.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok, err := s.currentUser(r)
		if err != nil {
			s.serverError(w, r, "Session lookup failed", err)
			return
		}
		if !ok {
			target := s.opts.LoginURL + "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		logger := applog.FromContext(r.Context()).With(applog.FieldUserID, u.ID)
		ctx := applog.NewContext(withUser(r.Context(), u), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireManager sends callers who cannot manage expenses to the access
// denied URL. It must run inside authenticated.
func (s *Server) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok || !u.CanManageExpenses() {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).InfoContext(r.Context(), "Access denied",
				applog.FieldPath, r.URL.Path)
			http.Redirect(w, r, s.opts.AccessDeniedURL, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
