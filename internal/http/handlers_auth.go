package http

import (
	"errors"
	"net/http"

	"expensetracker/internal/core"
)

const loginFailedMessage = "Please enter a correct username and password. Note that both fields may be case-sensitive."

type loginPage struct {
	layout
	Username string
	Next     string
	Error    string
}

type signUpPage struct {
	layout
	Username string
	Email    string
	Errors   core.FieldErrors
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	u, ok, err := s.currentUser(r)
	if err != nil {
		s.serverError(w, r, "Session lookup failed", err)
		return
	}
	if ok {
		http.Redirect(w, r, landingPath(u), http.StatusFound)
		return
	}
	s.render(w, r, pageLogin, http.StatusOK, loginPage{
		layout: layout{Title: "Log in"},
		Next:   r.URL.Query().Get("next"),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	next := r.PostForm.Get("next")

	u, err := s.auth.Authenticate(r.Context(), username, r.PostForm.Get("password"))
	if errors.Is(err, core.ErrInvalidCredentials) {
		s.render(w, r, pageLogin, http.StatusOK, loginPage{
			layout:   layout{Title: "Log in"},
			Username: username,
			Next:     next,
			Error:    loginFailedMessage,
		})
		return
	}
	if err != nil {
		s.serverError(w, r, "Authentication failed", err)
		return
	}

	if !s.startSession(w, r, u) {
		return
	}
	target, ok := safeNext(next)
	if !ok {
		target = landingPath(u)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			s.serverError(w, r, "Logout failed", err)
			return
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
}

func (s *Server) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, pageSignUp, http.StatusOK, signUpPage{layout: layout{Title: "Sign up"}})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseRegisterForm(r.PostForm)

	u, err := s.auth.Register(r.Context(), in)
	var fe core.FieldErrors
	if errors.As(err, &fe) {
		s.render(w, r, pageSignUp, http.StatusOK, signUpPage{
			layout:   layout{Title: "Sign up"},
			Username: in.Username,
			Email:    in.Email,
			Errors:   fe,
		})
		return
	}
	if err != nil {
		s.serverError(w, r, "Registration failed", err)
		return
	}

	if !s.startSession(w, r, u) {
		return
	}
	http.Redirect(w, r, s.opts.LoginURL, http.StatusFound)
}

// startSession logs u in and sets the cookie. It writes the error response
// itself and reports false on failure.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u core.User) bool {
	sess, err := s.auth.Login(r.Context(), u)
	if err != nil {
		s.serverError(w, r, "Session creation failed", err)
		return false
	}
	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	return true
}
