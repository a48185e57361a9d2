package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-graph-signin/internal/csrf"
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/jrsteele09/go-graph-signin/oauthmodel"
	"github.com/jrsteele09/go-graph-signin/server/browsersession"
	"github.com/jrsteele09/go-graph-signin/sessions"
	"github.com/rs/zerolog/log"
)

type indexPage struct {
	AppName   string
	Session   sessions.Session
	CSRFToken string
}

type popupPage struct {
	AppName string
	Failed  bool
	Message string
}

// IndexHandler renders the navigation bar, error banner and welcome panel
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		browser, err := s.browserSession(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to load browsing session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		s.render(w, http.StatusOK, s.indexTemplate, indexPage{
			AppName:   s.config.GetAppName(),
			Session:   browser.Controller.Snapshot(),
			CSRFToken: csrf.NewToken(browser.ID, s.csrfKey),
		})
	}
}

// LoginHandler signs in through a sign-in window, then returns to the home page.
// The request stays open until the window completes or times out.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		browser, err := s.browserSession(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to load browsing session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		session := browser.Controller.Login(r.Context())
		if session.IsAuthenticated && s.config.GetStoreAuthStateInCookie() {
			if account, ok := browser.Agent.Account(); ok {
				s.writeAccountState(w, r, account)
			}
		}
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

// LogoutHandler forgets the browser and sends it to the platform's sign-out page
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		browser, err := s.browserSession(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to load browsing session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		logoutURL, err := browser.Controller.Logout(r.Context())
		if err != nil {
			log.Err(err).Msg("Sign-out failed")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := s.browsers.Delete(browser.ID); err != nil {
			log.Warn().Err(err).Str("browser_session", browser.ID).Msg("Failed to drop browsing session")
		}
		s.clearCookie(w, r, browserSessionCookie)
		s.clearCookie(w, r, accountStateCookie)
		http.Redirect(w, r, logoutURL, http.StatusSeeOther)
	}
}

// CallbackHandler receives the platform's redirect in the sign-in window and hands
// it to the sign-in request waiting for it.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.Form holds both query params and POST form data (form_post response mode)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "400 - Bad Request", http.StatusBadRequest)
			return
		}
		resp := oauthmodel.ParseAuthorizationResponse(r.Form)

		page := popupPage{
			AppName: s.config.GetAppName(),
			Failed:  resp.Failed(),
			Message: resp.ErrorDescription,
		}
		status := http.StatusOK

		if err := s.identity.CompletePopup(resp); err != nil {
			log.Warn().Err(err).Msg("Sign-in window completion rejected")
			status = http.StatusBadRequest
			page.Failed = true
			page.Message = "This sign-in window is no longer in use. Start again from the application."
		}
		s.render(w, status, s.popupTemplate, page)
	}
}

// SessionAPIHandler returns the browser's session as JSON
func (s *Server) SessionAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		browser, err := s.browserSession(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to load browsing session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(browser.Controller.Snapshot()); err != nil {
			log.Err(err).Msg("Failed to write session")
		}
	}
}

// browserSession returns the browser's session, starting one when the browser has none.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) (*browsersession.Session, error) {
	if c, err := r.Cookie(browserSessionCookie); err == nil && c.Value != "" {
		session, err := s.browsers.Get(c.Value)
		if err == nil {
			return session, nil
		}
		if !apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, err
		}
	}

	id := uuid.NewString()
	agent := s.identity.NewUserAgent()
	if s.config.GetStoreAuthStateInCookie() {
		if account, ok := s.readAccountState(r); ok {
			agent.RestoreAccount(account)
		}
	}

	session := &browsersession.Session{
		ID:         id,
		Agent:      agent,
		Controller: sessions.NewController(agent, s.profiles, s.config.GetScopes(), log.Logger.With().Str("browser_session", id).Logger()),
		CreatedAt:  s.nowTime(),
	}
	if err := s.browsers.Upsert(id, session); err != nil {
		return nil, err
	}
	s.setCookie(w, r, browserSessionCookie, id)
	return session, nil
}

func (s *Server) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
