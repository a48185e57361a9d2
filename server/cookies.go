package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-graph-signin/identity"
	"github.com/rs/zerolog/log"
)

const (
	// browserSessionCookie identifies the browser's entry in the browsing session repo
	browserSessionCookie = "browser_session"
	// accountStateCookie holds the sealed signed-in account
	accountStateCookie = "account_state"
)

func (s *Server) setCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetMaxSessionAge().Seconds()),
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Server) writeAccountState(w http.ResponseWriter, r *http.Request, account identity.Account) {
	plain, err := json.Marshal(account)
	if err != nil {
		log.Err(err).Msg("Failed to encode account state")
		return
	}
	sealed, err := s.accountState.SealString(plain)
	if err != nil {
		log.Err(err).Msg("Failed to seal account state")
		return
	}
	s.setCookie(w, r, accountStateCookie, sealed)
}

func (s *Server) readAccountState(r *http.Request) (identity.Account, bool) {
	c, err := r.Cookie(accountStateCookie)
	if err != nil || c.Value == "" {
		return identity.Account{}, false
	}
	plain, err := s.accountState.OpenString(c.Value)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring unreadable account state cookie")
		return identity.Account{}, false
	}
	var account identity.Account
	if err := json.Unmarshal(plain, &account); err != nil || account.HomeAccountID == "" {
		return identity.Account{}, false
	}
	return account, true
}
