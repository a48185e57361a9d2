package server

import (
	"net/http"

	"github.com/jrsteele09/go-graph-signin/internal/csrf"
	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/rs/zerolog/log"
)

const csrfFormField = "csrf_token"

// CSRFMiddleware rejects form posts whose token was not issued to this browser.
func (s *Server) CSRFMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(browserSessionCookie)
		if err != nil || !csrf.Validate(r.PostFormValue(csrfFormField), c.Value, s.csrfKey) {
			log.Warn().Err(apperrors.ErrInvalidCSRF).Str("path", r.URL.Path).Msg("Rejected form post")
			http.Error(w, "403 - Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
