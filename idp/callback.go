package idp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/bridge"
	interrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// csrfCookieName is the double-submit token some providers post alongside the credential.
const csrfCookieName = "g_csrf_token"

// CallbackHandler receives the provider's form post (POST) and hands the credential
// to the registered callback before redirecting the user back to the app.
func (p *Provider) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.limiter.Allow() {
			http.Error(w, "Too many sign-in attempts", http.StatusTooManyRequests)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if errorParam := r.FormValue("error"); errorParam != "" {
			http.Error(w, fmt.Sprintf("Authorization failed: %s - %s", errorParam, r.FormValue("error_description")), http.StatusBadRequest)
			return
		}

		credential := r.PostFormValue("credential")
		if credential == "" {
			credential = r.PostFormValue("id_token")
		}

		nonce, err := p.checkRequest(r)
		if err != nil {
			log.Warn().Err(err).Msg("rejected credential callback")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		p.lock.RLock()
		cfg := p.sdkConfig
		p.lock.RUnlock()
		if cfg == nil || cfg.Callback == nil {
			http.Error(w, "Sign-in is not initialized", http.StatusServiceUnavailable)
			return
		}

		// An empty credential is still delivered; the session controller records it as a failure.
		if p.verify && credential != "" {
			if err := p.verifyCredential(r.Context(), cfg.ClientID, credential, nonce); err != nil {
				log.Warn().Err(err).Msg("credential verification failed")
				http.Error(w, "Invalid credential", http.StatusUnauthorized)
				return
			}
		}

		cfg.Callback(r.Context(), bridge.CredentialResponse{
			Credential: credential,
			SelectBy:   r.PostFormValue("select_by"),
		})
		http.Redirect(w, r, p.returnURL, http.StatusSeeOther)
	}
}

// checkRequest validates the anti-forgery binding of the post and returns the
// nonce the credential must carry. The post must always name the state of a
// button this provider rendered; a double-submit token, when present, must also
// match its cookie.
func (p *Provider) checkRequest(r *http.Request) (string, error) {
	if token := r.PostFormValue(csrfCookieName); token != "" {
		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value != token {
			return "", errors.Wrap(interrors.ErrInvalidState, "csrf double submit mismatch")
		}
	}

	nonce, ok := p.consumeLogin(r.PostFormValue("state"))
	if !ok {
		return "", errors.Wrap(interrors.ErrInvalidState, "unknown or expired state")
	}
	return nonce, nil
}

func (p *Provider) verifyCredential(ctx context.Context, clientID, credential, nonce string) error {
	p.lock.RLock()
	provider := p.provider
	p.lock.RUnlock()

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID, Now: p.nowFunc})
	idToken, err := verifier.Verify(oidc.ClientContext(ctx, p.httpClient), credential)
	if err != nil {
		return errors.Wrap(err, "[Provider.verifyCredential] verify")
	}
	if nonce != "" && idToken.Nonce != nonce {
		return interrors.ErrInvalidNonce
	}
	return nil
}
