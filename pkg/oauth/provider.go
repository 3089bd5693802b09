// Package oauth wraps provider OAuth2 clients behind one adapter interface.
// Adapters are pure network clients: they never touch the connection store,
// and every call takes credentials as explicit arguments so no per-request
// state lives on a shared client.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
)

// Token is the provider-agnostic result of a code exchange or refresh.
type Token struct {
	AccessToken string
	// RefreshToken is empty on refresh responses from providers that do not
	// rotate refresh tokens. When set, it supersedes the stored one.
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider is the per-source OAuth client adapter.
type Provider interface {
	// AuthorizationURL builds the upstream consent URL. Deterministic given
	// configuration; the state parameter round-trips the project identity
	// through the provider redirect.
	AuthorizationURL(state string) string

	// Exchange trades an authorization code for tokens. Returns
	// apperrors.ErrOAuthExchangeFailed on an invalid or expired code.
	Exchange(ctx context.Context, code string) (*Token, error)

	// Refresh obtains a new access token from a refresh token. Returns
	// apperrors.ErrTokenRefreshFailed when the grant is revoked or invalid.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// provider implements Provider on top of golang.org/x/oauth2.
type provider struct {
	cfg      *oauth2.Config
	authOpts []oauth2.AuthCodeOption
}

func newProvider(cfg *oauth2.Config, authOpts ...oauth2.AuthCodeOption) *provider {
	return &provider{cfg: cfg, authOpts: authOpts}
}

func (p *provider) AuthorizationURL(state string) string {
	return p.cfg.AuthCodeURL(state, p.authOpts...)
}

func (p *provider) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrOAuthExchangeFailed, retrieveErrorDetail(err))
	}
	return fromOAuth2Token(tok), nil
}

func (p *provider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	src := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTokenRefreshFailed, retrieveErrorDetail(err))
	}
	out := fromOAuth2Token(tok)
	// A refresh token echoed back unchanged is not a rotation.
	if out.RefreshToken == refreshToken {
		out.RefreshToken = ""
	}
	return out, nil
}

func fromOAuth2Token(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// retrieveErrorDetail extracts the upstream error body when available so the
// wrapped sentinel carries a diagnosable message.
func retrieveErrorDetail(err error) string {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode != "" {
			return fmt.Sprintf("%s: %s", rerr.ErrorCode, rerr.ErrorDescription)
		}
		return fmt.Sprintf("status %d", rerr.Response.StatusCode)
	}
	return err.Error()
}
