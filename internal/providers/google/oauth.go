// Package google implements the Google Calendar sync.Provider: proactive
// OAuth token refresh plus a forward-window event fetch, generalized
// from a single fixed oauth_tokens row to per-account credentials sourced
// from store.Account.
package google

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
)

// refreshBuffer is the early-refresh window before a token's expiry.
const refreshBuffer = 5 * time.Minute

// authBundle is the JSON shape stored in Account.AuthData. The refresh
// token itself lives in the separate, independently-encrypted
// refresh_token column per the data model invariant.
type authBundle struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// OAuthConfig carries the client credentials validated at startup by
// internal/config; the interactive browser redirect flow that produces
// the first token is out of scope here.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c OAuthConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
		Endpoint:     google.Endpoint,
	}
}

// decodeAuthData parses an account's auth_data into an oauth2.Token,
// pulling the refresh token from the account's dedicated column.
func decodeAuthData(account store.Account) (*oauth2.Token, error) {
	var bundle authBundle
	if err := json.Unmarshal([]byte(account.AuthData), &bundle); err != nil {
		return nil, ocerr.Wrap(ocerr.ConfigInvalid, "malformed google auth_data", err)
	}
	if account.RefreshToken == nil || *account.RefreshToken == "" {
		return nil, ocerr.New(ocerr.ConfigInvalid, "google account has no refresh token")
	}
	return &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		RefreshToken: *account.RefreshToken,
		Expiry:       bundle.Expiry,
	}, nil
}

// encodeToken serializes a refreshed token back into the Account shape,
// splitting the refresh token into its own field.
func encodeToken(account store.Account, token *oauth2.Token) (store.Account, error) {
	bundle := authBundle{AccessToken: token.AccessToken, Expiry: token.Expiry}
	raw, err := json.Marshal(bundle)
	if err != nil {
		return account, ocerr.Wrap(ocerr.ConfigInvalid, "failed to encode google auth_data", err)
	}
	account.AuthData = string(raw)

	refresh := token.RefreshToken
	if refresh == "" && account.RefreshToken != nil {
		// Google does not always rotate the refresh token; keep the
		// existing one when the response omits it.
		refresh = *account.RefreshToken
	}
	account.RefreshToken = &refresh
	return account, nil
}

// RefreshIfNeeded implements sync.Provider. It refreshes the access token
// when it is within refreshBuffer of expiry, returning the account
// unchanged otherwise.
func (p *Provider) RefreshIfNeeded(ctx context.Context, account store.Account) (*store.Account, error) {
	token, err := decodeAuthData(account)
	if err != nil {
		return nil, err
	}

	if token.Expiry.IsZero() || token.Expiry.After(time.Now().Add(refreshBuffer)) {
		return &account, nil
	}

	cfg := p.oauth.oauth2Config()
	refreshed, err := cfg.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, ocerr.Wrap(ocerr.ProviderFatal, "google token refresh failed", err)
	}

	updated, err := encodeToken(account, refreshed)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
