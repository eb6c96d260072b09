// Package ics implements the sync.Provider for read-only ICS calendar
// feeds. Textual calendar parsing is a named-interface-only collaborator
// per scope — this package supplies the HTTP fetch and the capability
// wiring, and takes a Parser implementation from its caller.
package ics

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
	"github.com/socrates8300/openchime/internal/sync"
	"github.com/socrates8300/openchime/internal/validate"
)

const (
	requestTimeout = 30 * time.Second
	connectTimeout = 10 * time.Second
	userAgent      = "OpenChime/1.0 (+https://github.com/socrates8300/openchime)"
)

// Fetcher retrieves the raw bytes of an ICS feed. Named so a test can
// substitute a fixture without touching the network.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Parser turns raw ICS bytes into provider events. ICS textual parsing
// itself is out of scope; callers supply a concrete implementation.
type Parser interface {
	Parse(raw []byte) ([]sync.ProviderEvent, error)
}

// NewHTTPFetcher returns the default Fetcher: TLS 1.2+, certificate
// validation enabled, a bounded connection pool, and conservative
// request/connect timeouts.
func NewHTTPFetcher() Fetcher {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &httpFetcher{client: &http.Client{Transport: transport, Timeout: requestTimeout}}
}

type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.ProviderFatal, "malformed ics url", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.ProviderTransient, "ics fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, ocerr.New(ocerr.ProviderTransient, "ics feed returned a transient error")
	}
	if resp.StatusCode >= 400 {
		return nil, ocerr.New(ocerr.ProviderFatal, "ics feed rejected the request")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, ocerr.Wrap(ocerr.ProviderTransient, "ics feed read failed", err)
	}
	return body, nil
}

// Provider implements sync.Provider for ICS accounts. ICS credentials
// never expire, so RefreshIfNeeded is always a no-op.
type Provider struct {
	fetcher Fetcher
	parser  Parser
}

// NewProvider wires a Fetcher and Parser into a Provider.
func NewProvider(fetcher Fetcher, parser Parser) *Provider {
	return &Provider{fetcher: fetcher, parser: parser}
}

var _ sync.Provider = (*Provider)(nil)

// FetchEvents fetches and parses the account's ICS feed.
func (p *Provider) FetchEvents(ctx context.Context, account store.Account) ([]sync.ProviderEvent, error) {
	if p.parser == nil {
		return nil, ocerr.New(ocerr.ConfigInvalid, "ics provider has no parser configured")
	}

	if err := validate.ValidateICSURL(account.AuthData); err != nil {
		return nil, err
	}

	raw, err := p.fetcher.Fetch(ctx, account.AuthData)
	if err != nil {
		return nil, err
	}
	events, err := p.parser.Parse(raw)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.ProviderFatal, "failed to parse ics feed", err)
	}
	return events, nil
}

// RefreshIfNeeded is a no-op: ICS accounts carry a static URL, never a
// refreshable token.
func (p *Provider) RefreshIfNeeded(ctx context.Context, account store.Account) (*store.Account, error) {
	return &account, nil
}
