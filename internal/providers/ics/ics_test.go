package ics

import (
	"context"
	"testing"
	"time"

	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
	"github.com/socrates8300/openchime/internal/sync"
)

type fakeFetcher struct {
	raw []byte
	err error
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.raw, f.err
}

type fakeParser struct {
	events []sync.ProviderEvent
	err    error
}

func (f fakeParser) Parse(raw []byte) ([]sync.ProviderEvent, error) {
	return f.events, f.err
}

func TestFetchEvents_DelegatesToFetcherAndParser(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	parser := fakeParser{events: []sync.ProviderEvent{
		{ExternalID: "evt-1", Title: "Design review", StartTime: start, EndTime: start.Add(time.Hour)},
	}}
	p := NewProvider(fakeFetcher{raw: []byte("BEGIN:VCALENDAR")}, parser)

	account := store.Account{ID: 1, Provider: store.ProviderICS, AuthData: "https://calendar.proton.me/abc/xyz.ics"}
	events, err := p.FetchEvents(context.Background(), account)
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].ExternalID != "evt-1" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFetchEvents_ParseFailureIsProviderFatal(t *testing.T) {
	parser := fakeParser{err: ocerr.New(ocerr.ConfigInvalid, "bad ics")}
	p := NewProvider(fakeFetcher{raw: []byte("garbage")}, parser)

	_, err := p.FetchEvents(context.Background(), store.Account{AuthData: "https://example.com/x.ics"})
	if !ocerr.Is(err, ocerr.ProviderFatal) {
		t.Fatalf("expected ProviderFatal, got %v", err)
	}
}

func TestFetchEvents_FetchFailurePropagates(t *testing.T) {
	p := NewProvider(fakeFetcher{err: ocerr.New(ocerr.ProviderTransient, "5xx")}, fakeParser{})

	_, err := p.FetchEvents(context.Background(), store.Account{AuthData: "https://example.com/x.ics"})
	if !ocerr.Is(err, ocerr.ProviderTransient) {
		t.Fatalf("expected ProviderTransient, got %v", err)
	}
}

func TestFetchEvents_NilParserIsConfigInvalid(t *testing.T) {
	p := NewProvider(fakeFetcher{raw: []byte("BEGIN:VCALENDAR")}, nil)

	_, err := p.FetchEvents(context.Background(), store.Account{AuthData: "https://example.com/x.ics"})
	if !ocerr.Is(err, ocerr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestRefreshIfNeeded_NoOp(t *testing.T) {
	p := NewProvider(NewHTTPFetcher(), fakeParser{})
	account := store.Account{ID: 5, AuthData: "https://example.com/x.ics"}

	refreshed, err := p.RefreshIfNeeded(context.Background(), account)
	if err != nil {
		t.Fatalf("RefreshIfNeeded failed: %v", err)
	}
	if refreshed.ID != account.ID {
		t.Fatal("expected the same account returned unchanged")
	}
}
