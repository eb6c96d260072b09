package google

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"golang.org/x/oauth2"
	gcalendar "google.golang.org/api/calendar/v3"

	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
)

type fakeFetcher struct {
	items []*gcalendar.Event
	err   error
}

func (f fakeFetcher) ListEvents(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]*gcalendar.Event, error) {
	return f.items, f.err
}

func testAccount(t *testing.T, expiry time.Time) store.Account {
	t.Helper()
	bundle := authBundle{AccessToken: "access-1", Expiry: expiry}
	raw, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	refresh := "refresh-1"
	return store.Account{
		ID:           1,
		Provider:     store.ProviderGoogle,
		AccountName:  "work",
		AuthData:     string(raw),
		RefreshToken: &refresh,
	}
}

func TestFetchEvents_MapsAndSkipsCancelled(t *testing.T) {
	start := time.Now().UTC().Add(time.Hour)
	fetcher := fakeFetcher{items: []*gcalendar.Event{
		{
			Id:      "evt-1",
			Summary: "Standup",
			Status:  "confirmed",
			Start:   &gcalendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
			End:     &gcalendar.EventDateTime{DateTime: start.Add(30 * time.Minute).Format(time.RFC3339)},
		},
		{
			Id:      "evt-2",
			Summary: "Cancelled sync",
			Status:  "cancelled",
			Start:   &gcalendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
			End:     &gcalendar.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339)},
		},
	}}

	p := NewProviderWithFetcher(OAuthConfig{ClientID: "id", ClientSecret: "secret"}, fetcher)
	events, err := p.FetchEvents(context.Background(), testAccount(t, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected cancelled event skipped, got %d events", len(events))
	}
	if events[0].ExternalID != "evt-1" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestFetchEvents_AllDayEvent(t *testing.T) {
	fetcher := fakeFetcher{items: []*gcalendar.Event{
		{
			Id:      "evt-allday",
			Summary: "Company holiday",
			Status:  "confirmed",
			Start:   &gcalendar.EventDateTime{Date: "2026-08-03"},
			End:     &gcalendar.EventDateTime{Date: "2026-08-04"},
		},
	}}

	p := NewProviderWithFetcher(OAuthConfig{ClientID: "id", ClientSecret: "secret"}, fetcher)
	events, err := p.FetchEvents(context.Background(), testAccount(t, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].StartTime.IsZero() {
		t.Fatalf("expected all-day event parsed, got %+v", events)
	}
}

func TestRefreshIfNeeded_SkipsWhenFarFromExpiry(t *testing.T) {
	p := NewProvider(OAuthConfig{ClientID: "id", ClientSecret: "secret"})
	account := testAccount(t, time.Now().Add(2*time.Hour))

	refreshed, err := p.RefreshIfNeeded(context.Background(), account)
	if err != nil {
		t.Fatalf("RefreshIfNeeded failed: %v", err)
	}
	if refreshed.AuthData != account.AuthData {
		t.Fatal("expected auth_data unchanged when token is not near expiry")
	}
}

func TestRefreshIfNeeded_MissingRefreshTokenIsFatal(t *testing.T) {
	p := NewProvider(OAuthConfig{ClientID: "id", ClientSecret: "secret"})
	account := testAccount(t, time.Now().Add(-time.Hour))
	account.RefreshToken = nil

	_, err := p.RefreshIfNeeded(context.Background(), account)
	if !ocerr.Is(err, ocerr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}
