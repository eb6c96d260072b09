package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
	"github.com/socrates8300/openchime/internal/sync"
)

// forwardWindow is the fetch horizon: events starting in the next 7 days.
const forwardWindow = 7 * 24 * time.Hour

// CalendarFetcher is the named, out-of-scope-transport seam: it knows how
// to list a calendar's events for an authenticated token, but nothing
// upstream of it cares whether that means a real HTTP round trip or a
// fake in a test. The default implementation below wraps
// google.golang.org/api/calendar/v3.
type CalendarFetcher interface {
	ListEvents(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]*gcalendar.Event, error)
}

// Provider implements sync.Provider for Google Calendar accounts.
type Provider struct {
	oauth   OAuthConfig
	fetcher CalendarFetcher
}

// NewProvider returns a Provider using the default HTTP-backed fetcher.
func NewProvider(cfg OAuthConfig) *Provider {
	return &Provider{oauth: cfg, fetcher: apiFetcher{}}
}

// NewProviderWithFetcher allows substituting the fetcher, primarily for tests.
func NewProviderWithFetcher(cfg OAuthConfig, fetcher CalendarFetcher) *Provider {
	return &Provider{oauth: cfg, fetcher: fetcher}
}

var _ sync.Provider = (*Provider)(nil)

// FetchEvents implements sync.Provider: lists primary-calendar events in a
// forward window and maps them to sync.ProviderEvent.
func (p *Provider) FetchEvents(ctx context.Context, account store.Account) ([]sync.ProviderEvent, error) {
	token, err := decodeAuthData(account)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items, err := p.fetcher.ListEvents(ctx, token, now, now.Add(forwardWindow))
	if err != nil {
		return nil, classifyGoogleErr(err)
	}

	events := make([]sync.ProviderEvent, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		start, err := parseEventTime(item.Start)
		if err != nil {
			continue
		}
		end, err := parseEventTime(item.End)
		if err != nil {
			continue
		}
		events = append(events, sync.ProviderEvent{
			ExternalID:  item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
			StartTime:   start,
			EndTime:     end,
		})
	}
	return events, nil
}

func parseEventTime(t *gcalendar.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("missing event time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	// All-day event: treat the date as midnight UTC.
	return time.Parse("2006-01-02", t.Date)
}

// apiFetcher is the default CalendarFetcher, talking to the real Google
// Calendar API.
type apiFetcher struct{}

func (apiFetcher) ListEvents(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]*gcalendar.Event, error) {
	client := oauth2.StaticTokenSource(token)
	svc, err := gcalendar.NewService(ctx, option.WithTokenSource(client))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}

	resp, err := svc.Events.List("primary").
		Context(ctx).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// classifyGoogleErr maps a transport-layer failure into OpenChime's
// retryable/fatal taxonomy: HTTP 4xx other than 429 is non-retryable,
// everything else (5xx, network errors, 429) is transient.
func classifyGoogleErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return ocerr.Wrap(ocerr.ProviderTransient, "google calendar call failed", err)
		}
		if apiErr.Code >= 400 {
			return ocerr.Wrap(ocerr.ProviderFatal, "google calendar call rejected", err)
		}
	}
	return ocerr.Wrap(ocerr.ProviderTransient, "google calendar call failed", err)
}
