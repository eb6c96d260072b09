package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/socrates8300/openchime/internal/database"
	"github.com/socrates8300/openchime/internal/migrate"
	"github.com/socrates8300/openchime/internal/store"
	"github.com/socrates8300/openchime/internal/sync"
	"github.com/socrates8300/openchime/internal/vault"
)

type recordingPresenter struct {
	fired []store.Event
}

func (p *recordingPresenter) Present(ctx context.Context, event store.Event, thresholdMinutes int) error {
	p.fired = append(p.fired, event)
	return nil
}

type noopProvider struct{}

func (noopProvider) FetchEvents(ctx context.Context, account store.Account) ([]sync.ProviderEvent, error) {
	return nil, nil
}

func (noopProvider) RefreshIfNeeded(ctx context.Context, account store.Account) (*store.Account, error) {
	return &account, nil
}

func setupMonitor(t *testing.T) (*Monitor, *store.EventRepository, *store.AccountRepository, *recordingPresenter) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("database.Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	v, err := vault.Open(vault.NewStaticKeyStore(make([]byte, 32)))
	if err != nil {
		t.Fatalf("vault.Open failed: %v", err)
	}
	if err := migrate.New(db, v).Run(context.Background()); err != nil {
		t.Fatalf("migrate.Run failed: %v", err)
	}

	accounts := store.NewAccountRepository(db, v)
	events := store.NewEventRepository(db)
	settings := store.NewSettingsRepository(db)

	coordinator := sync.NewCoordinator(accounts, events)
	coordinator.RegisterProvider(store.ProviderICS, noopProvider{})

	presenter := &recordingPresenter{}
	return New(events, settings, accounts, coordinator, presenter), events, accounts, presenter
}

func TestMonitor_FiresForVideoEventWithinOffset(t *testing.T) {
	monitor, events, accounts, presenter := setupMonitor(t)
	ctx := context.Background()

	acct, err := accounts.Add(ctx, store.ProviderICS, "proton", "https://calendar.proton.me/abc/xyz.ics", nil)
	if err != nil {
		t.Fatalf("Add account failed: %v", err)
	}

	start := time.Now().UTC().Add(2*time.Minute + 50*time.Second)
	link := "https://meet.google.com/abc-defg-hij"
	platform := "google_meet"
	if _, err := events.UpsertByExternalID(ctx, acct.ID, "evt-1", store.EventFields{
		Title: "Planning", StartTime: start, EndTime: start.Add(time.Hour),
		VideoLink: &link, VideoPlatform: &platform,
	}); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	monitor.tick(ctx)

	if len(presenter.fired) != 1 {
		t.Fatalf("expected one alert fired, got %d", len(presenter.fired))
	}

	window, err := events.ListWindow(ctx, start.Add(-time.Hour), start.Add(time.Hour), false)
	if err != nil {
		t.Fatalf("ListWindow failed: %v", err)
	}
	if window[0].LastAlertThreshold == nil {
		t.Fatal("expected last_alert_threshold to be recorded")
	}
	if *window[0].LastAlertThreshold != 3 {
		t.Fatalf("expected last_alert_threshold=3 (the video offset itself), got %d", *window[0].LastAlertThreshold)
	}
}

func TestMonitor_DoesNotFireTwiceForSameBand(t *testing.T) {
	monitor, events, accounts, presenter := setupMonitor(t)
	ctx := context.Background()

	acct, err := accounts.Add(ctx, store.ProviderICS, "proton", "https://calendar.proton.me/abc/xyz.ics", nil)
	if err != nil {
		t.Fatalf("Add account failed: %v", err)
	}

	start := time.Now().UTC().Add(30 * time.Second)
	if _, err := events.UpsertByExternalID(ctx, acct.ID, "evt-1", store.EventFields{
		Title: "Standup", StartTime: start, EndTime: start.Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	monitor.tick(ctx)
	monitor.tick(ctx)

	if len(presenter.fired) != 1 {
		t.Fatalf("expected exactly one alert across two ticks, got %d", len(presenter.fired))
	}
}

func TestMonitor_DoesNotFireBeforeThreshold(t *testing.T) {
	monitor, events, accounts, presenter := setupMonitor(t)
	ctx := context.Background()

	acct, err := accounts.Add(ctx, store.ProviderICS, "proton", "https://calendar.proton.me/abc/xyz.ics", nil)
	if err != nil {
		t.Fatalf("Add account failed: %v", err)
	}

	start := time.Now().UTC().Add(6 * time.Minute)
	if _, err := events.UpsertByExternalID(ctx, acct.ID, "evt-1", store.EventFields{
		Title: "Later", StartTime: start, EndTime: start.Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	monitor.tick(ctx)

	if len(presenter.fired) != 0 {
		t.Fatalf("expected no alert before the nearest enabled band (5m) is crossed, got %d", len(presenter.fired))
	}
}

func TestCurrentBand(t *testing.T) {
	bands := []int{0, 1, 5, 10, 30}

	if _, crossed := currentBand(bands, 3, 40); crossed {
		t.Fatal("expected no band crossed at 40 minutes, beyond every enabled band")
	}
	band, crossed := currentBand(bands, 3, 6)
	if !crossed || band != 10 {
		t.Fatalf("expected band 10 crossed (floor 3 excludes band 1), got band=%d crossed=%v", band, crossed)
	}
	band, crossed = currentBand(bands, 3, 4.5)
	if !crossed || band != 5 {
		t.Fatalf("expected band 5 crossed, got band=%d crossed=%v", band, crossed)
	}
	band, crossed = currentBand(bands, 1, 0.5)
	if !crossed || band != 1 {
		t.Fatalf("expected band 1 crossed, got band=%d crossed=%v", band, crossed)
	}

	// A video event at 2m50s with the default enabled bands {0,1,5} and a
	// video offset of 3 must cross at the offset itself, not at the 5m
	// band: the offset is a selectable threshold, not merely a filter.
	defaultBands := []int{0, 1, 5}
	band, crossed = currentBand(defaultBands, 3, 2.0+50.0/60.0)
	if !crossed || band != 3 {
		t.Fatalf("expected band 3 (the offset itself) crossed, got band=%d crossed=%v", band, crossed)
	}

	// With every band toggle disabled, the offset is still reachable.
	band, crossed = currentBand(nil, 1, 0.5)
	if !crossed || band != 1 {
		t.Fatalf("expected the offset to fire even with no bands enabled, got band=%d crossed=%v", band, crossed)
	}
}
