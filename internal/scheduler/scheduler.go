// Package scheduler implements the single cooperative monitor loop:
// periodic wake, trigger threshold evaluation with at-most-once
// semantics, bounded snooze handling, and sync interleaved after alert
// emission.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/socrates8300/openchime/internal/logging"
	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
	"github.com/socrates8300/openchime/internal/sync"
)

// tickInterval is the fixed 30-second wake cadence.
const tickInterval = 30 * time.Second

// lookahead bounds the candidate query window.
const lookahead = 5 * time.Minute

// Presenter is the out-of-scope UI/audio collaborator that turns a fired
// alert into something the user sees and hears. Audio failures are the
// presenter's concern to report, not to hide; the scheduler logs and
// swallows them so a broken speaker never blocks the visual alert.
type Presenter interface {
	Present(ctx context.Context, event store.Event, thresholdMinutes int) error
}

// Monitor is the alert scheduler: a single cooperative loop that
// evaluates alert triggers and interleaves account syncs.
type Monitor struct {
	events      *store.EventRepository
	settings    *store.SettingsRepository
	accounts    *store.AccountRepository
	coordinator *sync.Coordinator
	presenter   Presenter

	lastSync map[int64]time.Time
}

// New returns a Monitor wired to its collaborators.
func New(events *store.EventRepository, settings *store.SettingsRepository, accounts *store.AccountRepository, coordinator *sync.Coordinator, presenter Presenter) *Monitor {
	return &Monitor{
		events:      events,
		settings:    settings,
		accounts:    accounts,
		coordinator: coordinator,
		presenter:   presenter,
		lastSync:    make(map[int64]time.Time),
	}
}

// Run blocks until ctx is cancelled, running one iteration immediately
// and then every tickInterval, racing the sleep against cancellation so
// shutdown is immediate rather than waiting out the remaining sleep.
func (m *Monitor) Run(ctx context.Context) error {
	m.tick(ctx)

	timer := time.NewTimer(tickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			m.tick(ctx)
			timer.Reset(tickInterval)
		}
	}
}

// tick runs one monitor iteration: alert evaluation first, then sync for
// any account whose sync interval has elapsed. Sync always runs after
// alert emission, never before.
func (m *Monitor) tick(ctx context.Context) {
	settings, err := m.settings.All(ctx)
	if err != nil {
		logging.Error("scheduler: failed to load settings, retrying next cycle", "error", err)
		return
	}

	m.evaluateAlerts(ctx, settings)
	m.runDueSyncs(ctx, settings)
}

func (m *Monitor) evaluateAlerts(ctx context.Context, settings store.Settings) {
	now := time.Now().UTC()
	candidates, err := m.events.ListWindow(ctx, now, now.Add(lookahead), true)
	if err != nil {
		logging.Error("scheduler: failed to query alert window, retrying next cycle", "error", err)
		return
	}

	bands := sortedBands(settings.EnabledThresholds())

	for _, event := range candidates {
		minutesUntil := event.StartTime.Sub(now).Minutes()
		if minutesUntil < 0 {
			minutesUntil = 0
		}

		floor := settings.RegularAlertOffset
		if event.VideoLink != nil {
			floor = settings.VideoAlertOffset
		}

		band, crossed := currentBand(bands, floor, minutesUntil)
		if !crossed {
			continue
		}
		// A snoozed event (has_alerted cleared) fires again once the snooze
		// interval has elapsed, even at a band it has already fired for.
		snoozeDue := !event.HasAlerted && event.LastSnoozedAt != nil &&
			now.Sub(*event.LastSnoozedAt) >= time.Duration(settings.SnoozeInterval)*time.Minute
		if event.LastAlertThreshold != nil && *event.LastAlertThreshold <= band && !snoozeDue {
			continue
		}

		if err := m.presenter.Present(ctx, event, band); err != nil {
			logging.Warn("scheduler: alert presentation failed, alert still recorded",
				"event_id", event.ID, "error", ocerr.Wrap(ocerr.AudioUnavailable, "presenter failed", err))
		}

		if err := m.events.MarkAlerted(ctx, event.ID, band); err != nil {
			logging.Error("scheduler: failed to record alert state, event remains eligible next cycle",
				"event_id", event.ID, "error", err)
		}
	}
}

// currentBand picks the smallest threshold at or above floor that
// minutesUntil has dropped to or below — the tightest threshold just
// crossed. floor (the event's video/regular alert offset) is itself
// always a candidate threshold, not merely a lower bound filtering the
// enabled bands, so an event still fires at its offset even when every
// enabled band sits below it or no bands are enabled at all. crossed is
// false when no such threshold has been reached yet.
func currentBand(bands []int, floor int, minutesUntil float64) (band int, crossed bool) {
	candidates := append([]int{floor}, bands...)

	best := -1
	for _, b := range candidates {
		if b < floor {
			continue
		}
		if minutesUntil > float64(b) {
			continue
		}
		if best == -1 || b < best {
			best = b
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func sortedBands(bands []int) []int {
	sorted := append([]int(nil), bands...)
	sort.Ints(sorted)
	return sorted
}

func (m *Monitor) runDueSyncs(ctx context.Context, settings store.Settings) {
	interval := time.Duration(settings.SyncIntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}

	accounts, err := m.accounts.List(ctx)
	if err != nil {
		logging.Error("scheduler: failed to list accounts for sync, retrying next cycle", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, account := range accounts {
		if last, ok := m.lastSync[account.ID]; ok && now.Sub(last) < interval {
			continue
		}
		m.lastSync[account.ID] = now

		if err := m.coordinator.SyncAccount(ctx, account); err != nil {
			if ocerr.Is(err, ocerr.ProviderFatal) {
				logging.Warn("scheduler: provider rejected sync for account; retried after the next sync interval",
					"account_id", account.ID, "error", err)
				continue
			}
			logging.Info("scheduler: sync failed, retrying next cycle",
				"account_id", account.ID, "error", err)
		}
	}
}
