package sync

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/socrates8300/openchime/internal/logging"
	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/store"
)

// retryCeiling bounds total retry time: at most 3 attempts within a
// 60-second ceiling.
const retryCeiling = 60 * time.Second

// Coordinator fetches external state into the store per account. It
// holds one circuit breaker per provider tag, not per account.
type Coordinator struct {
	accounts *store.AccountRepository
	events   *store.EventRepository

	mu        sync.Mutex
	providers map[string]Provider
	breakers  map[string]*gobreaker.CircuitBreaker[[]ProviderEvent]
}

// NewCoordinator returns a Coordinator with no providers registered.
// Call RegisterProvider for each supported provider tag before syncing.
func NewCoordinator(accounts *store.AccountRepository, events *store.EventRepository) *Coordinator {
	return &Coordinator{
		accounts:  accounts,
		events:    events,
		providers: make(map[string]Provider),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[[]ProviderEvent]),
	}
}

// RegisterProvider wires a Provider implementation to a provider tag
// ("google" or "ics").
func (c *Coordinator) RegisterProvider(tag string, p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[tag] = p
	if _, ok := c.breakers[tag]; !ok {
		c.breakers[tag] = newBreaker(tag)
	}
}

// SyncAccount refreshes credentials if needed, fetches events through the
// provider's circuit breaker with capped jittered retry, extracts video
// links, and upserts into the store, pruning orphans. A ProviderFatal
// error (account-level) is returned unwrapped so the caller can disable
// sync for this account until the user acts; ProviderTransient and
// CircuitOpen are logged and left for the next cycle.
func (c *Coordinator) SyncAccount(ctx context.Context, account store.Account) error {
	c.mu.Lock()
	provider, ok := c.providers[account.Provider]
	breaker := c.breakers[account.Provider]
	c.mu.Unlock()

	if !ok {
		return ocerr.New(ocerr.ProviderFatal, "no provider registered for account")
	}

	refreshed, err := provider.RefreshIfNeeded(ctx, account)
	if err != nil {
		return c.classify(err)
	}
	if refreshed != nil && refreshed.AuthData != account.AuthData {
		if err := c.accounts.UpdateAuth(ctx, account.ID, refreshed.AuthData, refreshed.RefreshToken); err != nil {
			return err
		}
		account = *refreshed
	}

	fetched, err := breaker.Execute(func() ([]ProviderEvent, error) {
		return c.fetchWithRetry(ctx, provider, account)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			logging.Warn("sync skipped, circuit open", "account_id", account.ID, "provider", account.Provider)
			return ocerr.Wrap(ocerr.CircuitOpen, "provider circuit is open", err)
		}
		return c.classify(err)
	}

	kept := make([]string, 0, len(fetched))
	for _, pe := range fetched {
		link, platform := extractVideoLink(pe.Description, pe.Location)

		fields := store.EventFields{
			Title:     pe.Title,
			StartTime: pe.StartTime,
			EndTime:   pe.EndTime,
		}
		if pe.Description != "" {
			d := pe.Description
			fields.Description = &d
		}
		if link != "" {
			fields.VideoLink = &link
			fields.VideoPlatform = &platform
		}

		if _, err := c.events.UpsertByExternalID(ctx, account.ID, pe.ExternalID, fields); err != nil {
			return err
		}
		kept = append(kept, pe.ExternalID)
	}

	if err := c.events.DeleteOrphans(ctx, account.ID, kept); err != nil {
		return err
	}

	return c.accounts.UpdateLastSynced(ctx, account.ID, time.Now().UTC())
}

// fetchWithRetry wraps a single provider.FetchEvents call with
// exponential backoff and jitter, capped at 3 attempts and a 60s
// ceiling. A ProviderFatal error short-circuits the retry loop and
// surfaces immediately, without consuming further attempts.
func (c *Coordinator) fetchWithRetry(ctx context.Context, provider Provider, account store.Account) ([]ProviderEvent, error) {
	var result []ProviderEvent

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = retryCeiling
	bounded := backoff.WithMaxRetries(policy, 2) // 3 total attempts

	op := func() error {
		events, err := provider.FetchEvents(ctx, account)
		if err != nil {
			if ocerr.Is(err, ocerr.ProviderFatal) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = events
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bounded, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) classify(err error) error {
	if ocerr.Is(err, ocerr.ProviderFatal) || ocerr.Is(err, ocerr.ProviderTransient) {
		return err
	}
	return ocerr.Wrap(ocerr.ProviderTransient, "sync call failed", err)
}
