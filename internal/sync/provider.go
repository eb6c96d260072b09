// Package sync pulls external calendar state into the store via a
// capability-set provider contract, each call guarded by a per-provider
// circuit breaker and a capped jittered retry.
package sync

import (
	"context"
	"time"

	"github.com/socrates8300/openchime/internal/store"
)

// ProviderEvent is a remote-sourced event as returned by a Provider,
// before video-link extraction and before it is upserted into the store.
type ProviderEvent struct {
	ExternalID  string
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
}

// Provider is the capability set every calendar source implements: the
// core depends only on fetching events for an account and refreshing
// that account's credentials when needed. New providers
// are added by implementing this interface, never by branching on a
// provider tag inside the coordinator.
type Provider interface {
	// FetchEvents lists upcoming events for account in a forward window.
	FetchEvents(ctx context.Context, account store.Account) ([]ProviderEvent, error)
	// RefreshIfNeeded proactively refreshes credentials nearing expiry
	// and returns the account with updated auth_data/refresh_token, or
	// the account unchanged if no refresh was necessary.
	RefreshIfNeeded(ctx context.Context, account store.Account) (*store.Account, error)
}
