// Package cache provides the time-boxed local cache the sync layer uses to
// survive restarts without re-fetching still-fresh data from the server.
// It is never the system of record: the in-memory store stays authoritative
// for the session, and cache failures are treated as best-effort.
//
// Expiration is lazy: a stale entry is simply not returned on read; no
// background eviction runs.
package cache

import (
	"context"
	"time"
)

// Persistence key namespaces, one per concern.
const (
	KeyDMThreads    = "dmThreads"
	KeyDMReadStatus = "dmReadStatus"
)

// DefaultTTL is applied when callers pass a non-positive ttl.
const DefaultTTL = 30 * time.Minute

// ProjectMessagesKey returns the cache key for a project's message list.
func ProjectMessagesKey(projectID string) string {
	return "project_messages_" + projectID
}

// Cache stores JSON-serialisable values with a per-entry time-to-live.
type Cache interface {
	// Set stores value under key for ttl. A non-positive ttl falls back to
	// DefaultTTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get unmarshals the value stored under key into dest and reports
	// whether a fresh entry was found. A missing or expired entry returns
	// (false, nil): the caller treats it as a cold start.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Delete removes an entry. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
