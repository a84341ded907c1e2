package store

import (
	"context"
	"strings"

	"github.com/collabdesk/collabdesk/internal/client/cache"
	"github.com/collabdesk/collabdesk/internal/client/correlate"
	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/telemetry"
)

// persist writes the conversation to the expiring cache. Best effort: the
// in-memory store stays authoritative for the session, so a cache failure
// is logged and swallowed.
func (s *Store) persist(ctx context.Context, conversationKey string) {
	if s.cache == nil {
		return
	}

	ct, id, ok := models.SplitConversationKey(conversationKey)
	if !ok {
		return
	}

	// Records are mutated in place under the lock (reactions, read flags),
	// and Set marshals outside it, so the snapshot must be a deep copy.
	var err error
	switch ct {
	case models.ConversationProject:
		s.mu.Lock()
		records := models.CloneRecords(s.conversations[conversationKey])
		s.mu.Unlock()
		err = s.cache.Set(ctx, cache.ProjectMessagesKey(id), records, s.ttl)
	case models.ConversationDM:
		// all DM threads share one cache entry
		s.mu.Lock()
		threads := make(map[string][]*models.Record)
		for key, records := range s.conversations {
			if strings.HasPrefix(key, string(models.ConversationDM)+"#") {
				threads[key] = models.CloneRecords(records)
			}
		}
		s.mu.Unlock()
		err = s.cache.Set(ctx, cache.KeyDMThreads, threads, s.ttl)
	}
	if err != nil {
		telemetry.CacheWriteFailures.Inc()
		s.log.Warn(ctx, "cache write failed", "conversation", conversationKey, "error", err)
	}
}

func (s *Store) persistReadStatus(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	status := make(map[string]string, len(s.readAt))
	for k, v := range s.readAt {
		status[k] = v
	}
	s.mu.Unlock()
	if err := s.cache.Set(ctx, cache.KeyDMReadStatus, status, s.ttl); err != nil {
		telemetry.CacheWriteFailures.Inc()
		s.log.Warn(ctx, "cache write failed", "key", cache.KeyDMReadStatus, "error", err)
	}
}

// HydrateProject loads a project conversation from the cache. A missing or
// expired entry is a cold start and leaves the conversation empty.
func (s *Store) HydrateProject(ctx context.Context, projectID string) error {
	if s.cache == nil {
		return nil
	}
	var records []*models.Record
	found, err := s.cache.Get(ctx, cache.ProjectMessagesKey(projectID), &records)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	key := models.ConversationKeyFor(models.ConversationProject, projectID)

	s.mu.Lock()
	s.conversations[key] = correlate.MergeAndDedupe(s.conversations[key], records, s.excluded[key])
	live, subs := s.snapshotLocked(key)
	s.mu.Unlock()

	notify(subs, live)
	return nil
}

// HydrateDMThreads loads all DM conversations and the read watermarks from
// the cache.
func (s *Store) HydrateDMThreads(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	var status map[string]string
	if _, err := s.cache.Get(ctx, cache.KeyDMReadStatus, &status); err != nil {
		return err
	}

	var threads map[string][]*models.Record
	found, err := s.cache.Get(ctx, cache.KeyDMThreads, &threads)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	type notification struct {
		live []*models.Record
		subs []func([]*models.Record)
	}
	var pending []notification

	s.mu.Lock()
	for k, v := range status {
		s.readAt[k] = v
	}
	for key, records := range threads {
		if at, ok := s.readAt[key]; ok {
			for _, r := range records {
				if r.Timestamp <= at {
					r.Read = true
				}
			}
		}
		s.conversations[key] = correlate.MergeAndDedupe(s.conversations[key], records, s.excluded[key])
		live, subs := s.snapshotLocked(key)
		pending = append(pending, notification{live: live, subs: subs})
	}
	s.mu.Unlock()

	for _, n := range pending {
		notify(n.subs, n.live)
	}
	return nil
}

// ReplaceFromFetch reconciles a freshly fetched page with the local list.
// The fetched list is first deduplicated (page overlaps legitimately repeat
// records), then merged as incoming: fetched versions supersede stale local
// ones while local provisional records survive in place.
func (s *Store) ReplaceFromFetch(ctx context.Context, conversationKey string, fetched []*models.Record) {
	fetched = correlate.DedupeByID(fetched)

	s.mu.Lock()
	s.conversations[conversationKey] = correlate.MergeAndDedupe(s.conversations[conversationKey], fetched, s.excluded[conversationKey])
	live, subs := s.snapshotLocked(conversationKey)
	s.mu.Unlock()

	s.persist(ctx, conversationKey)
	notify(subs, live)
}
