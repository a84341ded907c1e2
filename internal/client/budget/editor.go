package budget

import (
	"context"
	"sync"

	"github.com/collabdesk/collabdesk/internal/client/cache"
	"github.com/collabdesk/collabdesk/internal/client/correlate"
	"github.com/collabdesk/collabdesk/internal/client/history"
	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/client/sender"
	"github.com/collabdesk/collabdesk/internal/logging"
	"github.com/collabdesk/collabdesk/internal/telemetry"
)

// Snapshot is one undo/redo point: deep copies of the line items and the
// header, never aliasing the live collection.
type Snapshot struct {
	Items  []*models.Record `json:"items"`
	Header *models.Record   `json:"header,omitempty"`
}

func cloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{Items: models.CloneRecords(s.Items), Header: s.Header.Clone()}
}

// budgetCacheKey persists the table alongside the other conversation
// namespaces.
func budgetCacheKey(projectID string) string {
	return "project_budget_" + projectID
}

// Editor owns a project's budget table: the ordered line items, the header
// record carrying the markup factor and the derived totals, and the bounded
// undo/redo journal. Every mutation and every undo/redo re-runs the
// aggregate recomputation and pushes the header to the backend; the totals
// are the one piece of derived state that is server-synchronized rather
// than purely local.
type Editor struct {
	cache     cache.Cache
	sender    *sender.Sender
	log       logging.Logger
	projectID string
	histDepth int

	mu       sync.Mutex
	items    []*models.Record
	header   *models.Record
	excluded map[string]bool
	hist     *history.History[Snapshot]
}

// EditorOption configures NewEditor.
type EditorOption func(*Editor)

// WithHistoryDepth bounds the undo/redo journal. Non-positive values fall
// back to history.DefaultDepth.
func WithHistoryDepth(depth int) EditorOption {
	return func(e *Editor) {
		e.histDepth = depth
	}
}

// NewEditor returns an editor for projectID with an empty table and a
// default-depth history.
func NewEditor(c cache.Cache, snd *sender.Sender, log logging.Logger, projectID string, opts ...EditorOption) *Editor {
	e := &Editor{
		cache:     c,
		sender:    snd,
		log:       log,
		projectID: projectID,
		excluded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.hist = history.New(e.histDepth, cloneSnapshot)
	return e
}

// Items returns a copy of the live (non-tombstoned) line items.
func (e *Editor) Items() []*models.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.Record, 0, len(e.items))
	for _, r := range e.items {
		if !r.Tombstoned {
			out = append(out, r)
		}
	}
	return out
}

// Header returns the header record, or nil before the first mutation or
// hydration.
func (e *Editor) Header() *models.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.header
}

// Summary recomputes the totals from the current items.
func (e *Editor) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Totals(e.items, e.markupLocked())
}

func (e *Editor) markupLocked() float64 {
	if e.header == nil {
		return 0
	}
	return num(e.header.Payload[FieldMarkup])
}

// AddLine appends a provisional line item and queues it for transmission.
func (e *Editor) AddLine(ctx context.Context, payload map[string]any) *models.Record {
	rec := models.NewProvisional(models.ConversationKeyFor(models.ConversationProject, e.projectID), payload)
	e.ApplyEdit(ctx, func(items []*models.Record) []*models.Record {
		return correlate.MergeAndDedupe(items, []*models.Record{rec}, e.excluded)
	})
	return rec
}

// UpdateLine replaces the payload of an existing line.
func (e *Editor) UpdateLine(ctx context.Context, identity string, payload map[string]any) bool {
	updated := false
	e.ApplyEdit(ctx, func(items []*models.Record) []*models.Record {
		for i, r := range items {
			if r.Identity() == identity || r.ProvisionalID == identity {
				edited := r.Clone()
				edited.Payload = payload
				edited.Edited = true
				items[i] = edited
				updated = true
				break
			}
		}
		return items
	})
	return updated
}

// RemoveLine tombstones a line; the identity stays excluded for the
// session.
func (e *Editor) RemoveLine(ctx context.Context, identity string) {
	e.ApplyEdit(ctx, func(items []*models.Record) []*models.Record {
		kept := make([]*models.Record, 0, len(items))
		for _, r := range items {
			if r.Identity() == identity || r.ProvisionalID == identity {
				if r.ConfirmedID != "" {
					e.excluded[r.ConfirmedID] = true
				}
				if r.ProvisionalID != "" {
					e.excluded[r.ProvisionalID] = true
				}
				continue
			}
			kept = append(kept, r)
		}
		return kept
	})
}

// ApplyEdit records an undo point, applies mutate to the item list, then
// recomputes the aggregates and syncs them.
func (e *Editor) ApplyEdit(ctx context.Context, mutate func(items []*models.Record) []*models.Record) {
	e.mu.Lock()
	e.hist.Push(Snapshot{Items: e.items, Header: e.header})
	e.items = mutate(e.items)
	e.recomputeLocked()
	e.mu.Unlock()

	e.sync(ctx)
}

// Undo restores the previous snapshot, then re-runs the aggregate
// recomputation and persists it remotely. No-op on an empty undo stack.
func (e *Editor) Undo(ctx context.Context) bool {
	e.mu.Lock()
	restored, ok := e.hist.Undo(Snapshot{Items: e.items, Header: e.header})
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.items, e.header = restored.Items, restored.Header
	e.recomputeLocked()
	e.mu.Unlock()

	e.sync(ctx)
	return true
}

// Redo is the mirror of Undo.
func (e *Editor) Redo(ctx context.Context) bool {
	e.mu.Lock()
	restored, ok := e.hist.Redo(Snapshot{Items: e.items, Header: e.header})
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.items, e.header = restored.Items, restored.Header
	e.recomputeLocked()
	e.mu.Unlock()

	e.sync(ctx)
	return true
}

// CanUndo reports whether an undo point exists.
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanUndo()
}

// CanRedo reports whether a redo point exists.
func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanRedo()
}

// ApplyInbound merges a broadcast record from another participant. Records
// tagged KindHeader update the header; everything else merges into the line
// items. Inbound merges are not undo points: the journal tracks local batch
// edits only.
func (e *Editor) ApplyInbound(ctx context.Context, rec *models.Record) {
	if rec == nil {
		return
	}
	if kind, _ := rec.Payload[FieldKind].(string); kind == KindHeader {
		e.applyInboundHeader(ctx, rec)
		return
	}
	e.mu.Lock()
	e.items = correlate.MergeAndDedupe(e.items, []*models.Record{rec}, e.excluded)
	e.recomputeLocked()
	e.mu.Unlock()

	telemetry.RecordsMerged.Inc()
	e.persist(ctx)
}

// applyInboundHeader adopts the peer's markup factor (and the confirmed
// header identity, when the backend assigned one) and recomputes the totals
// from the local items. The peer's totals are not copied: they describe the
// peer's view of the table and the local fold is authoritative here.
func (e *Editor) applyInboundHeader(ctx context.Context, rec *models.Record) {
	e.mu.Lock()
	e.ensureHeaderLocked()
	if rec.ConfirmedID != "" {
		e.header.ConfirmedID = rec.ConfirmedID
		e.header.Pending = false
	}
	if _, ok := rec.Payload[FieldMarkup]; ok {
		e.header.Payload[FieldMarkup] = num(rec.Payload[FieldMarkup])
	}
	e.recomputeLocked()
	e.mu.Unlock()

	telemetry.RecordsMerged.Inc()
	e.persist(ctx)
}

// SetMarkup updates the header markup factor as an undoable edit.
func (e *Editor) SetMarkup(ctx context.Context, markup float64) {
	e.mu.Lock()
	e.hist.Push(Snapshot{Items: e.items, Header: e.header})
	e.ensureHeaderLocked()
	e.header.Payload[FieldMarkup] = markup
	e.recomputeLocked()
	e.mu.Unlock()

	e.sync(ctx)
}

func (e *Editor) ensureHeaderLocked() {
	if e.header == nil {
		e.header = models.NewProvisional(models.ConversationKeyFor(models.ConversationProject, e.projectID), map[string]any{})
	}
	if e.header.Payload == nil {
		e.header.Payload = map[string]any{}
	}
	e.header.Payload[FieldKind] = KindHeader
}

// recomputeLocked folds the items and writes the result into the header
// payload.
func (e *Editor) recomputeLocked() {
	e.ensureHeaderLocked()
	sum := Totals(e.items, e.markupLocked())
	e.header.Payload[FieldBudgeted] = sum.Budgeted
	e.header.Payload[FieldActual] = sum.Actual
	e.header.Payload[FieldFinal] = sum.Final
	e.header.Payload[FieldEffectiveMarkup] = sum.EffectiveMarkup
}

// sync persists the table and pushes the recomputed header to the backend.
func (e *Editor) sync(ctx context.Context) {
	e.persist(ctx)

	if e.sender == nil {
		return
	}
	e.mu.Lock()
	header := e.header.Clone()
	e.mu.Unlock()

	env := &models.Envelope{
		Action:           models.ActionProjectUpdated,
		ConversationType: models.ConversationProject,
		ConversationID:   e.projectID,
		Record:           header,
	}
	if err := e.sender.TrySend(ctx, env); err != nil {
		e.log.Warn(ctx, "failed to queue budget header sync", "project", e.projectID, "error", err)
	}
}

func (e *Editor) persist(ctx context.Context) {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	snap := cloneSnapshot(Snapshot{Items: e.items, Header: e.header})
	e.mu.Unlock()

	if err := e.cache.Set(ctx, budgetCacheKey(e.projectID), snap, 0); err != nil {
		telemetry.CacheWriteFailures.Inc()
		e.log.Warn(ctx, "cache write failed", "project", e.projectID, "error", err)
	}
}

// Hydrate loads the table from the cache; a missing or expired entry is a
// cold start.
func (e *Editor) Hydrate(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	var snap Snapshot
	found, err := e.cache.Get(ctx, budgetCacheKey(e.projectID), &snap)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	e.mu.Lock()
	e.items = correlate.MergeAndDedupe(snap.Items, e.items, e.excluded)
	if e.header == nil {
		e.header = snap.Header
	}
	e.recomputeLocked()
	e.mu.Unlock()
	return nil
}
