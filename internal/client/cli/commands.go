package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/collabdesk/collabdesk/internal/client/budget"
	"github.com/collabdesk/collabdesk/internal/client/models"
	"github.com/collabdesk/collabdesk/internal/shared"
)

// Open switches the active conversation: open dm|project <id>.
// Project conversations are hydrated from the cache on first open.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: open dm|project <id>")
	}

	var ct models.ConversationType
	switch args[0] {
	case "dm":
		ct = models.ConversationDM
	case "project":
		ct = models.ConversationProject
	default:
		return fmt.Errorf("unknown conversation type: %s", args[0])
	}

	id := args[1]
	if ct == models.ConversationProject {
		if err := a.store.HydrateProject(ctx, id); err != nil {
			a.log.Warn(ctx, "project hydration failed", "project", id, "error", err)
		}
	}

	a.store.SetActiveConversation(ctx, ct, id)
	a.activeKey = models.ConversationKeyFor(ct, id)
	printlnFn("Opened", a.activeKey)
	return nil
}

// Send posts a message to the active conversation.
func (a *App) Send(ctx context.Context, args []string) error {
	if a.activeKey == "" {
		return fmt.Errorf("no active conversation, use 'open' first")
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: send <text>")
	}

	ct, id, ok := models.SplitConversationKey(a.activeKey)
	if !ok {
		return fmt.Errorf("malformed conversation key: %s", a.activeKey)
	}

	rec := a.store.SendMessage(ctx, ct, id, map[string]any{"text": strings.Join(args, " ")})
	printlnFn("Sent", rec.Identity())
	return nil
}

// List prints the live records of the active conversation.
func (a *App) List(ctx context.Context) error {
	if a.activeKey == "" {
		return fmt.Errorf("no active conversation, use 'open' first")
	}
	for _, rec := range a.store.Records(a.activeKey) {
		status := ""
		if rec.Pending {
			status = " (pending)"
		}
		if rec.Edited {
			status += " (edited)"
		}
		text, _ := rec.Payload["text"].(string)
		printlnFn(fmt.Sprintf("%s  %s%s", rec.Identity(), text, status))
	}
	printlnFn(fmt.Sprintf("unread: %d", a.store.UnreadCount(a.activeKey)))
	return nil
}

// Edit replaces the text of a message: edit <id> <text>.
func (a *App) Edit(ctx context.Context, args []string) error {
	if a.activeKey == "" {
		return fmt.Errorf("no active conversation, use 'open' first")
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: edit <id> <text>")
	}
	if !a.store.EditMessage(ctx, a.activeKey, args[0], map[string]any{"text": strings.Join(args[1:], " ")}) {
		return fmt.Errorf("%w: message %s", shared.ErrorNotFound, args[0])
	}
	return nil
}

// Delete tombstones a message: del <id>.
func (a *App) Delete(ctx context.Context, args []string) error {
	if a.activeKey == "" {
		return fmt.Errorf("no active conversation, use 'open' first")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: del <id>")
	}
	a.store.DeleteMessage(ctx, a.activeKey, args[0])
	return nil
}

// Attach uploads a file and sends a message referencing it:
// attach <path>.
func (a *App) Attach(ctx context.Context, args []string) error {
	if a.activeKey == "" {
		return fmt.Errorf("no active conversation, use 'open' first")
	}
	if a.uploader == nil {
		return fmt.Errorf("uploads are not configured, set COLLABDESK_PRESIGN_URL")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: attach <path>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}

	fileURL, err := a.uploader.Upload(ctx, filepath.Base(args[0]), data)
	if err != nil {
		return err
	}

	ct, id, ok := models.SplitConversationKey(a.activeKey)
	if !ok {
		return fmt.Errorf("malformed conversation key: %s", a.activeKey)
	}

	rec := a.store.SendMessage(ctx, ct, id, map[string]any{
		"text":          filepath.Base(args[0]),
		"attachmentUrl": fileURL,
	})
	printlnFn("Sent attachment", rec.Identity())
	return nil
}

// React toggles a reaction: react <id> <emoji>.
func (a *App) React(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: react <id> <emoji>")
	}
	a.store.ToggleReaction(ctx, args[0], args[1], a.config.UserID)
	return nil
}

// Read marks the active conversation as read.
func (a *App) Read(ctx context.Context) error {
	if a.activeKey == "" {
		return fmt.Errorf("no active conversation, use 'open' first")
	}
	a.store.MarkRead(ctx, a.activeKey)
	return nil
}

// Pending lists records still awaiting server confirmation.
func (a *App) Pending(ctx context.Context) error {
	recs := a.store.PendingRecords()
	if len(recs) == 0 {
		printlnFn("Nothing pending")
		return nil
	}
	for _, rec := range recs {
		printlnFn(fmt.Sprintf("%s  %s", rec.ConversationKey, rec.Identity()))
	}
	return nil
}

// BudgetAdd adds a budget line to the active project:
// badd <qty> <unitBudgetCost> <unitActualCost>.
func (a *App) BudgetAdd(ctx context.Context, args []string) error {
	ed, err := a.activeBudget(ctx)
	if err != nil {
		return err
	}
	if len(args) != 3 {
		return fmt.Errorf("usage: badd <qty> <unitBudgetCost> <unitActualCost>")
	}

	payload := map[string]any{}
	for i, field := range []string{budget.FieldQty, budget.FieldUnitBudgetCost, budget.FieldUnitActualCost} {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
		payload[field] = v
	}

	rec := ed.AddLine(ctx, payload)
	printlnFn("Added line", rec.Identity())
	return nil
}

func (a *App) BudgetUndo(ctx context.Context) error {
	ed, err := a.activeBudget(ctx)
	if err != nil {
		return err
	}
	if !ed.Undo(ctx) {
		printlnFn("Nothing to undo")
	}
	return nil
}

func (a *App) BudgetRedo(ctx context.Context) error {
	ed, err := a.activeBudget(ctx)
	if err != nil {
		return err
	}
	if !ed.Redo(ctx) {
		printlnFn("Nothing to redo")
	}
	return nil
}

// BudgetSummary prints the derived totals of the active project's budget.
func (a *App) BudgetSummary(ctx context.Context) error {
	ed, err := a.activeBudget(ctx)
	if err != nil {
		return err
	}
	sum := ed.Summary()
	printlnFn(fmt.Sprintf("budgeted=%.2f actual=%.2f final=%.2f effectiveMarkup=%.4f",
		sum.Budgeted, sum.Actual, sum.Final, sum.EffectiveMarkup))
	return nil
}

func (a *App) activeBudget(ctx context.Context) (*budget.Editor, error) {
	if a.activeKey == "" {
		return nil, fmt.Errorf("no active conversation, use 'open' first")
	}
	ct, id, ok := models.SplitConversationKey(a.activeKey)
	if !ok {
		return nil, fmt.Errorf("malformed conversation key: %s", a.activeKey)
	}
	if ct != models.ConversationProject {
		return nil, fmt.Errorf("budgets exist for project conversations only")
	}
	return a.Budget(ctx, id), nil
}
