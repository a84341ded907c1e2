package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Open(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	React(ctx context.Context, args []string) error
	Read(ctx context.Context) error
	Pending(ctx context.Context) error
	BudgetAdd(ctx context.Context, args []string) error
	BudgetUndo(ctx context.Context) error
	BudgetRedo(ctx context.Context) error
	BudgetSummary(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the Collabdesk client.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the connection status (from statusFn) and accepts:
//
//	open dm|project <id>     — switch the active conversation
//	send <text>              — send a message to the active conversation
//	list                     — list messages in the active conversation
//	edit <id> <text>         — edit a message
//	attach <path>            — upload a file and send it as a message
//	del <id>                 — delete a message
//	react <id> <emoji>       — toggle a reaction
//	read                     — mark the active conversation read
//	pending                  — list records awaiting confirmation
//	badd <qty> <bud> <act>   — add a budget line to the active project
//	bundo | bredo            — undo / redo the last budget edit
//	bsum                     — print budget totals
//	help                     — show available commands
//	exit | quit              — leave the program
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cd> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: open, send, list, edit, attach, del, react, read, pending, badd, bundo, bredo, bsum, exit")
		case "open":
			err = a.Open(ctx, args)
		case "send":
			err = a.Send(ctx, args)
		case "list", "l":
			err = a.List(ctx)
		case "edit":
			err = a.Edit(ctx, args)
		case "attach":
			err = a.Attach(ctx, args)
		case "del":
			err = a.Delete(ctx, args)
		case "react":
			err = a.React(ctx, args)
		case "read":
			err = a.Read(ctx)
		case "pending":
			err = a.Pending(ctx)
		case "badd":
			err = a.BudgetAdd(ctx, args)
		case "bundo":
			err = a.BudgetUndo(ctx)
		case "bredo":
			err = a.BudgetRedo(ctx)
		case "bsum":
			err = a.BudgetSummary(ctx)
		case "exit", "quit":
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
