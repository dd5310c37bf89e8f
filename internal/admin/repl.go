package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	Show(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Sweep(ctx context.Context) error
	Verify(ctx context.Context) error
}

// runREPL reads one command per line until EOF or "exit". Commands that
// prompt for more input read from the same reader.
//
//	help              show available commands
//	show <id>         print a stored session, tokens redacted
//	delete <id>       delete a session
//	sweep             purge expired entries now
//	verify            check a cookie value for a company
//	exit | quit       leave the program
//
// Handlers print their own errors, so the loop ignores them.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprint(w, "sessionctl> ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			fmt.Fprintln(w, "Available commands: show <id>, delete <id>, sweep, verify, exit")

		case "show", "delete":
			if len(args) != 1 {
				fmt.Fprintf(w, "Usage: %s <session-id>\n", cmd)
				continue
			}
			if cmd == "show" {
				_ = a.Show(ctx, args[0])
			} else {
				_ = a.Delete(ctx, args[0])
			}

		case "sweep":
			_ = a.Sweep(ctx)

		case "verify":
			_ = a.Verify(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}
