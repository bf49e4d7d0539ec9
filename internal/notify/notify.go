// Package notify delivers reminder alerts. Only a terminal notifier is
// implemented; the interface leaves room for desktop integrations.
package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tmercier/souvenir/internal/storage"
)

// Notifier receives tasks whose reminders have come due.
type Notifier interface {
	NotifyDue(tasks []storage.Task) error
}

// Terminal prints reminder banners to a writer, normally stdout.
type Terminal struct {
	out io.Writer
}

func NewTerminal() *Terminal {
	return &Terminal{out: os.Stdout}
}

// NewTerminalWithWriter creates a terminal notifier with a custom writer for testability
func NewTerminalWithWriter(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (n *Terminal) NotifyDue(tasks []storage.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	for _, t := range tasks {
		due := ""
		if t.DueAt != nil {
			due = time.Unix(*t.DueAt, 0).Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintln(n.out, "╔════════════════════════════════════════════════════════")
		fmt.Fprintf(n.out, "║ ⏰ REMINDER: %s\n", t.Title)
		if due != "" {
			fmt.Fprintf(n.out, "║ due %s\n", due)
		}
		if note := strings.TrimSpace(t.Note); note != "" {
			fmt.Fprintf(n.out, "║ %s\n", truncate(note, 200))
		}
		fmt.Fprintln(n.out, "╚════════════════════════════════════════════════════════")
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
