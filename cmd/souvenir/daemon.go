package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	souvenir "github.com/tmercier/souvenir"
	"github.com/tmercier/souvenir/internal/notify"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and accumulate snippets into a capture buffer",
		Long: `Polls the clipboard on an interval, collecting new text into a capture
buffer. URLs are kept aside as the buffer's source. Commands are read from
stdin:

  save     write the buffer to a new clip and run AI enrichment on it
  pause    suspend clipboard watching
  resume   resume watching (the current clipboard value counts as new)
  status   show buffer and watcher state
  quit     save any pending buffer and exit

Handles SIGINT/SIGTERM for graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			watcher := engine.Watcher()
			watcher.Start(ctx)
			log.Printf("daemon: watching clipboard every %ds", cfg.Clipboard.IntervalSeconds)

			if cfg.Reminders.Enabled {
				scanner := souvenir.NewReminderScanner(
					engine, notify.NewTerminal(),
					time.Duration(cfg.Reminders.IntervalMin)*time.Minute,
					time.Duration(cfg.Reminders.LeadMin)*time.Minute,
				)
				scanner.Start(ctx)
				defer scanner.Stop()
			}

			lines := readLines(os.Stdin)

			var buffer []string
			saveBuffer := func() {
				if len(buffer) == 0 {
					return
				}
				clip, err := engine.SaveBuffer(buffer, watcher.LastSourceURL())
				if err != nil {
					log.Printf("daemon: save buffer: %v", err)
					return
				}
				buffer = nil
				log.Printf("daemon: saved clip %d (%d chars)", clip.ID, len(clip.RawText))

				engine.SubmitEnrich(clip.ID, souvenir.EnrichOptions{Tags: true, Title: true}, func(result any, err error) {
					if err != nil {
						log.Printf("daemon: enrich clip %d: %v", clip.ID, err)
						return
					}
					if r, ok := result.(*souvenir.EnrichResult); ok && r != nil {
						log.Printf("daemon: clip %d tagged: %s", r.ClipID, strings.Join(r.Tags, ", "))
					}
				})
			}

			for {
				select {
				case <-sig:
					log.Println("daemon: received shutdown signal")
					saveBuffer()
					return nil

				case <-watcher.Notify():
					for _, item := range watcher.Drain() {
						buffer = append(buffer, item)
						log.Printf("daemon: captured snippet (%d chars), buffer holds %d", len(item), len(buffer))
					}

				case c := <-engine.Completions():
					c.Deliver()

				case line, ok := <-lines:
					if !ok {
						// stdin closed; keep running on clipboard and signals only
						lines = nil
						continue
					}
					if done := handleCommand(line, engine, &buffer, saveBuffer); done {
						return nil
					}
				}
			}
		},
	}
}

func handleCommand(line string, engine *souvenir.Engine, buffer *[]string, saveBuffer func()) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	watcher := engine.Watcher()
	switch fields[0] {
	case "save":
		if len(*buffer) == 0 {
			fmt.Println("buffer is empty")
			return false
		}
		saveBuffer()
	case "pause":
		watcher.SetSuspended(true)
		fmt.Println("watching paused")
	case "resume":
		watcher.SetSuspended(false)
		fmt.Println("watching resumed")
	case "status":
		state := "watching"
		if watcher.Suspended() {
			state = "paused"
		}
		fmt.Printf("%s, %d snippets buffered", state, len(*buffer))
		if src := watcher.LastSourceURL(); src != "" {
			fmt.Printf(", source %s", src)
		}
		fmt.Println()
	case "capture":
		if len(fields) != 2 {
			fmt.Println("usage: capture <url>")
			return false
		}
		engine.SubmitCapture(fields[1], func(result any, err error) {
			if err != nil {
				log.Printf("daemon: capture %s: %v", fields[1], err)
				return
			}
			if clip, ok := result.(*souvenir.Clip); ok && clip != nil {
				log.Printf("daemon: captured clip %d: %s", clip.ID, clip.Title)
			}
		})
	case "quit", "exit":
		saveBuffer()
		return true
	default:
		fmt.Println("commands: save, pause, resume, status, capture <url>, quit")
	}
	return false
}

func readLines(f *os.File) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}
