// Package output renders CLI results as json, text, or human formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	souvenir "github.com/tmercier/souvenir"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// Warning prints a warning to the error stream regardless of format.
func (f *Formatter) Warning(format string, args ...any) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// OutputClipList renders a clip listing.
func (f *Formatter) OutputClipList(clips []souvenir.Clip) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(clips)
	case FormatText:
		for _, c := range clips {
			fmt.Fprintf(f.out, "%d\t%s\t%s\t%s\n", c.ID, c.Type, c.Title, strings.Join(c.Tags, ","))
		}
		return nil
	default:
		if len(clips) == 0 {
			fmt.Fprintln(f.out, "No clips found")
			return nil
		}
		for _, c := range clips {
			title := c.Title
			if title == "" {
				title = c.Summary
			}
			fmt.Fprintf(f.out, "[%d] %s  %s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), title)
			if len(c.Tags) > 0 {
				fmt.Fprintf(f.out, "     tags: %s\n", strings.Join(c.Tags, ", "))
			}
		}
		fmt.Fprintf(f.out, "\n%d clips\n", len(clips))
		return nil
	}
}

// OutputClip renders one clip in full, with its attachment metadata.
func (f *Formatter) OutputClip(c *souvenir.Clip, attachments []souvenir.Attachment) error {
	if f.format == FormatJSON {
		return json.NewEncoder(f.out).Encode(struct {
			*souvenir.Clip
			Attachments []souvenir.Attachment `json:"attachments,omitempty"`
		}{c, attachments})
	}

	fmt.Fprintf(f.out, "Clip %d (%s)\n", c.ID, c.Type)
	fmt.Fprintf(f.out, "Created: %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
	if c.Title != "" {
		fmt.Fprintf(f.out, "Title: %s\n", c.Title)
	}
	if c.Source != "" {
		fmt.Fprintf(f.out, "Source: %s\n", c.Source)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(f.out, "Tags: %s\n", strings.Join(c.Tags, ", "))
	}
	if len(c.Categories) > 0 {
		fmt.Fprintf(f.out, "Categories: %s\n", strings.Join(c.Categories, ", "))
	}
	if c.ReadLater {
		fmt.Fprintln(f.out, "Read later: yes")
	}
	for _, a := range attachments {
		fmt.Fprintf(f.out, "Attachment %d: %s (%s, %d bytes)\n", a.ID, a.Filename, a.Mime, a.Size)
	}
	fmt.Fprintf(f.out, "\n%s\n", c.RawText)
	return nil
}

// OutputTaskList renders tasks.
func (f *Formatter) OutputTaskList(tasks []souvenir.Task) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(tasks)
	case FormatText:
		for _, t := range tasks {
			due := "-"
			if t.DueAt != nil {
				due = t.DueAt.Format(time.RFC3339)
			}
			fmt.Fprintf(f.out, "%d\t%s\t%s\t%s\n", t.ID, t.Status, due, t.Title)
		}
		return nil
	default:
		if len(tasks) == 0 {
			fmt.Fprintln(f.out, "No tasks")
			return nil
		}
		for _, t := range tasks {
			mark := " "
			if t.Status == "done" {
				mark = "x"
			}
			line := fmt.Sprintf("[%s] %d %s", mark, t.ID, t.Title)
			if t.DueAt != nil {
				line += fmt.Sprintf("  (due %s)", t.DueAt.Local().Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(f.out, line)
		}
		return nil
	}
}

// OutputEnrichResult renders an enrichment outcome.
func (f *Formatter) OutputEnrichResult(r *souvenir.EnrichResult) error {
	if f.format == FormatJSON {
		return json.NewEncoder(f.out).Encode(r)
	}
	fmt.Fprintf(f.out, "Clip %d enriched\n", r.ClipID)
	if len(r.Tags) > 0 {
		fmt.Fprintf(f.out, "  tags: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Title != "" {
		fmt.Fprintf(f.out, "  title: %s\n", r.Title)
	}
	if len(r.Categories) > 0 {
		fmt.Fprintf(f.out, "  categories: %s\n", strings.Join(r.Categories, ", "))
	}
	return nil
}

// OutputCounts renders tag or category frequency counts.
func (f *Formatter) OutputCounts(counts map[string]int) error {
	if f.format == FormatJSON {
		return json.NewEncoder(f.out).Encode(counts)
	}
	for name, n := range counts {
		fmt.Fprintf(f.out, "%s\t%d\n", name, n)
	}
	return nil
}
