package souvenir

import (
	"strings"
	"time"

	"github.com/tmercier/souvenir/internal/storage"
)

// Clip is a captured note: pasted text, a saved page, or anything fed in
// through the buffer.
type Clip struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source,omitempty"`
	Title      string    `json:"title,omitempty"`
	Type       string    `json:"type"`
	RawText    string    `json:"raw_text"`
	Summary    string    `json:"summary,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	ReadLater  bool      `json:"read_later,omitempty"`
}

// Attachment is file metadata for a blob stored against a clip. Data is
// only populated by Engine.Attachment, never by listings.
type Attachment struct {
	ID       int64  `json:"id"`
	ClipID   int64  `json:"clip_id"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
	Data     []byte `json:"-"`
}

// Task is a todo item, optionally tied to a clip and a due time.
type Task struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Note      string     `json:"note,omitempty"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	ClipID    *int64     `json:"clip_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EnrichOptions selects which AI passes to run on a clip.
type EnrichOptions struct {
	Tags       bool
	Title      bool
	Categories bool
}

// EnrichResult reports what an enrichment pass changed.
type EnrichResult struct {
	ClipID     int64    `json:"clip_id"`
	Tags       []string `json:"tags,omitempty"`
	Title      string   `json:"title,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// ListOptions narrows List results. Zero value lists everything, newest
// first.
type ListOptions struct {
	Text      string
	Tag       string
	Category  string
	Type      string
	ReadLater *bool
	Limit     int
}

func clipFromStorage(c *storage.Clip) *Clip {
	return &Clip{
		ID:         c.ID,
		CreatedAt:  time.Unix(c.TS, 0),
		Source:     c.Source,
		Title:      c.Title,
		Type:       c.Type,
		RawText:    c.RawText,
		Summary:    c.Summary,
		Tags:       splitList(c.Tags),
		Categories: splitList(c.Categories),
		ReadLater:  c.ReadLater,
	}
}

func attachmentFromStorage(f *storage.File) *Attachment {
	return &Attachment{
		ID:       f.ID,
		ClipID:   f.ClipID,
		Filename: f.Filename,
		Mime:     f.Mime,
		Size:     f.Size,
		SHA256:   f.SHA256,
		Data:     f.Data,
	}
}

func taskFromStorage(t *storage.Task) *Task {
	task := &Task{
		ID:        t.ID,
		Title:     t.Title,
		Note:      t.Note,
		Status:    t.Status,
		Priority:  t.Priority,
		ClipID:    t.ClipID,
		CreatedAt: time.Unix(t.CreatedAt, 0),
	}
	if t.DueAt != nil {
		due := time.Unix(*t.DueAt, 0)
		task.DueAt = &due
	}
	return task
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}
