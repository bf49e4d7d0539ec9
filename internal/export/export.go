// Package export writes the archive out as markdown, HTML, or JSON, and
// reads JSON dumps back in.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/tmercier/souvenir/internal/storage"
)

// Exporter renders clips from a store into files under a target directory.
type Exporter struct {
	store      *storage.Store
	dir        string
	datePrefix bool
}

func NewExporter(store *storage.Store, dir string, datePrefix bool) *Exporter {
	return &Exporter{store: store, dir: dir, datePrefix: datePrefix}
}

type frontMatter struct {
	ID         int64    `yaml:"id"`
	Date       string   `yaml:"date"`
	Title      string   `yaml:"title,omitempty"`
	Source     string   `yaml:"source,omitempty"`
	Type       string   `yaml:"type"`
	Tags       []string `yaml:"tags,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
	ReadLater  bool     `yaml:"read_later,omitempty"`
}

// Markdown writes one .md file per clip with YAML front matter. Returns
// the number of files written.
func (e *Exporter) Markdown() (int, error) {
	return e.writeAll(".md", func(c *storage.Clip, body string) ([]byte, error) {
		fm := frontMatter{
			ID:         c.ID,
			Date:       time.Unix(c.TS, 0).UTC().Format("2006-01-02 15:04"),
			Title:      c.Title,
			Source:     c.Source,
			Type:       c.Type,
			Tags:       splitList(c.Tags),
			Categories: splitList(c.Categories),
			ReadLater:  c.ReadLater,
		}
		head, err := yaml.Marshal(&fm)
		if err != nil {
			return nil, fmt.Errorf("marshal front matter: %w", err)
		}
		var b bytes.Buffer
		b.WriteString("---\n")
		b.Write(head)
		b.WriteString("---\n\n")
		b.WriteString(body)
		b.WriteString("\n")
		return b.Bytes(), nil
	})
}

// HTML renders each clip's text through a GFM markdown converter into a
// standalone .html file.
func (e *Exporter) HTML() (int, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	return e.writeAll(".html", func(c *storage.Clip, body string) ([]byte, error) {
		var rendered bytes.Buffer
		if err := md.Convert([]byte(body), &rendered); err != nil {
			return nil, fmt.Errorf("render clip %d: %w", c.ID, err)
		}
		var b bytes.Buffer
		fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", htmlEscape(c.Title))
		if c.Title != "" {
			fmt.Fprintf(&b, "<h1>%s</h1>\n", htmlEscape(c.Title))
		}
		b.Write(rendered.Bytes())
		b.WriteString("</body>\n</html>\n")
		return b.Bytes(), nil
	})
}

func (e *Exporter) writeAll(ext string, render func(*storage.Clip, string) ([]byte, error)) (int, error) {
	clips, err := e.store.ListClips(storage.ListFilter{})
	if err != nil {
		return 0, fmt.Errorf("list clips: %w", err)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}

	written := 0
	for i := range clips {
		c := &clips[i]
		content, err := render(c, c.RawText)
		if err != nil {
			return written, err
		}
		name := e.filename(c) + ext
		if err := os.WriteFile(filepath.Join(e.dir, name), content, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written++
	}
	return written, nil
}

func (e *Exporter) filename(c *storage.Clip) string {
	name := slugify(c.Title)
	if name == "" {
		name = fmt.Sprintf("clip-%d", c.ID)
	} else {
		// slug collisions across clips are real; the id keeps names unique
		name = fmt.Sprintf("%s-%d", name, c.ID)
	}
	if e.datePrefix {
		name = time.Unix(c.TS, 0).UTC().Format("2006-01-02") + "-" + name
	}
	return name
}

// dump is the JSON interchange shape shared by export and import.
type dump struct {
	ExportedAt string       `json:"exported_at"`
	Clips      []dumpClip   `json:"clips"`
	Tasks      []dumpTask   `json:"tasks,omitempty"`
}

type dumpClip struct {
	storage.Clip
	Attachments []dumpFile `json:"attachments,omitempty"`
}

type dumpFile struct {
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Data     []byte `json:"data"`
}

type dumpTask struct {
	Title     string `json:"title"`
	Note      string `json:"note,omitempty"`
	Status    string `json:"status"`
	Priority  string `json:"priority,omitempty"`
	DueAt     *int64 `json:"due_at,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// JSON writes the whole archive, attachment blobs included, to w.
func (e *Exporter) JSON(w io.Writer) error {
	clips, err := e.store.ListClips(storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("list clips: %w", err)
	}

	d := dump{ExportedAt: time.Now().UTC().Format(time.RFC3339)}
	for i := range clips {
		dc := dumpClip{Clip: clips[i]}
		metas, err := e.store.ListAttachments(clips[i].ID)
		if err != nil {
			return fmt.Errorf("list attachments for clip %d: %w", clips[i].ID, err)
		}
		for _, m := range metas {
			full, err := e.store.GetAttachment(m.ID)
			if err != nil {
				return fmt.Errorf("read attachment %d: %w", m.ID, err)
			}
			if full == nil {
				continue
			}
			dc.Attachments = append(dc.Attachments, dumpFile{
				Filename: full.Filename,
				Mime:     full.Mime,
				Data:     full.Data,
			})
		}
		d.Clips = append(d.Clips, dc)
	}

	tasks, err := e.store.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		d.Tasks = append(d.Tasks, dumpTask{
			Title:     t.Title,
			Note:      t.Note,
			Status:    t.Status,
			Priority:  t.Priority,
			DueAt:     t.DueAt,
			CreatedAt: t.CreatedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&d)
}

// Import reads a JSON dump and inserts its clips, attachments, and tasks
// into the store. Record ids from the dump are discarded; the store assigns
// new ones. Returns the number of clips imported.
func Import(store *storage.Store, r io.Reader) (int, error) {
	var d dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return 0, fmt.Errorf("decode dump: %w", err)
	}

	imported := 0
	for i := range d.Clips {
		dc := &d.Clips[i]
		clip := dc.Clip
		clip.ID = 0
		id, err := store.InsertClip(&clip)
		if err != nil {
			return imported, fmt.Errorf("import clip %q: %w", clip.Title, err)
		}
		for _, f := range dc.Attachments {
			if _, _, err := store.InsertAttachment(id, f.Filename, f.Mime, f.Data); err != nil {
				return imported, fmt.Errorf("import attachment %q: %w", f.Filename, err)
			}
		}
		if clip.Source != "" {
			if err := store.RecordSourceURL(clip.Source, id); err != nil {
				return imported, fmt.Errorf("record source %q: %w", clip.Source, err)
			}
		}
		imported++
	}

	for _, dt := range d.Tasks {
		task := storage.Task{
			Title:     dt.Title,
			Note:      dt.Note,
			Status:    dt.Status,
			Priority:  dt.Priority,
			DueAt:     dt.DueAt,
			CreatedAt: dt.CreatedAt,
		}
		if _, err := store.InsertTask(&task); err != nil {
			return imported, fmt.Errorf("import task %q: %w", dt.Title, err)
		}
	}
	return imported, nil
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	return slug
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

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
