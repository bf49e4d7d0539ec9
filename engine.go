// Package souvenir is a personal capture engine: it watches the clipboard,
// files away text and pages into a local SQLite archive, and enriches the
// result with AI-generated tags and titles.
package souvenir

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/tmercier/souvenir/internal/ai"
	"github.com/tmercier/souvenir/internal/capture"
	"github.com/tmercier/souvenir/internal/clipboard"
	"github.com/tmercier/souvenir/internal/extract"
	"github.com/tmercier/souvenir/internal/jobs"
	"github.com/tmercier/souvenir/internal/storage"
)

// A clip carries at most two categories, regardless of how many the model
// offers.
const maxCategoriesPerClip = 2

// Engine is the public API over the capture pipeline. It wraps the store,
// the background job runner, the clipboard watcher, and the AI enricher.
type Engine struct {
	store     *storage.Store
	runner    *jobs.Runner
	watcher   *clipboard.Watcher
	enricher  *ai.Enricher
	fetcher   *capture.Fetcher
	extractor *extract.Set
	cfg       *storage.Config
}

// NewEngine opens the database and wires up the pipeline. The AI client is
// created eagerly but only contacts its endpoint when an enrichment runs.
func NewEngine(cfg *storage.Config) (*Engine, error) {
	if cfg == nil {
		cfg = storage.DefaultConfig()
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store.SetSummaryLength(cfg.Buffer.SummaryLength)

	completer, err := newCompleter(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	interval := time.Duration(cfg.Clipboard.IntervalSeconds) * time.Second
	watcher := clipboard.NewWatcher(clipboard.SystemReader(), interval)

	return &Engine{
		store:     store,
		runner:    jobs.NewRunner(),
		watcher:   watcher,
		enricher:  ai.NewEnricher(completer, cfg.AI.Language, cfg.AI.Temperature),
		fetcher:   capture.NewFetcher(),
		extractor: extract.DefaultSet(),
		cfg:       cfg,
	}, nil
}

func newCompleter(cfg *storage.Config) (ai.Completer, error) {
	switch cfg.AI.Provider {
	case "ollama":
		client, err := ai.NewOllamaClient(cfg.AI.Endpoint, cfg.AI.Model)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return client, nil
	case "", "chat":
		return ai.NewChatClient(cfg.AI.Endpoint, cfg.AI.Model, cfg.AI.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}

// Close stops the job runner and closes the database.
func (e *Engine) Close() error {
	e.runner.Stop()
	return e.store.Close()
}

// Watcher exposes the clipboard watcher for the daemon loop.
func (e *Engine) Watcher() *clipboard.Watcher { return e.watcher }

// Completions is the job runner's result channel. The daemon loop must
// drain it and call Deliver on each completion.
func (e *Engine) Completions() <-chan jobs.Completion { return e.runner.Completions() }

// Submit queues background work on the single job worker.
func (e *Engine) Submit(work jobs.Work, onDone jobs.Done) {
	e.runner.Submit(work, onDone)
}

// SaveBuffer joins the accumulated clipboard snippets into one clip. When
// sourceURL is non-empty it is recorded as the clip's origin. Empty buffers
// save nothing and return nil.
func (e *Engine) SaveBuffer(items []string, sourceURL string) (*Clip, error) {
	if len(items) == 0 {
		return nil, nil
	}

	sep := e.cfg.Buffer.Separator
	text := items[0]
	for _, part := range items[1:] {
		text += sep + part
	}

	c := &storage.Clip{Source: sourceURL, Type: "note", RawText: text}
	id, err := e.store.InsertClip(c)
	if err != nil {
		return nil, fmt.Errorf("save buffer: %w", err)
	}
	if sourceURL != "" {
		if err := e.store.RecordSourceURL(sourceURL, id); err != nil {
			log.Printf("engine: record source url: %v", err)
		}
	}
	return e.Clip(id)
}

// CaptureArticle fetches a URL, extracts the readable article, and stores
// it as a clip. A URL already captured returns the existing clip instead
// of fetching again.
func (e *Engine) CaptureArticle(ctx context.Context, rawURL string) (*Clip, error) {
	existing, err := e.store.FindClipBySource(rawURL)
	if err != nil {
		return nil, fmt.Errorf("lookup source: %w", err)
	}
	if existing != nil {
		return clipFromStorage(existing), nil
	}

	article, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	c := &storage.Clip{
		Source:  rawURL,
		Title:   article.Title,
		Type:    "web",
		RawText: article.Text,
	}
	id, err := e.store.InsertClip(c)
	if err != nil {
		return nil, fmt.Errorf("store article: %w", err)
	}
	if err := e.store.RecordSourceURL(rawURL, id); err != nil {
		log.Printf("engine: record source url: %v", err)
	}
	if len(article.HTML) > 0 {
		if _, _, err := e.store.InsertAttachment(id, "page.html", "text/html", article.HTML); err != nil {
			log.Printf("engine: archive page html for clip %d: %v", id, err)
		}
	}
	return e.Clip(id)
}

// SubmitCapture queues an article capture on the job runner. The result
// delivered to onDone is a *Clip.
func (e *Engine) SubmitCapture(rawURL string, onDone jobs.Done) {
	e.runner.Submit(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		return e.CaptureArticle(ctx, rawURL)
	}, onDone)
}

// AttachFile stores a file against a clip and queues text indexing for it.
// Attaching the same content to the same clip twice is a no-op returning
// the original attachment; the duplicate is not indexed again.
func (e *Engine) AttachFile(clipID int64, path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	filename := filepath.Base(path)
	mime := extract.DetectMime(filename, data)

	id, created, err := e.store.InsertAttachment(clipID, filename, mime, data)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", filename, err)
	}

	if created {
		e.runner.Submit(func() (any, error) {
			return nil, e.indexAttachment(id)
		}, func(_ any, err error) {
			if err != nil {
				log.Printf("engine: index attachment %d: %v", id, err)
			}
		})
	}

	att, err := e.store.GetAttachment(id)
	if err != nil {
		return nil, fmt.Errorf("read attachment %d: %w", id, err)
	}
	return attachmentFromStorage(att), nil
}

// CaptureFile creates a clip for a file on disk and attaches it. The file's
// text is indexed into the clip in the background.
func (e *Engine) CaptureFile(path string) (*Clip, *Attachment, error) {
	filename := filepath.Base(path)
	c := &storage.Clip{Title: filename, Type: "file"}
	id, err := e.store.InsertClip(c)
	if err != nil {
		return nil, nil, fmt.Errorf("create clip for %s: %w", filename, err)
	}
	att, err := e.AttachFile(id, path)
	if err != nil {
		return nil, nil, err
	}
	clip, err := e.Clip(id)
	if err != nil {
		return nil, nil, err
	}
	return clip, att, nil
}

// indexAttachment extracts text from a stored blob and appends it to the
// owning clip. Blobs with no extractable text are skipped silently.
func (e *Engine) indexAttachment(id int64) error {
	att, err := e.store.GetAttachment(id)
	if err != nil {
		return err
	}
	if att == nil {
		return nil
	}
	text := e.extractor.Extract(att.Data, att.Mime)
	if text == "" {
		return nil
	}
	return e.store.AppendRawText(att.ClipID, text, e.cfg.Buffer.Separator)
}

// Enrich runs the selected AI passes on a clip and applies the results:
// tags merge into the existing set, title fills only when empty unless
// forced, categories replace. A clip that has disappeared returns nil.
func (e *Engine) Enrich(ctx context.Context, clipID int64, opts EnrichOptions) (*EnrichResult, error) {
	c, err := e.store.GetClip(clipID)
	if err != nil {
		return nil, fmt.Errorf("get clip %d: %w", clipID, err)
	}
	if c == nil {
		return nil, nil
	}
	if c.RawText == "" {
		return &EnrichResult{ClipID: clipID}, nil
	}

	result := &EnrichResult{ClipID: clipID}
	var update storage.ClipUpdate

	if opts.Tags {
		tags, strategy, err := e.enricher.GenerateTags(ctx, c.RawText, e.cfg.AI.TagCount)
		if err != nil {
			return nil, fmt.Errorf("generate tags: %w", err)
		}
		merged := mergeTags(splitList(c.Tags), tags)
		joined := joinList(merged)
		update.Tags = &joined
		result.Tags = merged
		if strategy > ai.StrategyJSON {
			result.Degraded = true
		}
	}

	if opts.Title && c.Title == "" {
		title, err := e.enricher.GenerateTitle(ctx, c.RawText, e.cfg.AI.TitleMaxLen)
		if err != nil {
			return nil, fmt.Errorf("generate title: %w", err)
		}
		if title != "" {
			update.Title = &title
			result.Title = title
		}
	}

	if opts.Categories && len(e.cfg.Categories) > 0 {
		cats, strategy, err := e.enricher.ChooseCategories(ctx, c.RawText, e.cfg.Categories, maxCategoriesPerClip)
		if err != nil {
			return nil, fmt.Errorf("choose categories: %w", err)
		}
		joined := joinList(cats)
		update.Categories = &joined
		result.Categories = cats
		if strategy > ai.StrategyJSON {
			result.Degraded = true
		}
	}

	if err := e.store.UpdateClip(clipID, update); err != nil {
		return nil, fmt.Errorf("apply enrichment: %w", err)
	}
	return result, nil
}

// EnrichUntagged runs the tag pass over clips that have none yet. Failures
// on individual clips are logged and skipped, not fatal.
func (e *Engine) EnrichUntagged(ctx context.Context, limit int) (int, error) {
	clips, err := e.store.ListUntagged(limit)
	if err != nil {
		return 0, fmt.Errorf("list untagged: %w", err)
	}

	enriched := 0
	for _, c := range clips {
		if _, err := e.Enrich(ctx, c.ID, EnrichOptions{Tags: true, Title: true}); err != nil {
			log.Printf("engine: enrich clip %d: %v", c.ID, err)
			continue
		}
		enriched++
	}
	return enriched, nil
}

// EnrichUncategorized runs the category pass over clips that have none yet.
// It is a no-op without a configured category set.
func (e *Engine) EnrichUncategorized(ctx context.Context, limit int) (int, error) {
	if len(e.cfg.Categories) == 0 {
		return 0, nil
	}
	clips, err := e.store.ListUncategorized(limit)
	if err != nil {
		return 0, fmt.Errorf("list uncategorized: %w", err)
	}

	enriched := 0
	for _, c := range clips {
		if _, err := e.Enrich(ctx, c.ID, EnrichOptions{Categories: true}); err != nil {
			log.Printf("engine: categorize clip %d: %v", c.ID, err)
			continue
		}
		enriched++
	}
	return enriched, nil
}

// SuggestCategories asks the model for up to max categories that the
// configured set does not already cover, based on a clip's text. Nothing is
// written; the caller decides whether to adopt them into the config.
func (e *Engine) SuggestCategories(ctx context.Context, clipID int64, max int) ([]string, error) {
	c, err := e.store.GetClip(clipID)
	if err != nil {
		return nil, fmt.Errorf("get clip %d: %w", clipID, err)
	}
	if c == nil || c.RawText == "" {
		return nil, nil
	}
	return e.enricher.SuggestCategories(ctx, c.RawText, e.cfg.Categories, max)
}

// SubmitEnrich queues an enrichment pass on the job runner. The result
// delivered to onDone is a *EnrichResult.
func (e *Engine) SubmitEnrich(clipID int64, opts EnrichOptions, onDone jobs.Done) {
	e.runner.Submit(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()
		return e.Enrich(ctx, clipID, opts)
	}, onDone)
}

// Clip returns one clip, or nil when the id is unknown.
func (e *Engine) Clip(id int64) (*Clip, error) {
	c, err := e.store.GetClip(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	return clipFromStorage(c), nil
}

// List returns clips matching the options, newest first.
func (e *Engine) List(opts ListOptions) ([]Clip, error) {
	rows, err := e.store.ListClips(storage.ListFilter{
		Text:      opts.Text,
		Tag:       opts.Tag,
		Category:  opts.Category,
		Type:      opts.Type,
		ReadLater: opts.ReadLater,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Clip, 0, len(rows))
	for i := range rows {
		out = append(out, *clipFromStorage(&rows[i]))
	}
	return out, nil
}

// Update applies field changes to a clip. Unknown ids are a silent no-op.
func (e *Engine) Update(id int64, u storage.ClipUpdate) error {
	return e.store.UpdateClip(id, u)
}

// Append adds text to the end of a clip's raw text.
func (e *Engine) Append(id int64, text string) error {
	return e.store.AppendRawText(id, text, e.cfg.Buffer.Separator)
}

// Delete removes a clip and, via cascade, its attachments.
func (e *Engine) Delete(id int64) error {
	return e.store.DeleteClip(id)
}

// Attachment returns one attachment with its data, or nil when unknown.
func (e *Engine) Attachment(id int64) (*Attachment, error) {
	f, err := e.store.GetAttachment(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	return attachmentFromStorage(f), nil
}

// Attachments lists a clip's attachment metadata, without blob data.
func (e *Engine) Attachments(clipID int64) ([]Attachment, error) {
	rows, err := e.store.ListAttachments(clipID)
	if err != nil {
		return nil, err
	}
	out := make([]Attachment, 0, len(rows))
	for i := range rows {
		out = append(out, *attachmentFromStorage(&rows[i]))
	}
	return out, nil
}

// DeleteAttachment removes a single attachment, leaving its clip alone.
func (e *Engine) DeleteAttachment(id int64) error {
	return e.store.DeleteAttachment(id)
}

// TagCounts returns tag frequencies across the archive.
func (e *Engine) TagCounts() (map[string]int, error) {
	return e.store.TagCounts()
}

// CategoryCounts returns category frequencies across the archive.
func (e *Engine) CategoryCounts() (map[string]int, error) {
	return e.store.CategoryCounts()
}

// AddTask creates a task, optionally due at a given time and tied to a clip.
func (e *Engine) AddTask(title, note, priority string, dueAt *time.Time, clipID *int64) (*Task, error) {
	t := &storage.Task{
		Title:    title,
		Note:     note,
		Status:   "pending",
		Priority: priority,
		ClipID:   clipID,
	}
	if dueAt != nil {
		ts := dueAt.Unix()
		t.DueAt = &ts
	}
	id, err := e.store.InsertTask(t)
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	t.ID = id
	return taskFromStorage(t), nil
}

// Tasks lists all tasks, soonest due first.
func (e *Engine) Tasks() ([]Task, error) {
	rows, err := e.store.ListTasks()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(rows))
	for i := range rows {
		out = append(out, *taskFromStorage(&rows[i]))
	}
	return out, nil
}

// CompleteTask marks a task done.
func (e *Engine) CompleteTask(id int64) error {
	return e.store.MarkTaskDone(id)
}

// DeleteTask removes a task.
func (e *Engine) DeleteTask(id int64) error {
	return e.store.DeleteTask(id)
}

// Store exposes the underlying store for export and import.
func (e *Engine) Store() *storage.Store { return e.store }

func mergeTags(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(added))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range added {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
