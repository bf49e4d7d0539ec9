package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultSummaryLen = 150
	summaryMarker     = "..."
)

type Store struct {
	db         *sql.DB
	summaryLen int
}

// Clip is the primary persisted unit of captured text plus metadata.
type Clip struct {
	ID         int64
	TS         int64 // capture time, Unix seconds UTC
	Source     string
	Title      string
	Type       string // "note", "web", or "file"
	RawText    string
	Summary    string
	Tags       string // comma-separated
	Categories string // comma-separated, 0-2 entries
	ReadLater  bool
}

// File is a binary attachment owned by exactly one clip, addressed by the
// sha256 of its content.
type File struct {
	ID       int64
	ClipID   int64
	Filename string
	Mime     string
	Size     int64
	SHA256   string
	Data     []byte
}

type Task struct {
	ID        int64
	Title     string
	Note      string
	Status    string // "pending" or "done"
	Priority  string
	DueAt     *int64 // Unix seconds; nil means no reminder ever fires
	ClipID    *int64
	CreatedAt int64
}

// NewStore opens (creating if necessary) the database and initializes the
// schema. The connection is configured for WAL journaling with a 5 second
// busy timeout, so concurrent short-lived writes from the UI loop and the
// job worker serialize inside the driver.
func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %v", ErrUnavailable, err)
	}

	// Initialize schema
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", ErrUnavailable, err)
	}

	return &Store{db: db, summaryLen: defaultSummaryLen}, nil
}

// SetSummaryLength overrides the preview length used when recomputing a
// clip's summary. Zero or negative values are ignored.
func (s *Store) SetSummaryLength(n int) {
	if n > 0 {
		s.summaryLen = n
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// summarize derives the stored summary from raw text: the first summaryLen
// runes followed by the marker. The summary is never edited independently.
func (s *Store) summarize(raw string) string {
	if raw == "" {
		return ""
	}
	runes := []rune(raw)
	if len(runes) > s.summaryLen {
		runes = runes[:s.summaryLen]
	}
	return string(runes) + summaryMarker
}

// wrapBusy converts the driver's lock-contention errors into ErrBusy.
// Everything else passes through unchanged.
func wrapBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// Clips

// InsertClip inserts a new clip and returns its assigned id. The summary is
// computed from RawText here; any Summary value on the argument is ignored.
// A zero TS is replaced with the current time.
func (s *Store) InsertClip(c *Clip) (int64, error) {
	ts := c.TS
	if ts == 0 {
		ts = time.Now().UTC().Unix()
	}
	if c.Type == "" {
		c.Type = "note"
	}
	result, err := s.db.Exec(
		`INSERT INTO clips (ts, source, title, type, raw_text, summary, tags, categories, read_later)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, c.Source, c.Title, c.Type, c.RawText, s.summarize(c.RawText),
		c.Tags, c.Categories, c.ReadLater,
	)
	if err != nil {
		return 0, fmt.Errorf("insert clip: %w", wrapBusy(err))
	}
	return result.LastInsertId()
}

// GetClip returns a clip by id, or nil if it does not exist.
func (s *Store) GetClip(id int64) (*Clip, error) {
	var c Clip
	err := s.db.QueryRow(
		`SELECT id, ts, source, title, type, raw_text, summary, tags, categories, read_later
		 FROM clips WHERE id = ?`, id,
	).Scan(&c.ID, &c.TS, &c.Source, &c.Title, &c.Type, &c.RawText, &c.Summary,
		&c.Tags, &c.Categories, &c.ReadLater)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clip %d: %w", id, err)
	}
	return &c, nil
}

// ClipUpdate holds a partial update; nil fields are left untouched.
type ClipUpdate struct {
	Source     *string
	Title      *string
	Type       *string
	RawText    *string
	Tags       *string
	Categories *string
	ReadLater  *bool
}

// UpdateClip applies a partial update. When RawText changes the summary is
// recomputed. Updating a clip that no longer exists is a silent no-op so
// that completion callbacks racing a delete stay harmless.
func (s *Store) UpdateClip(id int64, u ClipUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Source != nil {
		add("source", *u.Source)
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Type != nil {
		add("type", *u.Type)
	}
	if u.RawText != nil {
		add("raw_text", *u.RawText)
		add("summary", s.summarize(*u.RawText))
	}
	if u.Tags != nil {
		add("tags", *u.Tags)
	}
	if u.Categories != nil {
		add("categories", *u.Categories)
	}
	if u.ReadLater != nil {
		add("read_later", *u.ReadLater)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := s.db.Exec("UPDATE clips SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update clip %d: %w", id, wrapBusy(err))
	}
	return nil
}

// AppendRawText concatenates extra text onto a clip's raw_text, inserting the
// separator when the clip already has content, and recomputes the summary.
// Concurrent appends to the same clip are serialized by the store; the last
// committed write wins. Appending to a deleted clip is a silent no-op.
func (s *Store) AppendRawText(id int64, extra, separator string) error {
	if extra == "" {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append raw text: %w", wrapBusy(err))
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow("SELECT raw_text FROM clips WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("append raw text: read clip %d: %w", id, err)
	}

	combined := extra
	if current != "" {
		combined = current + separator + extra
	}
	if _, err := tx.Exec(
		"UPDATE clips SET raw_text = ?, summary = ? WHERE id = ?",
		combined, s.summarize(combined), id,
	); err != nil {
		return fmt.Errorf("append raw text: write clip %d: %w", id, wrapBusy(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append raw text: commit: %w", wrapBusy(err))
	}
	return nil
}

// DeleteClip removes a clip. Attachments and source-URL entries cascade.
func (s *Store) DeleteClip(id int64) error {
	if _, err := s.db.Exec("DELETE FROM clips WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete clip %d: %w", id, wrapBusy(err))
	}
	return nil
}

// ListFilter narrows ListClips. Zero values mean "no constraint".
type ListFilter struct {
	Text      string // LIKE match against title, raw_text and tags
	Tag       string
	Category  string
	Type      string
	ReadLater *bool
	Limit     int
}

// ListClips returns clips newest first, optionally filtered.
func (s *Store) ListClips(f ListFilter) ([]Clip, error) {
	query := `SELECT id, ts, source, title, type, raw_text, summary, tags, categories, read_later FROM clips`
	var conds []string
	var args []any
	if f.Text != "" {
		conds = append(conds, "(title LIKE ? OR raw_text LIKE ? OR tags LIKE ?)")
		pat := "%" + f.Text + "%"
		args = append(args, pat, pat, pat)
	}
	if f.Tag != "" {
		conds = append(conds, "tags LIKE ?")
		args = append(args, "%"+f.Tag+"%")
	}
	if f.Category != "" {
		conds = append(conds, "categories LIKE ?")
		args = append(args, "%"+f.Category+"%")
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.ReadLater != nil {
		conds = append(conds, "read_later = ?")
		args = append(args, *f.ReadLater)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		if err := rows.Scan(&c.ID, &c.TS, &c.Source, &c.Title, &c.Type, &c.RawText,
			&c.Summary, &c.Tags, &c.Categories, &c.ReadLater); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// ListUntagged returns clips whose tags field is empty, oldest first, for
// batch AI enrichment.
func (s *Store) ListUntagged(limit int) ([]Clip, error) {
	return s.listWhere("tags = ''", limit)
}

// ListUncategorized returns clips with no categories assigned, oldest first.
func (s *Store) ListUncategorized(limit int) ([]Clip, error) {
	return s.listWhere("categories = ''", limit)
}

func (s *Store) listWhere(cond string, limit int) ([]Clip, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, source, title, type, raw_text, summary, tags, categories, read_later
		 FROM clips WHERE `+cond+` ORDER BY ts ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		if err := rows.Scan(&c.ID, &c.TS, &c.Source, &c.Title, &c.Type, &c.RawText,
			&c.Summary, &c.Tags, &c.Categories, &c.ReadLater); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// TagCounts returns how many clips carry each tag. Tags are stored
// comma-separated, so the counting happens here rather than in SQL.
func (s *Store) TagCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT tags FROM clips WHERE tags <> ''")
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, fmt.Errorf("scan tags: %w", err)
		}
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				counts[t]++
			}
		}
	}
	return counts, rows.Err()
}

// CategoryCounts returns how many clips carry each category.
func (s *Store) CategoryCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT categories FROM clips WHERE categories <> ''")
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cats string
		if err := rows.Scan(&cats); err != nil {
			return nil, fmt.Errorf("scan categories: %w", err)
		}
		for _, c := range strings.Split(cats, ",") {
			if c = strings.TrimSpace(c); c != "" {
				counts[c]++
			}
		}
	}
	return counts, rows.Err()
}

// Attachments

// InsertAttachment stores binary data bound to a clip, content-addressed by
// sha256. Inserting data a clip already owns returns the existing attachment
// id without writing any bytes; created reports whether a new row was
// written. Returns ErrOwnerNotFound when the clip does not exist.
func (s *Store) InsertAttachment(clipID int64, filename, mime string, data []byte) (id int64, created bool, err error) {
	var exists int
	err = s.db.QueryRow("SELECT 1 FROM clips WHERE id = ?", clipID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, false, fmt.Errorf("%w: clip %d", ErrOwnerNotFound, clipID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert attachment: %w", err)
	}

	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	var existingID int64
	err = s.db.QueryRow(
		"SELECT id FROM files WHERE clip_id = ? AND sha256 = ?", clipID, sha,
	).Scan(&existingID)
	if err == nil {
		return existingID, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("insert attachment: %w", err)
	}

	result, err := s.db.Exec(
		"INSERT INTO files (clip_id, filename, mime, size, sha256, data) VALUES (?, ?, ?, ?, ?, ?)",
		clipID, filename, mime, len(data), sha, data,
	)
	if isUniqueViolation(err) {
		// A concurrent insert of the same content won the race between our
		// existence check and the INSERT. Its row is the one to return.
		err = s.db.QueryRow(
			"SELECT id FROM files WHERE clip_id = ? AND sha256 = ?", clipID, sha,
		).Scan(&existingID)
		if err != nil {
			return 0, false, fmt.Errorf("insert attachment: %w", err)
		}
		return existingID, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert attachment: %w", wrapBusy(err))
	}
	id, err = result.LastInsertId()
	return id, err == nil, err
}

// GetAttachment returns an attachment with its data, or nil if missing.
func (s *Store) GetAttachment(id int64) (*File, error) {
	var f File
	err := s.db.QueryRow(
		"SELECT id, clip_id, filename, mime, size, sha256, data FROM files WHERE id = ?", id,
	).Scan(&f.ID, &f.ClipID, &f.Filename, &f.Mime, &f.Size, &f.SHA256, &f.Data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %d: %w", id, err)
	}
	return &f, nil
}

// ListAttachments returns attachment metadata for a clip, newest first.
// Data blobs are not loaded; use GetAttachment for the bytes.
func (s *Store) ListAttachments(clipID int64) ([]File, error) {
	rows, err := s.db.Query(
		"SELECT id, clip_id, filename, mime, size, sha256 FROM files WHERE clip_id = ? ORDER BY id DESC",
		clipID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ClipID, &f.Filename, &f.Mime, &f.Size, &f.SHA256); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteAttachment removes a single attachment.
func (s *Store) DeleteAttachment(id int64) error {
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete attachment %d: %w", id, wrapBusy(err))
	}
	return nil
}

// AttachmentCount returns the number of attachments owned by a clip.
func (s *Store) AttachmentCount(clipID int64) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files WHERE clip_id = ?", clipID).Scan(&n); err != nil {
		return 0, fmt.Errorf("attachment count: %w", err)
	}
	return n, nil
}

// Source-URL lookup

// RecordSourceURL remembers which clip a captured URL produced. The clip's
// own source column stays authoritative; this table is a lookup aid, so an
// already-recorded URL is left untouched.
func (s *Store) RecordSourceURL(url string, clipID int64) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO source_urls (url, clip_id, created_at) VALUES (?, ?, ?)",
		url, clipID, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record source url: %w", wrapBusy(err))
	}
	return nil
}

// FindClipBySource returns the clip a URL was captured into, or nil.
func (s *Store) FindClipBySource(url string) (*Clip, error) {
	var clipID int64
	err := s.db.QueryRow("SELECT clip_id FROM source_urls WHERE url = ?", url).Scan(&clipID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find clip by source: %w", err)
	}
	return s.GetClip(clipID)
}

// Tasks

// InsertTask inserts a task and returns its id.
func (s *Store) InsertTask(t *Task) (int64, error) {
	created := t.CreatedAt
	if created == 0 {
		created = time.Now().UTC().Unix()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	result, err := s.db.Exec(
		"INSERT INTO tasks (title, note, status, priority, due_at, clip_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.Title, t.Note, t.Status, t.Priority, t.DueAt, t.ClipID, created,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", wrapBusy(err))
	}
	return result.LastInsertId()
}

// ListTasks returns all tasks ordered by due date ascending, undated last.
func (s *Store) ListTasks() ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, title, note, status, priority, due_at, clip_id, created_at
		 FROM tasks ORDER BY due_at IS NULL, due_at ASC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// QueryDue returns pending tasks due within leadSeconds of now, soonest
// first. Tasks without a due date never appear.
func (s *Store) QueryDue(now, leadSeconds int64) ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, title, note, status, priority, due_at, clip_id, created_at
		 FROM tasks
		 WHERE status = 'pending' AND due_at IS NOT NULL AND due_at <= ?
		 ORDER BY due_at ASC`,
		now+leadSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		var due, clipID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.Title, &t.Note, &t.Status, &t.Priority,
			&due, &clipID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if due.Valid {
			v := due.Int64
			t.DueAt = &v
		}
		if clipID.Valid {
			v := clipID.Int64
			t.ClipID = &v
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkTaskDone sets a task's status to done.
func (s *Store) MarkTaskDone(id int64) error {
	if _, err := s.db.Exec("UPDATE tasks SET status = 'done' WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark task done: %w", wrapBusy(err))
	}
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id int64) error {
	if _, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, wrapBusy(err))
	}
	return nil
}
