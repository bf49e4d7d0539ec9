package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndGetClip(t *testing.T) {
	store := newTestStore(t)

	id, err := store.InsertClip(&Clip{RawText: "hello world", Tags: "go,sqlite"})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}
	if id == 0 {
		t.Fatal("clip id should not be 0")
	}

	clip, err := store.GetClip(id)
	if err != nil {
		t.Fatalf("GetClip failed: %v", err)
	}
	if clip == nil {
		t.Fatal("expected clip, got nil")
	}
	if clip.RawText != "hello world" {
		t.Errorf("RawText = %q, want %q", clip.RawText, "hello world")
	}
	if clip.Type != "note" {
		t.Errorf("Type = %q, want note", clip.Type)
	}
	if clip.Summary != "hello world..." {
		t.Errorf("Summary = %q, want %q", clip.Summary, "hello world...")
	}
	if clip.TS == 0 {
		t.Error("TS should default to the current time")
	}
}

func TestGetClipMissing(t *testing.T) {
	store := newTestStore(t)

	clip, err := store.GetClip(12345)
	if err != nil {
		t.Fatalf("GetClip failed: %v", err)
	}
	if clip != nil {
		t.Errorf("expected nil for missing clip, got %+v", clip)
	}
}

func TestSummaryTruncation(t *testing.T) {
	store := newTestStore(t)

	long := strings.Repeat("é", 300)
	id, err := store.InsertClip(&Clip{RawText: long})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	clip, _ := store.GetClip(id)
	want := strings.Repeat("é", 150) + "..."
	if clip.Summary != want {
		t.Errorf("summary is %d runes, want 150 runes plus marker", len([]rune(clip.Summary))-3)
	}

	// Supplied summaries must be ignored.
	id2, err := store.InsertClip(&Clip{RawText: "short", Summary: "bogus"})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}
	clip2, _ := store.GetClip(id2)
	if clip2.Summary != "short..." {
		t.Errorf("Summary = %q, want %q", clip2.Summary, "short...")
	}
}

func TestUpdateClip(t *testing.T) {
	store := newTestStore(t)

	id, err := store.InsertClip(&Clip{RawText: "original"})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	title := "A title"
	newText := "replaced text"
	if err := store.UpdateClip(id, ClipUpdate{Title: &title, RawText: &newText}); err != nil {
		t.Fatalf("UpdateClip failed: %v", err)
	}

	clip, _ := store.GetClip(id)
	if clip.Title != "A title" {
		t.Errorf("Title = %q, want %q", clip.Title, "A title")
	}
	if clip.RawText != "replaced text" {
		t.Errorf("RawText = %q, want %q", clip.RawText, "replaced text")
	}
	if clip.Summary != "replaced text..." {
		t.Errorf("summary not recomputed: %q", clip.Summary)
	}

	// Updating a missing clip is a silent no-op.
	if err := store.UpdateClip(99999, ClipUpdate{Title: &title}); err != nil {
		t.Errorf("UpdateClip on missing id should be a no-op, got %v", err)
	}
}

func TestAppendRawText(t *testing.T) {
	store := newTestStore(t)

	id, err := store.InsertClip(&Clip{RawText: "first"})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	if err := store.AppendRawText(id, "second", "\n---\n"); err != nil {
		t.Fatalf("AppendRawText failed: %v", err)
	}

	clip, _ := store.GetClip(id)
	if clip.RawText != "first\n---\nsecond" {
		t.Errorf("RawText = %q", clip.RawText)
	}
	if !strings.HasPrefix(clip.Summary, "first") {
		t.Errorf("summary not recomputed: %q", clip.Summary)
	}

	// Appending to an empty clip must not prepend the separator.
	id2, _ := store.InsertClip(&Clip{})
	if err := store.AppendRawText(id2, "only", "\n---\n"); err != nil {
		t.Fatalf("AppendRawText failed: %v", err)
	}
	clip2, _ := store.GetClip(id2)
	if clip2.RawText != "only" {
		t.Errorf("RawText = %q, want %q", clip2.RawText, "only")
	}

	// Appending to a deleted clip is a silent no-op.
	if err := store.AppendRawText(99999, "ghost", "\n---\n"); err != nil {
		t.Errorf("AppendRawText on missing id should be a no-op, got %v", err)
	}
}

func TestListClipsFilters(t *testing.T) {
	store := newTestStore(t)

	store.InsertClip(&Clip{TS: 100, RawText: "golang concurrency notes", Tags: "go"})
	store.InsertClip(&Clip{TS: 200, RawText: "recipe for bread", Tags: "cooking", Categories: "food"})
	store.InsertClip(&Clip{TS: 300, RawText: "fetched page", Type: "web"})

	all, err := store.ListClips(ListFilter{})
	if err != nil {
		t.Fatalf("ListClips failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(all))
	}
	if all[0].TS != 300 || all[2].TS != 100 {
		t.Error("clips not ordered newest first")
	}

	byText, _ := store.ListClips(ListFilter{Text: "bread"})
	if len(byText) != 1 || byText[0].Tags != "cooking" {
		t.Errorf("text filter returned %d clips", len(byText))
	}

	byTag, _ := store.ListClips(ListFilter{Tag: "go"})
	if len(byTag) != 1 {
		t.Errorf("tag filter returned %d clips", len(byTag))
	}

	byType, _ := store.ListClips(ListFilter{Type: "web"})
	if len(byType) != 1 {
		t.Errorf("type filter returned %d clips", len(byType))
	}

	limited, _ := store.ListClips(ListFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit not applied, got %d clips", len(limited))
	}
}

func TestListUntagged(t *testing.T) {
	store := newTestStore(t)

	store.InsertClip(&Clip{TS: 100, RawText: "no tags yet"})
	store.InsertClip(&Clip{TS: 200, RawText: "tagged", Tags: "done"})

	untagged, err := store.ListUntagged(10)
	if err != nil {
		t.Fatalf("ListUntagged failed: %v", err)
	}
	if len(untagged) != 1 || untagged[0].RawText != "no tags yet" {
		t.Errorf("unexpected untagged set: %+v", untagged)
	}
}

func TestTagCounts(t *testing.T) {
	store := newTestStore(t)

	store.InsertClip(&Clip{RawText: "a", Tags: "go,sqlite"})
	store.InsertClip(&Clip{RawText: "b", Tags: "go"})
	store.InsertClip(&Clip{RawText: "c"})

	counts, err := store.TagCounts()
	if err != nil {
		t.Fatalf("TagCounts failed: %v", err)
	}
	if counts["go"] != 2 || counts["sqlite"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestInsertAttachmentIdempotent(t *testing.T) {
	store := newTestStore(t)

	clipID, err := store.InsertClip(&Clip{RawText: "owner"})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	data := []byte("attachment payload")
	first, created, err := store.InsertAttachment(clipID, "a.txt", "text/plain", data)
	if err != nil {
		t.Fatalf("InsertAttachment failed: %v", err)
	}
	if !created {
		t.Error("first insert should report created")
	}

	// Same content again, even under a different name, returns the same id.
	second, created, err := store.InsertAttachment(clipID, "renamed.txt", "text/plain", data)
	if err != nil {
		t.Fatalf("second InsertAttachment failed: %v", err)
	}
	if first != second {
		t.Errorf("duplicate insert created id %d, want %d", second, first)
	}
	if created {
		t.Error("duplicate insert should not report created")
	}

	n, _ := store.AttachmentCount(clipID)
	if n != 1 {
		t.Errorf("attachment count = %d, want 1", n)
	}

	// The same content on another clip is a distinct attachment.
	otherClip, _ := store.InsertClip(&Clip{RawText: "other owner"})
	third, _, err := store.InsertAttachment(otherClip, "a.txt", "text/plain", data)
	if err != nil {
		t.Fatalf("InsertAttachment on second clip failed: %v", err)
	}
	if third == first {
		t.Error("attachments on different clips must not share an id")
	}
}

func TestInsertAttachmentConcurrent(t *testing.T) {
	store := newTestStore(t)

	clipID, err := store.InsertClip(&Clip{RawText: "owner"})
	if err != nil {
		t.Fatalf("InsertClip failed: %v", err)
	}

	data := []byte("contended payload")
	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var createdCount int32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, created, err := store.InsertAttachment(clipID, "race.txt", "text/plain", data)
			ids[i], errs[i] = id, err
			if created {
				atomic.AddInt32(&createdCount, 1)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d got id %d, want %d", i, ids[i], ids[0])
		}
	}
	if createdCount != 1 {
		t.Errorf("created reported %d times, want 1", createdCount)
	}
	n, _ := store.AttachmentCount(clipID)
	if n != 1 {
		t.Errorf("attachment count = %d, want 1", n)
	}
}

func TestInsertAttachmentMissingOwner(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.InsertAttachment(42, "a.txt", "text/plain", []byte("x"))
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Errorf("expected ErrOwnerNotFound, got %v", err)
	}
}

func TestDeleteClipCascades(t *testing.T) {
	store := newTestStore(t)

	clipID, _ := store.InsertClip(&Clip{RawText: "doomed"})
	attID, _, err := store.InsertAttachment(clipID, "a.txt", "text/plain", []byte("bytes"))
	if err != nil {
		t.Fatalf("InsertAttachment failed: %v", err)
	}
	if err := store.RecordSourceURL("https://example.com/x", clipID); err != nil {
		t.Fatalf("RecordSourceURL failed: %v", err)
	}

	if err := store.DeleteClip(clipID); err != nil {
		t.Fatalf("DeleteClip failed: %v", err)
	}

	att, err := store.GetAttachment(attID)
	if err != nil {
		t.Fatalf("GetAttachment failed: %v", err)
	}
	if att != nil {
		t.Error("attachment should cascade on clip delete")
	}

	found, err := store.FindClipBySource("https://example.com/x")
	if err != nil {
		t.Fatalf("FindClipBySource failed: %v", err)
	}
	if found != nil {
		t.Error("source url entry should cascade on clip delete")
	}
}

func TestSourceURLLookup(t *testing.T) {
	store := newTestStore(t)

	clipID, _ := store.InsertClip(&Clip{RawText: "page", Type: "web"})
	if err := store.RecordSourceURL("https://example.com/page", clipID); err != nil {
		t.Fatalf("RecordSourceURL failed: %v", err)
	}

	// Re-recording the same URL keeps the first mapping.
	otherID, _ := store.InsertClip(&Clip{RawText: "other"})
	if err := store.RecordSourceURL("https://example.com/page", otherID); err != nil {
		t.Fatalf("second RecordSourceURL failed: %v", err)
	}

	clip, err := store.FindClipBySource("https://example.com/page")
	if err != nil {
		t.Fatalf("FindClipBySource failed: %v", err)
	}
	if clip == nil || clip.ID != clipID {
		t.Errorf("FindClipBySource returned %+v, want clip %d", clip, clipID)
	}
}

func TestQueryDue(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC().Unix()
	soon := now + 60
	later := now + 3600
	past := now - 60

	mk := func(title string, due *int64, status string) int64 {
		id, err := store.InsertTask(&Task{Title: title, DueAt: due, Status: status})
		if err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
		return id
	}

	mk("overdue", &past, "pending")
	mk("due soon", &soon, "pending")
	mk("far out", &later, "pending")
	mk("finished", &past, "done")
	mk("no due date", nil, "pending")

	due, err := store.QueryDue(now, 300)
	if err != nil {
		t.Fatalf("QueryDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due tasks, got %d", len(due))
	}
	if due[0].Title != "overdue" || due[1].Title != "due soon" {
		t.Errorf("due tasks out of order: %q, %q", due[0].Title, due[1].Title)
	}

	if err := store.MarkTaskDone(due[0].ID); err != nil {
		t.Fatalf("MarkTaskDone failed: %v", err)
	}
	due, _ = store.QueryDue(now, 300)
	if len(due) != 1 {
		t.Errorf("expected 1 due task after completion, got %d", len(due))
	}
}

func TestListTasksOrder(t *testing.T) {
	store := newTestStore(t)

	t1 := int64(2000)
	t2 := int64(1000)
	store.InsertTask(&Task{Title: "later", DueAt: &t1})
	store.InsertTask(&Task{Title: "sooner", DueAt: &t2})
	store.InsertTask(&Task{Title: "undated"})

	tasks, err := store.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "sooner" || tasks[1].Title != "later" || tasks[2].Title != "undated" {
		t.Errorf("order = %q, %q, %q", tasks[0].Title, tasks[1].Title, tasks[2].Title)
	}
	if tasks[0].Priority != "medium" {
		t.Errorf("Priority default = %q, want medium", tasks[0].Priority)
	}
}

func TestSetSummaryLength(t *testing.T) {
	store := newTestStore(t)
	store.SetSummaryLength(5)

	id, _ := store.InsertClip(&Clip{RawText: "abcdefghij"})
	clip, _ := store.GetClip(id)
	if clip.Summary != "abcde..." {
		t.Errorf("Summary = %q, want %q", clip.Summary, "abcde...")
	}
}
