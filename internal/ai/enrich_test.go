package ai

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// fakeCompleter returns a canned response and records the last prompt.
type fakeCompleter struct {
	response string
	err      error
	messages []Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	f.messages = messages
	return f.response, f.err
}

func TestGenerateTags(t *testing.T) {
	fake := &fakeCompleter{response: `{"tags": ["clipboard", "sqlite"]}`}
	e := NewEnricher(fake, "en", 0.2)

	tags, strategy, err := e.GenerateTags(context.Background(), "some captured text", 5)
	if err != nil {
		t.Fatalf("GenerateTags failed: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"clipboard", "sqlite"}) {
		t.Errorf("tags = %v", tags)
	}
	if strategy != StrategyJSON {
		t.Errorf("strategy = %v, want %v", strategy, StrategyJSON)
	}
	if len(fake.messages) != 2 || fake.messages[0].Role != "system" {
		t.Errorf("unexpected prompt shape: %+v", fake.messages)
	}
}

func TestGenerateTagsUnusableResponse(t *testing.T) {
	fake := &fakeCompleter{response: "I cannot tag this text."}
	e := NewEnricher(fake, "en", 0.2)

	tags, _, err := e.GenerateTags(context.Background(), "text", 5)
	if err != nil {
		t.Fatalf("GenerateTags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want empty", tags)
	}
}

func TestGenerateTagsReportsDegradedStrategy(t *testing.T) {
	fake := &fakeCompleter{response: `Sure! Here you go: {"tags": ["go", "sqlite"]} hope that helps`}
	e := NewEnricher(fake, "en", 0.2)

	tags, strategy, err := e.GenerateTags(context.Background(), "text", 5)
	if err != nil {
		t.Fatalf("GenerateTags failed: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"go", "sqlite"}) {
		t.Errorf("tags = %v", tags)
	}
	if strategy == StrategyJSON {
		t.Error("prose-wrapped JSON should report a fallback strategy")
	}
}

func TestGenerateTagsUpstreamError(t *testing.T) {
	wantErr := errors.New("connection refused")
	fake := &fakeCompleter{err: wantErr}
	e := NewEnricher(fake, "en", 0.2)

	if _, _, err := e.GenerateTags(context.Background(), "text", 5); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestGenerateTitle(t *testing.T) {
	fake := &fakeCompleter{response: `"Notes on SQLite WAL mode"` + "\n"}
	e := NewEnricher(fake, "en", 0.2)

	title, err := e.GenerateTitle(context.Background(), "long text about wal", 80)
	if err != nil {
		t.Fatalf("GenerateTitle failed: %v", err)
	}
	if title != "Notes on SQLite WAL mode" {
		t.Errorf("title = %q", title)
	}
}

func TestChooseCategoriesFiltersToAllowedSet(t *testing.T) {
	fake := &fakeCompleter{response: `{"categories": ["Tech", "Invented", "food"]}`}
	e := NewEnricher(fake, "en", 0.2)

	got, _, err := e.ChooseCategories(context.Background(), "text", []string{"tech", "food", "travel"}, 2)
	if err != nil {
		t.Fatalf("ChooseCategories failed: %v", err)
	}
	// Matching is case-insensitive; out-of-set values are dropped.
	if !reflect.DeepEqual(got, []string{"Tech", "food"}) {
		t.Errorf("categories = %v", got)
	}
}

func TestChooseCategoriesEmptyAllowedSet(t *testing.T) {
	fake := &fakeCompleter{response: `{"categories": ["anything"]}`}
	e := NewEnricher(fake, "en", 0.2)

	got, _, err := e.ChooseCategories(context.Background(), "text", nil, 2)
	if err != nil {
		t.Fatalf("ChooseCategories failed: %v", err)
	}
	if got != nil {
		t.Errorf("categories = %v, want nil without a configured set", got)
	}
	if fake.messages != nil {
		t.Error("no prompt should be sent when the allowed set is empty")
	}
}

func TestSuggestCategoriesSkipsExisting(t *testing.T) {
	fake := &fakeCompleter{response: `{"categories": ["tech", "gardening", "music"]}`}
	e := NewEnricher(fake, "en", 0.2)

	got, err := e.SuggestCategories(context.Background(), "text", []string{"Tech"}, 5)
	if err != nil {
		t.Fatalf("SuggestCategories failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"gardening", "music"}) {
		t.Errorf("categories = %v", got)
	}
}
