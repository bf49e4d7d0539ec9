package ai

import (
	"reflect"
	"testing"
)

func TestExtractListCleanJSON(t *testing.T) {
	raw := `{"tags": ["go", "sqlite", "clipboard"]}`
	items, strategy := ExtractList(raw, "tags", 5)
	if strategy != StrategyJSON {
		t.Errorf("strategy = %v, want json", strategy)
	}
	if !reflect.DeepEqual(items, []string{"go", "sqlite", "clipboard"}) {
		t.Errorf("items = %v", items)
	}
}

func TestExtractListFragmentInProse(t *testing.T) {
	raw := `Sure! Here are the tags you asked for: {"tags": ["one", "two"]} Hope that helps.`
	items, strategy := ExtractList(raw, "tags", 5)
	if strategy != StrategyFragment {
		t.Errorf("strategy = %v, want fragment", strategy)
	}
	if !reflect.DeepEqual(items, []string{"one", "two"}) {
		t.Errorf("items = %v", items)
	}
}

func TestExtractListScrape(t *testing.T) {
	// Trailing comma makes both JSON passes fail.
	raw := `Result: {"tags": ["alpha", "beta",]} done`
	items, strategy := ExtractList(raw, "tags", 5)
	if strategy != StrategyScrape {
		t.Errorf("strategy = %v, want scrape", strategy)
	}
	if !reflect.DeepEqual(items, []string{"alpha", "beta"}) {
		t.Errorf("items = %v", items)
	}
}

func TestExtractListNothingUsable(t *testing.T) {
	items, strategy := ExtractList("I could not determine any tags for this.", "tags", 5)
	if strategy != StrategyNone {
		t.Errorf("strategy = %v, want none", strategy)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want empty", items)
	}
}

func TestExtractListTruncatesToMax(t *testing.T) {
	raw := `{"tags": ["a", "b", "c", "d", "e", "f"]}`
	items, _ := ExtractList(raw, "tags", 3)
	if !reflect.DeepEqual(items, []string{"a", "b", "c"}) {
		t.Errorf("items = %v, want first 3", items)
	}
}

func TestExtractListDropsBlankAndNonString(t *testing.T) {
	raw := `{"tags": ["  keep  ", "", "   ", 42, "also"]}`
	items, strategy := ExtractList(raw, "tags", 0)
	if strategy != StrategyJSON {
		t.Errorf("strategy = %v, want json", strategy)
	}
	if !reflect.DeepEqual(items, []string{"keep", "also"}) {
		t.Errorf("items = %v", items)
	}
}

func TestExtractListWrongField(t *testing.T) {
	raw := `{"categories": ["x"]}`
	items, strategy := ExtractList(raw, "tags", 5)
	if strategy != StrategyNone || items != nil {
		t.Errorf("got (%v, %v), want (nil, none)", items, strategy)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{`  "A Quoted Title"  `, 80, "A Quoted Title"},
		{"'single quotes'", 80, "single quotes"},
		{"plain title", 80, "plain title"},
		{"abcdefghij", 4, "abcd"},
		{"", 80, ""},
	}
	for _, c := range cases {
		if got := NormalizeTitle(c.in, c.maxLen); got != c.want {
			t.Errorf("NormalizeTitle(%q, %d) = %q, want %q", c.in, c.maxLen, got, c.want)
		}
	}
}

func TestNormalizeTitleRuneTruncation(t *testing.T) {
	in := "héllö wörld"
	got := NormalizeTitle(in, 5)
	if got != "héllö" {
		t.Errorf("NormalizeTitle = %q, want %q", got, "héllö")
	}
}
