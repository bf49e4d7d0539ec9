package clipboard

import (
	"reflect"
	"testing"
	"time"
)

func TestObserveSequence(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	for _, txt := range []string{"", "a", "a", "https://x.com", "b"} {
		w.Observe(txt)
	}

	if got := w.Drain(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Drain() = %v, want [a b]", got)
	}
	if src := w.LastSourceURL(); src != "https://x.com" {
		t.Errorf("LastSourceURL() = %q, want https://x.com", src)
	}
}

func TestObserveDedupsConsecutiveOnly(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("a")
	w.Observe("b")
	w.Observe("a")

	if got := w.Drain(); !reflect.DeepEqual(got, []string{"a", "b", "a"}) {
		t.Errorf("Drain() = %v, want [a b a]", got)
	}
}

func TestObserveTrimsWhitespace(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("  padded  ")
	w.Observe("padded")
	w.Observe("   ")

	if got := w.Drain(); !reflect.DeepEqual(got, []string{"padded"}) {
		t.Errorf("Drain() = %v, want [padded]", got)
	}
}

func TestURLReplacesSourceSlot(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("https://first.example.com")
	w.Observe("https://second.example.com/path")

	if src := w.LastSourceURL(); src != "https://second.example.com/path" {
		t.Errorf("LastSourceURL() = %q", src)
	}
	if got := w.Drain(); len(got) != 0 {
		t.Errorf("URLs must not land in pending, got %v", got)
	}
}

func TestDrainClears(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("one")
	if got := w.Drain(); len(got) != 1 {
		t.Fatalf("Drain() = %v", got)
	}
	if got := w.Drain(); got != nil {
		t.Errorf("second Drain() = %v, want nil", got)
	}
}

func TestNotifyCoalesces(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("one")
	w.Observe("two")

	select {
	case <-w.Notify():
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-w.Notify():
		t.Fatal("two captures must coalesce into one signal")
	default:
	}
}

func TestSuspendDiscardsAndResumeRearms(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("before")
	w.SetSuspended(true)

	w.Observe("during")
	if !w.Suspended() {
		t.Fatal("Suspended() = false after SetSuspended(true)")
	}

	w.SetSuspended(false)

	// The value on the clipboard at resume time counts as new, even though
	// it was observed while suspended.
	w.Observe("during")
	// And the usual dedup applies from then on.
	w.Observe("during")

	if got := w.Drain(); !reflect.DeepEqual(got, []string{"before", "during"}) {
		t.Errorf("Drain() = %v, want [before during]", got)
	}
}

func TestResumeRearmsEvenForPreSuspendValue(t *testing.T) {
	w := NewWatcher(nil, time.Second)

	w.Observe("same")
	w.SetSuspended(true)
	w.SetSuspended(false)

	// Same value as before the pause, still re-captured once after resume.
	w.Observe("same")

	if got := w.Drain(); !reflect.DeepEqual(got, []string{"same", "same"}) {
		t.Errorf("Drain() = %v, want [same same]", got)
	}
}

func TestLooksLikeURL(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"http://example.com:8080/path?q=1", true},
		{"https://sub.domain-name.io/a/b", true},
		{"  https://example.com  ", true},
		{"example.com", false},
		{"ftp://example.com", false},
		{"https://example.com and more text", false},
		{"read this: https://example.com", false},
		{"", false},
	}
	for _, c := range cases {
		if got := LooksLikeURL(c.in); got != c.want {
			t.Errorf("LooksLikeURL(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
