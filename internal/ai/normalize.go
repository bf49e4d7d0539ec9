package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy identifies which parsing stage produced a result. Anything past
// StrategyJSON means the model ignored the requested format and the response
// was salvaged; worth logging, not an error.
type Strategy int

const (
	StrategyNone     Strategy = iota // nothing usable in the response
	StrategyJSON                     // whole response was valid JSON
	StrategyFragment                 // JSON object found inside prose
	StrategyScrape                   // quoted strings scraped from a bracket list
)

func (s Strategy) String() string {
	switch s {
	case StrategyJSON:
		return "json"
	case StrategyFragment:
		return "fragment"
	case StrategyScrape:
		return "scrape"
	default:
		return "none"
	}
}

// ExtractList pulls a list of strings out of a model response that was asked
// to reply with {"<field>": [...]}. Strategies run in order, first success
// wins; total failure yields an empty list, never an error. The caller
// treats "nothing usable" as a normal outcome.
func ExtractList(raw, field string, max int) ([]string, Strategy) {
	if items, ok := parseListObject(raw, field, max); ok {
		return items, StrategyJSON
	}

	// The response is often valid JSON wrapped in prose. Find the smallest
	// brace-delimited fragment naming the field and parse just that.
	fragmentRe := regexp.MustCompile(`\{[^{}]*"` + regexp.QuoteMeta(field) + `"[^{}]*\}`)
	if frag := fragmentRe.FindString(raw); frag != "" {
		if items, ok := parseListObject(frag, field, max); ok {
			return items, StrategyFragment
		}
	}

	// Last resort: take every double-quoted substring inside the field's
	// bracket list, ignoring structural validity entirely.
	listRe := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*\[([^\]]*)\]`)
	if m := listRe.FindStringSubmatch(raw); m != nil {
		quoted := regexp.MustCompile(`"([^"]+)"`).FindAllStringSubmatch(m[1], -1)
		var items []string
		for _, q := range quoted {
			if v := strings.TrimSpace(q[1]); v != "" {
				items = append(items, v)
			}
		}
		if len(items) > 0 {
			return clampList(items, max), StrategyScrape
		}
	}

	return nil, StrategyNone
}

// parseListObject unmarshals raw as a JSON object and extracts field as a
// list of trimmed, non-empty strings. Non-string entries are dropped.
func parseListObject(raw, field string, max int) ([]string, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}
	list, ok := parsed[field].([]any)
	if !ok {
		return nil, false
	}
	var items []string
	for _, entry := range list {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	if len(items) == 0 {
		return nil, false
	}
	return clampList(items, max), true
}

func clampList(items []string, max int) []string {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

// NormalizeTitle trims whitespace and surrounding quotes, then hard-truncates
// to maxLen runes. Mid-word cuts are accepted.
func NormalizeTitle(raw string, maxLen int) string {
	title := strings.Trim(strings.TrimSpace(raw), `"'`)
	runes := []rune(title)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return title
}
