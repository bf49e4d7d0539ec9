package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Enricher produces tags, titles and categories for captured text.
type Enricher struct {
	completer   Completer
	language    string
	temperature float64
}

// NewEnricher wraps a completer with the language and temperature used for
// every enrichment prompt.
func NewEnricher(completer Completer, language string, temperature float64) *Enricher {
	if language == "" {
		language = "en"
	}
	return &Enricher{completer: completer, language: language, temperature: temperature}
}

// GenerateTags asks the model for count concise tags describing text.
// An unusable response yields an empty list, not an error. The returned
// strategy tells the caller how hard the response was to parse.
func (e *Enricher) GenerateTags(ctx context.Context, text string, count int) ([]string, Strategy, error) {
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf(
			`You extract %d concise tags in %s. Respond ONLY with JSON: {"tags":[]}`, count, e.language)},
		{Role: "user", Content: fmt.Sprintf("Text:\n%s\n\nJSON:", truncate(text, 4000))},
	}
	out, err := e.completer.Complete(ctx, messages, e.temperature)
	if err != nil {
		return nil, StrategyJSON, err
	}
	tags, strategy := ExtractList(out, "tags", count)
	if strategy > StrategyJSON {
		log.Printf("ai: tags response parse degraded (%s)", strategy)
	}
	return tags, strategy, nil
}

// GenerateTitle asks the model for a short title, at most maxLen characters.
func (e *Enricher) GenerateTitle(ctx context.Context, text string, maxLen int) (string, error) {
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf(
			"You are an assistant that proposes concise titles in %s.", e.language)},
		{Role: "user", Content: fmt.Sprintf(
			"Write a short title (at most %d characters) without quotes for:\n\n%s", maxLen, truncate(text, 4000))},
	}
	out, err := e.completer.Complete(ctx, messages, e.temperature)
	if err != nil {
		return "", err
	}
	return NormalizeTitle(out, maxLen), nil
}

// ChooseCategories asks the model to pick up to max categories from the
// user-defined closed set. Anything outside the set is discarded.
func (e *Enricher) ChooseCategories(ctx context.Context, text string, allowed []string, max int) ([]string, Strategy, error) {
	if len(allowed) == 0 {
		return nil, StrategyJSON, nil
	}
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf(
			`You pick 0 to %d categories from the provided list, in %s. Respond ONLY with JSON: {"categories":[]}`, max, e.language)},
		{Role: "user", Content: fmt.Sprintf(
			"List: [%s]\n\nText:\n%s\n\nJSON:", strings.Join(allowed, ", "), truncate(text, 4000))},
	}
	out, err := e.completer.Complete(ctx, messages, e.temperature)
	if err != nil {
		return nil, StrategyJSON, err
	}
	picked, strategy := ExtractList(out, "categories", 0)
	if strategy > StrategyJSON {
		log.Printf("ai: categories response parse degraded (%s)", strategy)
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[strings.ToLower(c)] = true
	}
	var chosen []string
	for _, c := range picked {
		if allowedSet[strings.ToLower(c)] {
			chosen = append(chosen, c)
		}
	}
	return clampList(chosen, max), strategy, nil
}

// SuggestCategories asks for up to max new categories not already in
// existing.
func (e *Enricher) SuggestCategories(ctx context.Context, text string, existing []string, max int) ([]string, error) {
	existingStr := "none"
	if len(existing) > 0 {
		existingStr = strings.Join(existing, ", ")
	}
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf(
			`You suggest %d new categories in %s to classify this text. Avoid these existing categories: [%s]. Respond ONLY with JSON: {"categories":[]}`,
			max, e.language, existingStr)},
		{Role: "user", Content: fmt.Sprintf("Text:\n%s\n\nJSON:", truncate(text, 4000))},
	}
	out, err := e.completer.Complete(ctx, messages, e.temperature)
	if err != nil {
		return nil, err
	}
	picked, _ := ExtractList(out, "categories", 0)

	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[strings.ToLower(c)] = true
	}
	var fresh []string
	for _, c := range picked {
		if !seen[strings.ToLower(c)] {
			fresh = append(fresh, c)
		}
	}
	return clampList(fresh, max), nil
}
