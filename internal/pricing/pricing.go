// Package pricing computes task cost from token usage. The rate table is
// injected configuration, never consulted as a package global.
package pricing

import "strings"

// Rate holds per-1k-token USD prices for one model.
type Rate struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Table maps a model name to its rate.
type Table map[string]Rate

// DefaultTable returns compiled-in rates for the models the skill catalog
// ships with. Config may override or extend it.
func DefaultTable() Table {
	return Table{
		"gemini-1.5-flash": {PromptPer1K: 0.000075, CompletionPer1K: 0.0003},
		"gemini-1.5-pro":   {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
		"gpt-4o-mini":      {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
		"gpt-4o":           {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
	}
}

// Cost returns the USD cost of a call. Models with no rate cost zero.
func (t Table) Cost(model string, promptTokens, completionTokens int) float64 {
	rate, ok := t[model]
	if !ok {
		// Tolerate versioned model names like "gpt-4o-2024-08-06".
		for name, r := range t {
			if strings.HasPrefix(model, name) {
				rate, ok = r, true
				break
			}
		}
	}
	if !ok {
		return 0
	}

	return float64(promptTokens)/1000*rate.PromptPer1K +
		float64(completionTokens)/1000*rate.CompletionPer1K
}

// Merge overlays other on top of t, returning a new table.
func (t Table) Merge(other Table) Table {
	merged := make(Table, len(t)+len(other))
	for name, rate := range t {
		merged[name] = rate
	}
	for name, rate := range other {
		merged[name] = rate
	}
	return merged
}
