package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// RepairStats tracks what it took to turn a raw response into valid JSON.
type RepairStats struct {
	OriginalBytes int  `json:"original_bytes"`
	RepairedBytes int  `json:"repaired_bytes"`
	WasRepaired   bool `json:"was_repaired"`
}

// ProcessResponse extracts JSON from a raw model response and unmarshals it
// into target, repairing malformed payloads where possible. The raw text may
// be wrapped in Markdown code fences or surrounded by explanatory prose.
func ProcessResponse(raw string, target interface{}) (RepairStats, error) {
	stats := RepairStats{OriginalBytes: len(raw)}

	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return stats, fmt.Errorf("no JSON found in response")
	}

	if json.Unmarshal([]byte(jsonStr), target) == nil {
		stats.RepairedBytes = len(jsonStr)
		return stats, nil
	}

	// Malformed: let the repair library have a go before giving up.
	repaired, err := jsonrepair.JSONRepair(jsonStr)
	if err != nil {
		return stats, fmt.Errorf("JSON repair failed: %w", err)
	}
	stats.WasRepaired = true
	stats.RepairedBytes = len(repaired)

	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return stats, fmt.Errorf("JSON parsing failed after repair: %w", err)
	}

	log.Debug().
		Int("original_bytes", stats.OriginalBytes).
		Int("repaired_bytes", stats.RepairedBytes).
		Msg("llm response repaired")

	return stats, nil
}

// ExtractJSON pulls JSON content out of a mixed text response: code fences
// first, then the first balanced object or array.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		lines := strings.Split(raw, "\n")
		var jsonLines []string
		inCodeBlock := false

		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}

		if len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	startIdx := strings.IndexAny(raw, "{[")
	if startIdx == -1 {
		return ""
	}

	openChar := raw[startIdx]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	depth := 0
	for i := startIdx; i < len(raw); i++ {
		switch raw[i] {
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return raw[startIdx : i+1]
			}
		}
	}

	// Truncated response: return what we have and let repair complete it.
	return raw[startIdx:]
}
