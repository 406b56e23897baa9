package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessResponse_PlainJSON(t *testing.T) {
	var out map[string]interface{}
	stats, err := ProcessResponse(`{"documentType": "nda", "confidence": 0.92}`, &out)

	require.NoError(t, err)
	assert.False(t, stats.WasRepaired)
	assert.Equal(t, "nda", out["documentType"])
}

func TestProcessResponse_CodeFenced(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"valid\": true}\n```\nLet me know if you need more."

	var out map[string]interface{}
	_, err := ProcessResponse(raw, &out)

	require.NoError(t, err)
	assert.Equal(t, true, out["valid"])
}

func TestProcessResponse_RepairsTrailingComma(t *testing.T) {
	var out map[string]interface{}
	stats, err := ProcessResponse(`{"a": 1, "b": 2,}`, &out)

	require.NoError(t, err)
	assert.True(t, stats.WasRepaired)
	assert.Equal(t, 2.0, out["b"])
}

func TestProcessResponse_RepairsTruncatedObject(t *testing.T) {
	var out map[string]interface{}
	_, err := ProcessResponse(`{"conflicts": [], "conflictCount": 0`, &out)

	require.NoError(t, err)
	assert.Equal(t, 0.0, out["conflictCount"])
}

func TestProcessResponse_NoJSON(t *testing.T) {
	var out map[string]interface{}
	_, err := ProcessResponse("I could not produce any structured output, sorry.", &out)
	assert.Error(t, err)
}

func TestExtractJSON_ProseWrappedArray(t *testing.T) {
	raw := `The placeholders are: [{"fieldName": "company_name"}] as requested.`
	assert.Equal(t, `[{"fieldName": "company_name"}]`, ExtractJSON(raw))
}

func TestExtractJSON_Empty(t *testing.T) {
	assert.Equal(t, "", ExtractJSON("no structure here"))
}
