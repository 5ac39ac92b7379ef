package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ExtractJSON strips a markdown code fence from a completion, if present.
func ExtractJSON(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+7:]
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}

// DecodeObject parses a JSON object out of possibly-fenced oracle text into
// target. A strict parse is attempted first; on failure the text is run
// through the repair pass (truncated braces, single quotes, trailing
// commas) before giving up.
func DecodeObject(content string, target any) error {
	body := ExtractJSON(content)
	if body == "" {
		return fmt.Errorf("empty oracle response")
	}

	if err := json.Unmarshal([]byte(body), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.RepairJSON(body)
	if err != nil {
		return fmt.Errorf("failed to repair oracle JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("failed to parse oracle JSON: %w", err)
	}
	return nil
}
