package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// layoutSchemaJSON constrains the structured layout output we accept
// from vision models. Validated locally before the result is trusted;
// a response that fails validation is an extraction failure, not a
// silently mangled page.
const layoutSchemaJSON = `{
  "type": "object",
  "required": ["elements"],
  "properties": {
    "elements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["category", "text"],
        "properties": {
          "category": {
            "type": "string",
            "enum": ["NarrativeText", "ListItem", "Title", "Table", "Image"]
          },
          "text": {"type": "string"},
          "bbox": {
            "type": "array",
            "items": {"type": "number"},
            "minItems": 4,
            "maxItems": 4
          }
        }
      }
    },
    "tables": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "bbox": {
            "type": "array",
            "items": {"type": "number"},
            "minItems": 4,
            "maxItems": 4
          },
          "html": {"type": "string"}
        }
      }
    }
  }
}`

var layoutSchema = jsonschema.MustCompileString("layout.json", layoutSchemaJSON)

// parseLayoutResponse extracts and validates the JSON layout payload
// from a model response, tolerating markdown code fences.
func parseLayoutResponse(content string) (*LayoutResult, error) {
	raw := stripCodeFences(content)

	var generic any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("layout response is not valid JSON: %w", err)
	}

	if err := layoutSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("layout response failed schema validation: %w", err)
	}

	var result LayoutResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode layout response: %w", err)
	}
	return &result, nil
}

// stripCodeFences removes a surrounding ```json ... ``` fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
