package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseOutput parses a model server response. Accepted shapes:
//
//	[1.5e9]                  single output
//	[[1.5e9, 420]]           one row, two outputs
//	{"prediction": <either>, "confidence": 0.8}
//
// Markdown code fences around the JSON are tolerated.
func ParseOutput(text string) (Output, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Output{}, errors.New("empty model response")
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Output{}, fmt.Errorf("parsing model response: %w", err)
	}

	var out Output
	if obj, ok := raw.(map[string]any); ok {
		if c, ok := obj["confidence"].(float64); ok {
			out.Confidence = &c
		}
		pred, ok := obj["prediction"]
		if !ok {
			pred = obj["predictions"]
		}
		raw = pred
	}

	values, err := flattenRow(raw)
	if err != nil {
		return Output{}, err
	}
	out.Values = values
	return out, nil
}

// flattenRow takes the first row of a 1-D or 2-D numeric array.
func flattenRow(v any) ([]float64, error) {
	switch t := v.(type) {
	case float64:
		return []float64{t}, nil
	case []any:
		if len(t) == 0 {
			return nil, nil
		}
		if row, ok := t[0].([]any); ok {
			return toFloats(row)
		}
		return toFloats(t)
	default:
		return nil, fmt.Errorf("unexpected prediction shape %T", v)
	}
}

func toFloats(items []any) ([]float64, error) {
	out := make([]float64, 0, len(items))
	for _, it := range items {
		f, ok := it.(float64)
		if !ok {
			return nil, fmt.Errorf("non-numeric prediction value %v", it)
		}
		out = append(out, f)
	}
	return out, nil
}
