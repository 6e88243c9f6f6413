// package repositories provides persistence layer implementations for all model types.
//
// Each repository wraps a *sql.DB and maps rows to the accessor models in
// internal/models, wrapping not-found conditions in shared.ErrNotFound so
// callers never see sql.ErrNoRows.
package repositories

import (
	"encoding/json"
	"fmt"
)

// marshalJSON encodes a value for storage in a TEXT column.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings decodes a JSON array column into a string slice.
// An empty column decodes to nil.
func unmarshalStrings(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to decode json column: %w", err)
	}
	return out, nil
}

// unmarshalParams decodes a JSON object column into a parameter map.
func unmarshalParams(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to decode json column: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
