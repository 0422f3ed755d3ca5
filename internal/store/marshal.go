package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// marshalInputs converts an event's inputs to canonical JSON TEXT for
// storage: an array of {"input": i, "value": v} ordered by input index.
// Value kinds survive the round trip through ir.MarshalCanonical.
func marshalInputs(inputs map[int]ir.Value) (string, error) {
	keys := make([]int, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	entries := make([]any, len(keys))
	for i, k := range keys {
		entries[i] = ir.Object{"input": k, "value": inputs[k]}
	}
	data, err := ir.MarshalCanonical(entries)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	return string(data), nil
}

// unmarshalInputs parses TEXT written by marshalInputs.
func unmarshalInputs(data string) (map[int]ir.Value, error) {
	var entries []struct {
		Input int             `json:"input"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}

	inputs := make(map[int]ir.Value, len(entries))
	for _, e := range entries {
		v, err := ir.UnmarshalValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("unmarshal inputs: input %d: %w", e.Input, err)
		}
		inputs[e.Input] = v
	}
	return inputs, nil
}
