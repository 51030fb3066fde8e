package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/formguard/internal/ir"
)

// marshalData converts a draft snapshot to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalData(data ir.IRObject) (string, error) {
	if data == nil {
		data = ir.IRObject{}
	}
	b, err := ir.MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(b), nil
}

// unmarshalData parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which handles large integers via json.Number
// to avoid float64 precision loss for values > 2^53.
func unmarshalData(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return obj, nil
}

// marshalForms converts a list of form IDs to a canonical JSON array.
func marshalForms(forms []string) (string, error) {
	arr := make(ir.IRArray, 0, len(forms))
	for _, f := range forms {
		arr = append(arr, ir.IRString(f))
	}
	b, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal forms: %w", err)
	}
	return string(b), nil
}

// unmarshalForms parses a JSON array of form IDs. Returns an empty slice
// (not nil) for an empty array.
func unmarshalForms(data string) ([]string, error) {
	forms := []string{}
	if data == "" {
		return forms, nil
	}
	if err := json.Unmarshal([]byte(data), &forms); err != nil {
		return nil, fmt.Errorf("unmarshal forms: %w", err)
	}
	return forms, nil
}
