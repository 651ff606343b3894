package filter

import (
	"encoding/json"
	"fmt"
)

// Record is a resource in its wire form, keyed by API field names.
// Numbers are float64, as produced by encoding/json.
type Record map[string]any

// ID returns the record's "id" field, or nil.
func (r Record) ID() any {
	return r["id"]
}

// ToRecords converts API models to records through their JSON form, so
// expressions use the same field names as the API.
func ToRecords[T any](items []T) ([]Record, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}
