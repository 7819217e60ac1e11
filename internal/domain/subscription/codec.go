package subscription

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a record into the persisted document shape.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil subscription record")
	}
	out := r.Clone()
	if out.Payments == nil {
		out.Payments = []Payment{}
	}
	return json.Marshal(out)
}

// Decode parses a persisted document. Any error means the stored value is unusable.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode subscription record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Payments == nil {
		r.Payments = []Payment{}
	}
	return &r, nil
}
