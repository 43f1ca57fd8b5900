// Package types holds value types shared by models and API payloads. The
// JSON backed ones implement driver.Valuer and sql.Scanner for jsonb columns.
package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// columnBytes accepts what postgres (string) and sqlite ([]byte) hand back
// for a jsonb column.
func columnBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("types: cannot scan %T into a json column", value)
}

// jsonValue stores v as text so both drivers accept it.
func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// scanJSON resets dst to its zero value on NULL.
func scanJSON[T any](value any, dst *T) error {
	var zero T
	*dst = zero
	if value == nil {
		return nil
	}
	raw, err := columnBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// RawJSON keeps a jsonb snapshot byte for byte.
type RawJSON json.RawMessage

// MustRawJSON never fails: bytes that are not JSON are stored as a JSON
// string and values that cannot be encoded become {"marshal_error": ...}.
func MustRawJSON(v any) RawJSON {
	switch raw := v.(type) {
	case nil:
		return nil
	case []byte:
		if json.Valid(raw) {
			return RawJSON(bytes.Clone(raw))
		}
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		encoded, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return encoded
}

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return string(r), nil
}

func (r *RawJSON) Scan(value any) error {
	*r = nil
	if value == nil {
		return nil
	}
	raw, err := columnBytes(value)
	if err != nil {
		return err
	}
	*r = bytes.Clone(raw)
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = bytes.Clone(data)
	return nil
}
