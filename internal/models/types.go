package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is an open string-keyed JSON object stored in a jsonb column.
// Payloads from the worker engine are schemaless; business logic only ever
// reads depth-one fields, so no fixed structure is imposed.
type JSONMap map[string]any

// Value implements driver.Valuer for database storage.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// StringList is a JSON-encoded string array column.
type StringList []string

// Value implements driver.Valuer for database storage.
func (a StringList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for database retrieval.
func (a *StringList) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether the list contains the given value.
func (a StringList) Contains(val string) bool {
	for _, item := range a {
		if item == val {
			return true
		}
	}
	return false
}
