package datastore

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Metadata is a key/value bag stored in a jsonb column
type Metadata map[string]interface{}

// Value - implement driver.Valuer for conversion to sql
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan - implement sql.Scanner for conversion from sql
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("metadata must be scanned from a byte slice")
	}
	return json.Unmarshal(b, m)
}

// NullString wraps sql.NullString so nullable text columns round-trip through
// JSON as null rather than an empty string
type NullString struct {
	sql.NullString
}

// MarshalJSON for NullString
func (ns *NullString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.String)
}

// UnmarshalJSON for NullString; a JSON null clears the value
func (ns *NullString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*ns = NullString{}
		return nil
	}
	if err := json.Unmarshal(data, &ns.String); err != nil {
		return err
	}
	ns.Valid = true
	return nil
}
