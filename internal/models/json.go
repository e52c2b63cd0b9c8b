package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue serializes a list column to JSON for storage.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// jsonScan deserializes a JSON list column from the database.
// Accepts []byte (postgres) and string (sqlite); NULL leaves dest untouched.
func jsonScan(dest interface{}, src interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}
