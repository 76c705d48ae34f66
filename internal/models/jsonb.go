package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB is a free-form object stored in a postgres jsonb column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*j = JSONB{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("jsonb: unsupported scan type")
	}
	out := JSONB{}
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*j = out
	return nil
}
