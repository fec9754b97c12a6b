package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONMap is a schemaless JSON object stored as a TEXT column.
// It is used for audit snapshots and metadata, where the set of keys
// depends on the entity that was changed.
type JSONMap map[string]any

// Scan reads the value from the database.
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	if len(data) == 0 {
		*j = nil
		return nil
	}

	return json.Unmarshal(data, j)
}

// Value returns the value for the SQL driver to write to the database.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}

	data, err := json.Marshal(j)
	if err != nil {
		return nil, errors.Join(errors.New("cannot serialize JSONMap"), err)
	}

	return string(data), nil
}

// GormDataType defines the data type used by gorm for the type.
func (JSONMap) GormDataType() string {
	return "text"
}
