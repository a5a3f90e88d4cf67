package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobResult holds the metrics and parameters collected from a completed job.
type JobResult struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	JobID      uuid.UUID `gorm:"not null;uniqueIndex;type:VARCHAR(255)"`
	Metrics    JSONMap   `gorm:"type:TEXT"`
	Parameters JSONMap   `gorm:"type:TEXT"`
	CreatedAt  time.Time `gorm:"not null"`
}

// JSONMap is a loosely typed map persisted as JSON text.
type JSONMap map[string]any

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("JSONMap.Scan: expected []byte or string, got %T", value)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
