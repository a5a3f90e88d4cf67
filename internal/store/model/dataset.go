package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DatasetFormatJob is the only dataset format accepted on upload.
const DatasetFormatJob = "job"

type Dataset struct {
	ID          uuid.UUID  `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	Filename    string     `gorm:"not null;type:VARCHAR(255)"`
	Format      string     `gorm:"not null;type:VARCHAR(50)"`
	Size        int64      `gorm:"not null"`
	GroundTruth bool       `gorm:"not null;default:false"`
	RunID       *uuid.UUID `gorm:"type:VARCHAR(255);index:datasets_run_id_idx"`
	Generated   bool       `gorm:"not null;default:false"`
	GeneratedBy *string
	CreatedAt   time.Time `gorm:"not null"`
}

type DatasetList []Dataset

func (d Dataset) String() string {
	val, _ := json.Marshal(d)
	return string(val)
}
