package model

import (
	"time"
)

type Secret struct {
	Name           string `gorm:"primaryKey;column:name;type:VARCHAR(255);"`
	EncryptedValue string `gorm:"not null;type:TEXT"`
	Description    string `gorm:"not null;default:''"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// String never includes the encrypted value.
func (s Secret) String() string {
	return s.Name
}

type SecretList []Secret
