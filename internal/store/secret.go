package store

import (
	"context"
	"errors"

	"github.com/mozilla-ai/lumigator/internal/store/model"
	"gorm.io/gorm"
)

type Secret interface {
	List(ctx context.Context) (model.SecretList, error)
	Get(ctx context.Context, name string) (*model.Secret, error)
	// Save inserts the secret or updates the existing row with the same name.
	// created reports whether a new row was inserted.
	Save(ctx context.Context, secret model.Secret) (created bool, err error)
	Delete(ctx context.Context, name string) error
}

type SecretStore struct {
	db *gorm.DB
}

var _ Secret = (*SecretStore)(nil)

func NewSecretStore(db *gorm.DB) Secret {
	return &SecretStore{db: db}
}

func (s *SecretStore) List(ctx context.Context) (model.SecretList, error) {
	var secrets model.SecretList
	if err := getDB(ctx, s.db).Order("name").Find(&secrets).Error; err != nil {
		return nil, err
	}
	return secrets, nil
}

func (s *SecretStore) Get(ctx context.Context, name string) (*model.Secret, error) {
	var secret model.Secret
	if err := getDB(ctx, s.db).First(&secret, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &secret, nil
}

func (s *SecretStore) Save(ctx context.Context, secret model.Secret) (bool, error) {
	db := getDB(ctx, s.db)

	result := db.Model(&model.Secret{}).Where("name = ?", secret.Name).Updates(map[string]any{
		"encrypted_value": secret.EncryptedValue,
		"description":     secret.Description,
	})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return false, nil
	}

	if err := db.Create(&secret).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *SecretStore) Delete(ctx context.Context, name string) error {
	result := getDB(ctx, s.db).Delete(&model.Secret{}, "name = ?", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
