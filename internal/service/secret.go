package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mozilla-ai/lumigator/internal/secret"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store"
	"github.com/mozilla-ai/lumigator/pkg/log"
)

// SecretSummary is what callers may know about a secret. It never carries the value.
type SecretSummary struct {
	Name        string
	Description string
}

type SecretService struct {
	store  store.Store
	cipher *secret.Cipher
	logger *log.StructuredLogger
}

func NewSecretService(store store.Store, cipher *secret.Cipher) *SecretService {
	return &SecretService{
		store:  store,
		cipher: cipher,
		logger: log.NewDebugLogger("secret_service"),
	}
}

func (s *SecretService) List(ctx context.Context) ([]SecretSummary, error) {
	tracer := s.logger.WithContext(ctx).Operation("list_secrets").Build()

	secrets, err := s.store.Secret().List(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	summaries := make([]SecretSummary, 0, len(secrets))
	for _, sec := range secrets {
		summaries = append(summaries, SecretSummary{Name: sec.Name, Description: sec.Description})
	}

	tracer.Success().WithInt("count", len(summaries)).Log()
	return summaries, nil
}

// Put stores the secret, replacing the value and description of an existing one.
// created is false when the secret already existed.
func (s *SecretService) Put(ctx context.Context, form mappers.SecretPutForm) (created bool, err error) {
	tracer := s.logger.WithContext(ctx).Operation("put_secret").WithString("name", form.Name).Build()
	defer func() {
		if err != nil {
			tracer.Error(err).Log()
		}
	}()

	encrypted, encErr := s.cipher.Encrypt(form.Value)
	if encErr != nil {
		return false, NewErrSecretEncryption(form.Name)
	}

	err = store.InTransaction(ctx, s.store, func(ctx context.Context) error {
		var saveErr error
		created, saveErr = s.store.Secret().Save(ctx, form.ToModel(encrypted))
		if saveErr != nil {
			return fmt.Errorf("failed to save secret: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	tracer.Success().WithBool("created", created).Log()
	return created, nil
}

func (s *SecretService) GetDecrypted(ctx context.Context, name string) (string, error) {
	tracer := s.logger.WithContext(ctx).Operation("get_decrypted_secret").WithString("name", name).Build()

	sec, err := s.store.Secret().Get(ctx, strings.ToLower(name))
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, store.ErrRecordNotFound) {
			return "", NewErrSecretNotFound(name)
		}
		return "", fmt.Errorf("failed to get secret: %w", err)
	}

	value, err := s.cipher.Decrypt(sec.EncryptedValue)
	if err != nil {
		tracer.Error(err).Log()
		return "", NewErrSecretDecryption(name)
	}

	tracer.Success().Log()
	return value, nil
}

func (s *SecretService) IsConfigured(ctx context.Context, name string) (bool, error) {
	_, err := s.store.Secret().Get(ctx, strings.ToLower(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to get secret: %w", err)
	}
}

func (s *SecretService) Delete(ctx context.Context, name string) error {
	tracer := s.logger.WithContext(ctx).Operation("delete_secret").WithString("name", name).Build()

	if err := s.store.Secret().Delete(ctx, strings.ToLower(name)); err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrSecretNotFound(name)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	tracer.Success().Log()
	return nil
}
