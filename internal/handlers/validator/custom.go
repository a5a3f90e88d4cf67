package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var secretNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,255}$`)

func uuidValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(uuid.UUID)
	if !ok {
		return false
	}
	return val != uuid.Nil
}

func secretNameValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return secretNameRegex.MatchString(val)
}

// -1 means every sample of the dataset.
func maxSamplesValidator(fl validator.FieldLevel) bool {
	val := fl.Field().Int()
	return val == -1 || val > 0
}
