package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewJobValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("uuid_set", uuidValidator),
		},
		{
			Rule: registerFn("max_samples", maxSamplesValidator),
		},
	}
}

func NewWorkflowValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("secret_name", secretNameValidator),
		},
	}
}

func NewExperimentValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("uuid_set", uuidValidator),
		},
		{
			Rule: registerFn("max_samples", maxSamplesValidator),
		},
	}
}

func NewSecretValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("secret_name", secretNameValidator),
		},
	}
}
