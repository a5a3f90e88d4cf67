package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the actual validator.
// It sets up the validator and turns the underlying field errors into a single readable error.
type Validator struct {
	validator *validator.Validate
	rules     []ValidationRule
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validator: v}
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
	v.rules = append(v.rules, rules...)
}

func (v *Validator) Struct(s any) error {
	return translate(v.validator.Struct(s))
}

// Var validates a single value, such as a path parameter, against the given tag.
func (v *Validator) Var(name string, value any, tag string) error {
	err := v.validator.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewErrInvalidForm([]string{fieldMessage(name, verrs[0].Tag(), verrs[0].Param())})
	}
	return err
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldMessage(fieldPath(fe.Namespace()), fe.Tag(), fe.Param()))
	}
	return NewErrInvalidForm(fields)
}

// fieldPath drops the struct name the namespace starts with.
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return path
}

func fieldMessage(field, tag, param string) string {
	switch tag {
	case "required", "uuid_set":
		return field + " is required"
	case "max":
		return field + " must be at most " + param + " characters long"
	case "gt":
		return field + " must be greater than " + param
	case "gte":
		return field + " must be at least " + param
	case "lte":
		return field + " must be at most " + param
	case "max_samples":
		return field + " must be -1 or a positive number"
	case "secret_name":
		return field + " may only contain letters, digits, '_' and '-'"
	case "url":
		return field + " must be a valid url"
	default:
		return field + " is invalid (" + tag + ")"
	}
}
