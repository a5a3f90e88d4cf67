package validator

import (
	"fmt"
	"strings"
)

// ErrInvalidForm lists every field that failed validation.
type ErrInvalidForm struct {
	error
	Fields []string
}

func NewErrInvalidForm(fields []string) *ErrInvalidForm {
	return &ErrInvalidForm{
		error:  fmt.Errorf("invalid request: %s", strings.Join(fields, "; ")),
		Fields: fields,
	}
}
