package contract

import "errors"

var (
	ErrClassifierInvoke = errors.New("classifier invoke failed")
	ErrClassifierSchema = errors.New("classifier response violates schema")
	ErrPromptMissing    = errors.New("required prompt is missing")
	ErrValidation       = errors.New("validation failed")
)
