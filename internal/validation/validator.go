// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package validation wraps go-playground/validator v10 behind a
// thread-safe singleton with error translation into the API's
// VALIDATION_ERROR shape. A custom "issuekey" tag validates remote
// issue key syntax (PROJ-123) without a network round trip.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// issueKeyPattern matches the remote tracker's key syntax: an uppercase
// project code, a dash, and a numeric sequence.
var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*-[0-9]+$`)

// FieldError is one failed field with its translated message.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// RequestError is the full validation outcome for one request payload.
type RequestError struct {
	fields []FieldError
}

// Fields returns the individual field failures.
func (e *RequestError) Fields() []FieldError {
	return e.fields
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		messages = append(messages, f.Message)
	}
	return strings.Join(messages, "; ")
}

// Details returns a response-ready map describing every failed field.
func (e *RequestError) Details() map[string]any {
	fields := make([]map[string]any, len(e.fields))
	for i, f := range e.fields {
		fields[i] = map[string]any{
			"field":   f.Field,
			"tag":     f.Tag,
			"message": f.Message,
		}
	}
	return map[string]any{"fields": fields}
}

// Validator returns the singleton instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails for empty tags or nil funcs.
		if err := validate.RegisterValidation("issuekey", func(fl validator.FieldLevel) bool {
			return issueKeyPattern.MatchString(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("failed to register issuekey validator: %v", err))
		}
	})
	return validate
}

// ValidateStruct validates a request payload. Returns nil on success.
func ValidateStruct(s any) *RequestError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestError{fields: []FieldError{{
			Field: "unknown", Tag: "unknown", Message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return &RequestError{fields: fields}
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"datetime": "%s must be a date in YYYY-MM-DD format",
	"issuekey": "%s must be an issue key like PROJ-123",
	"url":      "%s must be a valid URL",
}

var messageTemplatesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translate(fe validator.FieldError) string {
	if tpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, fe.Field())
	}
	if tpl, ok := messageTemplatesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
