// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

// Package validation checks inbound location payloads with
// go-playground/validator v10.
//
// One validator is shared by the process so struct tags are parsed once.
// Errors name fields by their json tag ("latitude", "sessionId"), which is
// what clients send and what they see echoed back.
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return verr.ToAPIError()
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/rescuenet/internal/models"
)

const errorCode = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string // json name
	Tag     string // rule, e.g. "required" or "lte"
	Param   string // rule argument, e.g. "360" for lte=360
	Message string
}

// RequestValidationError collects every failed rule for one payload.
type RequestValidationError struct {
	violations []FieldError
}

// Errors returns the individual field failures in declaration order.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.violations
}

// Fields returns the json name of each failed field.
func (ve *RequestValidationError) Fields() []string {
	out := make([]string, len(ve.violations))
	for i, v := range ve.violations {
		out[i] = v.Field
	}
	return out
}

func (ve *RequestValidationError) Error() string {
	if len(ve.violations) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.violations))
	for i, v := range ve.violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

// ToAPIError builds the REST error body. A single failure is reported
// flat; several are listed under details.fields.
func (ve *RequestValidationError) ToAPIError() *models.APIError {
	switch len(ve.violations) {
	case 0:
		return &models.APIError{Code: errorCode, Message: "Validation failed"}
	case 1:
		v := ve.violations[0]
		return &models.APIError{
			Code:    errorCode,
			Message: v.Message,
			Details: map[string]interface{}{"field": v.Field, "tag": v.Tag},
		}
	}

	fields := make([]map[string]interface{}, len(ve.violations))
	for i, v := range ve.violations {
		fields[i] = map[string]interface{}{"field": v.Field, "tag": v.Tag, "message": v.Message}
	}
	return &models.APIError{
		Code:    errorCode,
		Message: ve.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the shared validator, building it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		//nolint:errcheck // only fails for an empty tag or nil func
		_ = validate.RegisterValidation("emergency_type", func(fl validator.FieldLevel) bool {
			return models.EmergencyType(fl.Field().String()).Valid()
		})
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// ValidateStruct returns nil when s passes every rule.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{violations: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return &RequestValidationError{violations: out}
}

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "latitude":
		return field + " must be a valid latitude (-90 to 90)"
	case "longitude":
		return field + " must be a valid longitude (-180 to 180)"
	case "emergency_type":
		return field + " must be one of: flood, tsunami, landslide, cyclone, medical, fire, other"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
