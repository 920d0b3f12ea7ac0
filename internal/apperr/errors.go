// Package apperr defines the error taxonomy shared by the pipeline and
// the pricing engine.  Each type wraps an optional cause and is matched
// with errors.As through the Is* helpers.
package apperr

import (
	"errors"
	"fmt"
)

// DataError is a per-record problem: a missing or invalid field.  It is
// turned into a QualityIssue and the record is dropped; it never aborts
// a batch.
type DataError struct {
	RecordID string
	Field    string
	Msg      string
	Err      error
}

func (e DataError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("record %s: %s: %s", e.RecordID, e.Field, e.Msg)
	case e.Field != "":
		return fmt.Sprintf("record %s: invalid %s", e.RecordID, e.Field)
	case e.Msg != "":
		return fmt.Sprintf("record %s: %s", e.RecordID, e.Msg)
	default:
		return fmt.Sprintf("record %s: invalid data", e.RecordID)
	}
}

func (e DataError) Unwrap() error { return e.Err }

// BatchFormatError means the batch container itself could not be read.
// The whole batch is rejected and nothing is loaded.
type BatchFormatError struct {
	Msg string
	Err error
}

func (e BatchFormatError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "malformed batch"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e BatchFormatError) Unwrap() error { return e.Err }

// LoadError is a store rejection of one normalized row.
type LoadError struct {
	Key string
	Err error
}

func (e LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s failed", e.Key)
	}
	return fmt.Sprintf("load %s: %v", e.Key, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// PricingValidationError rejects a malformed pricing request.  No
// suggestion accompanies it.
type PricingValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e PricingValidationError) Error() string {
	if e.Field != "" && e.Msg != "" {
		return fmt.Sprintf("pricing request: %s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return "pricing request: " + e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("pricing request: invalid %s", e.Field)
	}
	return "pricing request: invalid"
}

func (e PricingValidationError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or invalid thresholds at startup.
// It is fatal for the pipeline and the engine.
type ConfigurationError struct {
	Key string
	Msg string
	Err error
}

func (e ConfigurationError) Error() string {
	var s string
	switch {
	case e.Key != "" && e.Msg != "":
		s = fmt.Sprintf("config %s: %s", e.Key, e.Msg)
	case e.Key != "":
		s = fmt.Sprintf("config %s: invalid", e.Key)
	case e.Msg != "":
		s = "config: " + e.Msg
	default:
		s = "config: invalid"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e ConfigurationError) Unwrap() error { return e.Err }

func IsData(err error) bool {
	var target DataError
	return errors.As(err, &target)
}

func IsBatchFormat(err error) bool {
	var target BatchFormatError
	return errors.As(err, &target)
}

func IsLoad(err error) bool {
	var target LoadError
	return errors.As(err, &target)
}

func IsPricingValidation(err error) bool {
	var target PricingValidationError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target ConfigurationError
	return errors.As(err, &target)
}
