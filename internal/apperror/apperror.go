// Package apperror defines the application's sentinel errors and maps validation errors for API responses.
package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrLedgerNotConfigured means no spreadsheet id was configured.
	ErrLedgerNotConfigured = errors.New("ledger is not configured")
	// ErrInvalidCredentials means the Google service account credentials are missing or malformed.
	ErrInvalidCredentials = errors.New("invalid service account credentials")
	// ErrMessagingNotConfigured means no LINE channel access token was configured.
	ErrMessagingNotConfigured = errors.New("messaging channel access token is not configured")
)

var (
	errRequired            = errors.New("is required")
	errMustBePositive      = errors.New("must be a positive number")
	errMissingPlaceholder  = errors.New("must contain the {points} placeholder")
	errUnknownRequestField = errors.New("is invalid")
)

var customErrors = map[string]error{
	"PointRule.Keyword.required":    errRequired,
	"PointRule.Points.required":     errRequired,
	"PointRule.Points.gt":           errMustBePositive,
	"PointRule.Message.required":    errRequired,
	"PointRule.Message.placeholder": errMissingPlaceholder,
}

// CustomValidationError converts validator errors into a list of field → message pairs.
func CustomValidationError(err error) []map[string]string {
	errList := make([]map[string]string, 0)

	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		for _, e := range validationErr {
			field := e.StructNamespace()
			key := field + "." + e.Tag()

			errMsg := fmt.Sprintf("%s %s", field, errUnknownRequestField)
			if v, ok := customErrors[key]; ok {
				errMsg = v.Error()
			}

			errList = append(errList, map[string]string{e.Field(): errMsg})
		}
	}
	return errList
}
