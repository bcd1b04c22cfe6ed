package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hivefi/ledger/internal/apperrors"
)

// newValidator reads the same `binding` tags gin uses for request DTOs.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}

// normalizeCurrency upper-cases code and checks it is three letters.
func normalizeCurrency(v *validator.Validate, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := v.Var(code, "required,len=3,alpha"); err != nil {
		return "", fmt.Errorf("%w: currency code %q must be 3 letters", apperrors.ErrValidation, code)
	}
	return code, nil
}

// normalizePair validates and upper-cases both codes of a currency pair.
func normalizePair(v *validator.Validate, from, to string) (string, string, error) {
	f, err := normalizeCurrency(v, from)
	if err != nil {
		return "", "", err
	}
	t, err := normalizeCurrency(v, to)
	if err != nil {
		return "", "", err
	}
	return f, t, nil
}
