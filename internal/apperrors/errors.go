package apperrors

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicateRequest indicates that a request id was already processed.
var ErrDuplicateRequest = errors.New("duplicate request")

// ErrRateFetch indicates that the rate provider could not be reached or answered with a failure.
var ErrRateFetch = errors.New("rate fetch failed")

// ErrRateParse indicates that a rate provider response matched none of the known shapes.
var ErrRateParse = errors.New("rate parse failed")

// ErrChainIntegrity indicates that the transaction hash chain is broken.
var ErrChainIntegrity = errors.New("chain integrity violated")

// AppError carries an HTTP-ish status code alongside an underlying error.
// Adapters use it to wrap driver failures.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewValidationError returns an error wrapping ErrValidation.
func NewValidationError(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

// NewNotFoundError returns an error wrapping ErrNotFound.
func NewNotFoundError(message string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, message)
}

// DuplicateRequestError reports an idempotency key that was already accepted.
type DuplicateRequestError struct {
	RequestID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("duplicate request: %s", e.RequestID)
}

func (e *DuplicateRequestError) Unwrap() error {
	return ErrDuplicateRequest
}

// RateFetchError wraps a transport or provider failure for a currency pair.
type RateFetchError struct {
	From string
	To   string
	Err  error
}

func (e *RateFetchError) Error() string {
	return fmt.Sprintf("rate fetch %s->%s failed: %v", e.From, e.To, e.Err)
}

// Is lets errors.Is(err, ErrRateFetch) match while Unwrap exposes the cause.
func (e *RateFetchError) Is(target error) bool {
	return target == ErrRateFetch
}

func (e *RateFetchError) Unwrap() error {
	return e.Err
}

// previewLimit bounds the raw body preview kept in RateParseError.
const previewLimit = 240

var whitespaceRun = regexp.MustCompile(`\s+`)

// RateParseError reports a provider body that no extractor understood.
type RateParseError struct {
	From    string
	To      string
	Preview string
}

// NewRateParseError builds a RateParseError with a collapsed, truncated preview of body.
func NewRateParseError(from, to string, body []byte) *RateParseError {
	return &RateParseError{From: from, To: to, Preview: BodyPreview(body)}
}

func (e *RateParseError) Error() string {
	return fmt.Sprintf("rate parse %s->%s failed: %s", e.From, e.To, e.Preview)
}

func (e *RateParseError) Unwrap() error {
	return ErrRateParse
}

// BodyPreview collapses whitespace runs and truncates to 240 characters.
func BodyPreview(body []byte) string {
	preview := whitespaceRun.ReplaceAllString(string(body), " ")
	runes := []rune(preview)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return preview
}

// ChainIntegrityError identifies the first entry of the chain that failed verification.
type ChainIntegrityError struct {
	Index  int
	Reason string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violated at index %d: %s", e.Index, e.Reason)
}

func (e *ChainIntegrityError) Unwrap() error {
	return ErrChainIntegrity
}
