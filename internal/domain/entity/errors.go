package entity

import (
	"fmt"
	"time"
)

// ParsingError reports a malformed persisted-file row, a failed HMRC
// request, or a malformed HMRC response. Source names the file path or URL
// so the user can patch the rates file by hand as a workaround.
type ParsingError struct {
	Source  string
	Message string
	Err     error
}

// NewParsingError creates a ParsingError. err may be nil when there is no
// underlying cause.
func NewParsingError(source, message string, err error) *ParsingError {
	return &ParsingError{Source: source, Message: message, Err: err}
}

func (e *ParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing error in %s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("parsing error in %s: %s", e.Source, e.Message)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}

// ExchangeRateMissingError means a month was resolved successfully but HMRC
// never published a rate for the requested currency in it.
type ExchangeRateMissingError struct {
	Currency string
	Date     time.Time
}

func (e *ExchangeRateMissingError) Error() string {
	return fmt.Sprintf("no exchange rate for %s in %s", e.Currency, e.Date.Format("2006-01"))
}

// TransactionNotFoundError means no transaction exists for the given ID.
type TransactionNotFoundError struct {
	ID string
}

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("transaction not found: %s", e.ID)
}

// ValidationError reports a transaction field that failed validation.
// Handlers switch on Field to pick the response message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
