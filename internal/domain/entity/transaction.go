package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BrokerTransaction represents a transaction reported by a broker in its
// original currency.
type BrokerTransaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Validate ensures the transaction meets all requirements
func (t *BrokerTransaction) Validate() error {
	if len(t.Description) > 50 {
		return &ValidationError{Field: "description", Message: "description must not exceed 50 characters"}
	}

	if !t.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "amount must be a positive value"}
	}

	if len(t.Currency) != 3 {
		return &ValidationError{Field: "currency", Message: "currency must be a 3-letter code"}
	}

	return nil
}
