package handler

import "github.com/shopspring/decimal"

// CreateTransactionRequest represents the request body for creating a transaction
type CreateTransactionRequest struct {
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// TransactionResponse represents the response for transaction endpoints
type TransactionResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// CreateTransactionResponse represents the response for the create transaction endpoint
type CreateTransactionResponse struct {
	ID string `json:"id"`
}

// GBPTransactionResponse represents a transaction converted to GBP
type GBPTransactionResponse struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Date           string `json:"date"`
	OriginalAmount string `json:"original_amount"`
	Currency       string `json:"currency"`
	ExchangeRate   string `json:"exchange_rate"`
	GBPAmount      string `json:"gbp_amount"`
	RateMonth      string `json:"rate_month"`
}

// RateResponse represents the response for the rate lookup endpoint
type RateResponse struct {
	Currency string `json:"currency"`
	Month    string `json:"month"`
	Rate     string `json:"rate"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}
