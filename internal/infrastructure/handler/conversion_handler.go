// Package handler internal/infrastructure/handler/conversion_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/application/service"
	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/logger"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// ConversionHandler handles HTTP requests for GBP conversion and rate lookups
type ConversionHandler struct {
	txService *service.TransactionService
	converter *service.ConverterService
	logger    logger.Logger
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(txService *service.TransactionService, converter *service.ConverterService, log logger.Logger) *ConversionHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ConversionHandler{
		txService: txService,
		converter: converter,
		logger:    log,
	}
}

// ConvertTransaction handles retrieving a transaction converted to GBP
func (h *ConversionHandler) ConvertTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	vars := mux.Vars(r)
	id := vars["id"]

	h.logger.Info("Handling convert transaction request", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
	})

	tx, err := h.txService.GetTransaction(r.Context(), id)
	if err != nil {
		var notFoundErr *entity.TransactionNotFoundError
		if errors.As(err, &notFoundErr) {
			h.logger.Warn("Transaction not found", map[string]interface{}{
				"request_id": requestID,
				"id":         id,
				"error":      err.Error(),
			})
			sendErrorResponse(w, h.logger, "Transaction not found",
				"The requested transaction could not be found", http.StatusNotFound, requestID)
		} else {
			h.logger.Error("Unexpected error retrieving transaction", map[string]interface{}{
				"request_id": requestID,
				"id":         id,
				"error":      err.Error(),
			})
			sendErrorResponse(w, h.logger, "Internal server error",
				"An unexpected error occurred while retrieving the transaction",
				http.StatusInternalServerError, requestID)
		}
		return
	}

	gbpAmount, err := h.converter.ToGBPFor(r.Context(), tx.Amount, tx)
	if err != nil {
		h.sendConversionError(w, err, requestID)
		return
	}

	rateStr := "1"
	if tx.Currency != service.ReferenceCurrency {
		rate, err := h.converter.RateFor(r.Context(), tx.Currency, tx.Date)
		if err != nil {
			h.sendConversionError(w, err, requestID)
			return
		}
		rateStr = rate.String()
	}

	h.logger.Info("Transaction converted successfully", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
		"currency":   tx.Currency,
		"gbp_amount": gbpAmount.String(),
	})

	resp := GBPTransactionResponse{
		ID:             tx.ID,
		Description:    tx.Description,
		Date:           tx.Date.Format("2006-01-02"),
		OriginalAmount: tx.Amount.String(),
		Currency:       tx.Currency,
		ExchangeRate:   rateStr,
		GBPAmount:      gbpAmount.String(),
		RateMonth:      entity.MonthKey(tx.Date).Format("2006-01-02"),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetRate handles direct monthly rate lookups
func (h *ConversionHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		sendErrorResponse(w, h.logger, "Missing currency parameter",
			"The 'currency' query parameter is required", http.StatusBadRequest, requestID)
		return
	}

	// Currency codes should be 3 characters
	if len(currency) != 3 {
		sendErrorResponse(w, h.logger, "Invalid currency code",
			"Currency code should be 3 characters (e.g., EUR, USD, CAD)", http.StatusBadRequest, requestID)
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid date",
			"The 'date' query parameter must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
		return
	}

	h.logger.Info("Handling rate lookup request", map[string]interface{}{
		"request_id": requestID,
		"currency":   currency,
		"date":       dateStr,
	})

	rate, err := h.converter.RateFor(r.Context(), strings.ToUpper(currency), date)
	if err != nil {
		h.sendConversionError(w, err, requestID)
		return
	}

	resp := RateResponse{
		Currency: strings.ToUpper(currency),
		Month:    entity.MonthKey(date).Format("2006-01-02"),
		Rate:     rate.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// sendConversionError maps converter errors to HTTP responses
func (h *ConversionHandler) sendConversionError(w http.ResponseWriter, err error, requestID string) {
	var missingErr *entity.ExchangeRateMissingError
	var parsingErr *entity.ParsingError

	switch {
	case errors.As(err, &missingErr):
		h.logger.Warn("No exchange rate published", map[string]interface{}{
			"request_id": requestID,
			"currency":   missingErr.Currency,
			"month":      missingErr.Date.Format("2006-01"),
		})
		sendErrorResponse(w, h.logger, "No exchange rate available",
			"HMRC did not publish a rate for the requested currency in that month",
			http.StatusBadRequest, requestID)
	case errors.As(err, &parsingErr):
		h.logger.Error("Exchange rate source error", map[string]interface{}{
			"request_id": requestID,
			"source":     parsingErr.Source,
			"error":      parsingErr.Error(),
		})
		sendErrorResponse(w, h.logger, "Exchange rate service unavailable",
			"Unable to retrieve exchange rate data. Please try again later.",
			http.StatusServiceUnavailable, requestID)
	default:
		h.logger.Error("Unexpected error in conversion", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Internal server error",
			"An unexpected error occurred. Please try again later.",
			http.StatusInternalServerError, requestID)
	}
}

// RegisterRoutes registers the conversion handler routes
func (h *ConversionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/transactions/{id}/gbp", h.ConvertTransaction).Methods("GET")
	router.HandleFunc("/rates", h.GetRate).Methods("GET")

	h.logger.Info("Conversion routes registered", map[string]interface{}{
		"routes": []string{
			"GET /transactions/{id}/gbp",
			"GET /rates",
		},
	})
}
