// Package service internal/application/service/converter_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/cgt-tools/hmrc-rate-service/internal/domain/repository"
	domainservice "github.com/cgt-tools/hmrc-rate-service/internal/domain/service"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/logger"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/middleware"
	"github.com/cgt-tools/hmrc-rate-service/internal/metrics"
	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the currency every conversion normalizes to. Rates
// are expressed as units of foreign currency per one unit of it.
const ReferenceCurrency = "GBP"

// ConverterService converts amounts to GBP using HMRC monthly rates. Months
// are resolved from the in-memory table first; a miss triggers a fetch from
// the rate source, and a successful fetch is persisted before the lookup
// completes.
type ConverterService struct {
	table   *entity.RateTable
	source  domainservice.RateSource
	store   repository.RateStore
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewConverterService loads the persisted rate table, overlays the optional
// seed data on top of it, and returns a converter ready to serve lookups.
// metrics may be nil.
func NewConverterService(
	source domainservice.RateSource,
	store repository.RateStore,
	seed map[time.Time]map[string]decimal.Decimal,
	m *metrics.Metrics,
	log logger.Logger,
) (*ConverterService, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	table, err := store.Load()
	if err != nil {
		return nil, err
	}
	table.Merge(seed)

	log.Info("Loaded exchange rate table", map[string]interface{}{
		"entries": table.Len(),
	})

	return &ConverterService{
		table:   table,
		source:  source,
		store:   store,
		metrics: m,
		logger:  log,
	}, nil
}

// RateFor returns the GBP/currency rate for the month containing date,
// fetching and persisting the month's rates if they are not cached yet.
func (s *ConverterService) RateFor(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	if currency == "" {
		return decimal.Decimal{}, fmt.Errorf("currency must not be empty")
	}
	if date.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("date must be a valid calendar date")
	}

	month := entity.MonthKey(date)

	if !s.table.HasMonth(month) {
		if s.metrics != nil {
			s.metrics.RateTableMissesTotal.Inc()
		}

		s.logger.Info("Fetching exchange rates for month", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"month":      month.Format("2006-01"),
			"currency":   currency,
		})

		rows, err := s.source.FetchMonthlyRates(ctx, month)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RateFetchesTotal.WithLabelValues("failure").Inc()
			}
			s.logger.Error("Failed to fetch exchange rates", map[string]interface{}{
				"request_id": middleware.GetRequestID(ctx),
				"month":      month.Format("2006-01"),
				"error":      err.Error(),
			})
			return decimal.Decimal{}, err
		}

		if s.metrics != nil {
			s.metrics.RateFetchesTotal.WithLabelValues("success").Inc()
		}

		s.table.SetMonth(month, rows)
		if err := s.store.Save(s.table); err != nil {
			return decimal.Decimal{}, fmt.Errorf("failed to persist exchange rates: %w", err)
		}
	} else if s.metrics != nil {
		s.metrics.RateTableHitsTotal.Inc()
	}

	rate, ok := s.table.Rate(month, currency)
	if !ok {
		return decimal.Decimal{}, &entity.ExchangeRateMissingError{Currency: currency, Date: month}
	}

	return rate, nil
}

// ToGBP converts amount from the given currency to GBP. GBP amounts pass
// through unchanged; everything else is divided by the month's rate with
// no rounding beyond the decimal type's division precision.
func (s *ConverterService) ToGBP(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) (decimal.Decimal, error) {
	if currency == ReferenceCurrency {
		return amount, nil
	}

	rate, err := s.RateFor(ctx, strings.ToUpper(currency), date)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// Load and fetch both reject non-positive rates, but seed data can
	// still carry one; dividing by zero would panic.
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("invalid exchange rate %s for %s in %s: must be positive",
			rate.String(), strings.ToUpper(currency), entity.MonthKey(date).Format("2006-01"))
	}

	if s.metrics != nil {
		s.metrics.ConversionsTotal.Inc()
	}

	return amount.Div(rate), nil
}

// ToGBPFor converts amount using the transaction's currency and date.
func (s *ConverterService) ToGBPFor(ctx context.Context, amount decimal.Decimal, tx *entity.BrokerTransaction) (decimal.Decimal, error) {
	return s.ToGBP(ctx, amount, tx.Currency, tx.Date)
}
