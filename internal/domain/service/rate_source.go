package service

import (
	"context"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
)

// RateSource defines the interface for fetching one calendar month of
// GBP exchange rates from a remote publisher.
type RateSource interface {
	// FetchMonthlyRates retrieves every published rate for the month
	// containing date, in document order.
	FetchMonthlyRates(ctx context.Context, date time.Time) ([]entity.Rate, error)
}
