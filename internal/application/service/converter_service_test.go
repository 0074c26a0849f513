// internal/application/service/converter_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/logger"
	"github.com/cgt-tools/hmrc-rate-service/internal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newConverter(t *testing.T, source *mocks.MockRateSource, store *mocks.MockRateStore, seed map[time.Time]map[string]decimal.Decimal) *ConverterService {
	t.Helper()

	log := logger.NewJSONLogger(nil, logger.ErrorLevel)
	converter, err := NewConverterService(source, store, seed, nil, log)
	require.NoError(t, err)
	return converter
}

func TestRateForFetchesOnMiss(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	ctx := context.Background()

	month := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	store.On("Load").Return(entity.NewRateTable(), nil).Once()
	source.On("FetchMonthlyRates", ctx, month).Return([]entity.Rate{
		{Currency: "USD", Rate: decimal.RequireFromString("1.3783")},
		{Currency: "EUR", Rate: decimal.RequireFromString("1.16")},
	}, nil).Once()
	store.On("Save", mock.AnythingOfType("*entity.RateTable")).Return(nil).Once()

	converter := newConverter(t, source, store, nil)

	// Mid-month date resolves via the month key
	rate, err := converter.RateFor(ctx, "USD", time.Date(2021, 3, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1.3783", rate.String())

	// Second lookup in the same month is served from the table
	rate, err = converter.RateFor(ctx, "EUR", time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1.16", rate.String())

	source.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRateForMissingCurrency(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	ctx := context.Background()

	month := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	store.On("Load").Return(entity.NewRateTable(), nil).Once()
	source.On("FetchMonthlyRates", ctx, month).Return([]entity.Rate{
		{Currency: "USD", Rate: decimal.RequireFromString("1.3783")},
	}, nil).Once()
	store.On("Save", mock.AnythingOfType("*entity.RateTable")).Return(nil).Once()

	converter := newConverter(t, source, store, nil)

	// The month resolves but HMRC never published this currency
	_, err := converter.RateFor(ctx, "XYZ", month)

	var missingErr *entity.ExchangeRateMissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "XYZ", missingErr.Currency)
	assert.Equal(t, month, missingErr.Date)

	// Other currencies of the same month remain resolvable without a refetch
	rate, err := converter.RateFor(ctx, "USD", month)
	require.NoError(t, err)
	assert.Equal(t, "1.3783", rate.String())

	source.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRateForFetchFailureLeavesTableUntouched(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	ctx := context.Background()

	month := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	fetchErr := entity.NewParsingError("https://example.invalid", "boom", nil)

	store.On("Load").Return(entity.NewRateTable(), nil).Once()
	// Both lookups hit the source because the first failure cached nothing
	source.On("FetchMonthlyRates", ctx, month).Return(nil, fetchErr).Twice()

	converter := newConverter(t, source, store, nil)

	_, err := converter.RateFor(ctx, "USD", month)
	var parseErr *entity.ParsingError
	require.ErrorAs(t, err, &parseErr)

	_, err = converter.RateFor(ctx, "USD", month)
	require.Error(t, err)

	source.AssertExpectations(t)
	store.AssertNotCalled(t, "Save", mock.Anything)
}

func TestRateForArgumentContract(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	store.On("Load").Return(entity.NewRateTable(), nil).Once()

	converter := newConverter(t, source, store, nil)

	_, err := converter.RateFor(context.Background(), "", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)

	_, err = converter.RateFor(context.Background(), "USD", time.Time{})
	assert.Error(t, err)
}

func TestToGBPIdentity(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	store.On("Load").Return(entity.NewRateTable(), nil).Once()

	converter := newConverter(t, source, store, nil)

	amount := decimal.RequireFromString("123.456789")
	got, err := converter.ToGBP(context.Background(), amount, "GBP", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, amount.Equal(got))
	assert.Equal(t, amount.String(), got.String())

	// No fetch, no persistence for the reference currency
	source.AssertNotCalled(t, "FetchMonthlyRates", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Save", mock.Anything)
}

func TestToGBPDividesByRate(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	ctx := context.Background()

	month := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	table := entity.NewRateTable()
	table.Insert(month, "USD", decimal.RequireFromString("1.25"))
	store.On("Load").Return(table, nil).Once()

	converter := newConverter(t, source, store, nil)

	// Lowercase input is uppercased before lookup
	got, err := converter.ToGBP(ctx, decimal.RequireFromString("100"), "usd", month)
	require.NoError(t, err)
	assert.Equal(t, "80", got.String())

	source.AssertNotCalled(t, "FetchMonthlyRates", mock.Anything, mock.Anything)
}

func TestToGBPRejectsZeroRate(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	ctx := context.Background()

	month := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	store.On("Load").Return(entity.NewRateTable(), nil).Once()

	// Seed data bypasses the load/fetch validation
	seed := map[time.Time]map[string]decimal.Decimal{
		month: {"USD": decimal.Zero},
	}

	converter := newConverter(t, source, store, seed)

	_, err := converter.ToGBP(ctx, decimal.RequireFromString("100"), "USD", month)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
	assert.Contains(t, err.Error(), "USD")
}

func TestToGBPForUsesTransactionFields(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)
	ctx := context.Background()

	month := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	table := entity.NewRateTable()
	table.Insert(month, "EUR", decimal.RequireFromString("1.1"))
	store.On("Load").Return(table, nil).Once()

	converter := newConverter(t, source, store, nil)

	tx := &entity.BrokerTransaction{
		ID:       "abc",
		Date:     time.Date(2020, 6, 23, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString("550"),
		Currency: "EUR",
	}

	got, err := converter.ToGBPFor(ctx, tx.Amount, tx)
	require.NoError(t, err)
	assert.Equal(t, "500", got.String())
}

func TestSeedDataOverridesLoadedRates(t *testing.T) {
	source := new(mocks.MockRateSource)
	store := new(mocks.MockRateStore)

	month := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)

	table := entity.NewRateTable()
	table.Insert(month, "USD", decimal.RequireFromString("1.36"))
	store.On("Load").Return(table, nil).Once()

	seed := map[time.Time]map[string]decimal.Decimal{
		month: {"USD": decimal.RequireFromString("2")},
	}

	converter := newConverter(t, source, store, seed)

	rate, err := converter.RateFor(context.Background(), "USD", month)
	require.NoError(t, err)
	assert.Equal(t, "2", rate.String())
}
