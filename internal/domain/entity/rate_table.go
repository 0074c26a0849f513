package entity

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is a single currency's published rate for a month, expressed as
// units of the currency per one GBP.
type Rate struct {
	Currency string
	Rate     decimal.Decimal
}

// RateEntry is one flattened row of the table: (month, currency, rate).
type RateEntry struct {
	Month    time.Time
	Currency string
	Rate     decimal.Decimal
}

// MonthKey normalizes a date to the first day of its month in UTC. Every
// table lookup, insert, and fetch keys on this value so a calendar month is
// fetched and persisted exactly once regardless of the day callers pass in.
func MonthKey(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RateTable holds monthly GBP exchange rates keyed by first-of-month date.
// Iteration order is insertion order for months and for currencies within a
// month, so a file written from the table loads back in the same order.
type RateTable struct {
	mu     sync.RWMutex
	months []time.Time
	rates  map[time.Time]*monthRates
}

type monthRates struct {
	codes  []string
	values map[string]decimal.Decimal
}

// NewRateTable creates an empty rate table.
func NewRateTable() *RateTable {
	return &RateTable{
		rates: make(map[time.Time]*monthRates),
	}
}

// Insert stores a rate under (month, currency). The month is normalized via
// MonthKey; an existing (month, currency) entry is overwritten in place.
func (t *RateTable) Insert(date time.Time, currency string, rate decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.insertLocked(MonthKey(date), currency, rate)
}

func (t *RateTable) insertLocked(month time.Time, currency string, rate decimal.Decimal) {
	mr, exists := t.rates[month]
	if !exists {
		mr = &monthRates{values: make(map[string]decimal.Decimal)}
		t.rates[month] = mr
		t.months = append(t.months, month)
	}

	if _, exists := mr.values[currency]; !exists {
		mr.codes = append(mr.codes, currency)
	}
	mr.values[currency] = rate
}

// SetMonth replaces the rates of an entire month with the given rows,
// preserving their order.
func (t *RateTable) SetMonth(date time.Time, rows []Rate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	month := MonthKey(date)
	if mr, exists := t.rates[month]; exists {
		mr.codes = nil
		mr.values = make(map[string]decimal.Decimal)
	}
	for _, row := range rows {
		t.insertLocked(month, row.Currency, row.Rate)
	}
	// An empty month is still recorded so the caller can tell "fetched,
	// nothing published" apart from "never fetched".
	if _, exists := t.rates[month]; !exists {
		t.rates[month] = &monthRates{values: make(map[string]decimal.Decimal)}
		t.months = append(t.months, month)
	}
}

// Rate returns the rate stored under (month, currency).
func (t *RateTable) Rate(date time.Time, currency string) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	mr, exists := t.rates[MonthKey(date)]
	if !exists {
		return decimal.Decimal{}, false
	}
	rate, exists := mr.values[currency]
	return rate, exists
}

// HasMonth reports whether the month containing date has been loaded or
// fetched, even if it holds no currencies.
func (t *RateTable) HasMonth(date time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, exists := t.rates[MonthKey(date)]
	return exists
}

// Entries flattens the table into rows in iteration order: months in
// insertion order, currencies in insertion order within each month.
func (t *RateTable) Entries() []RateEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var entries []RateEntry
	for _, month := range t.months {
		mr := t.rates[month]
		for _, code := range mr.codes {
			entries = append(entries, RateEntry{
				Month:    month,
				Currency: code,
				Rate:     mr.values[code],
			})
		}
	}
	return entries
}

// Merge overlays seed data onto the table, overwriting any rates already
// present for the same (month, currency). Months and currencies are applied
// in sorted order so the resulting iteration order is deterministic.
func (t *RateTable) Merge(seed map[time.Time]map[string]decimal.Decimal) {
	if len(seed) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	months := make([]time.Time, 0, len(seed))
	for month := range seed {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	for _, month := range months {
		codes := make([]string, 0, len(seed[month]))
		for code := range seed[month] {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		key := MonthKey(month)
		for _, code := range codes {
			t.insertLocked(key, code, seed[month][code])
		}
	}
}

// Len returns the number of (month, currency) pairs in the table.
func (t *RateTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, mr := range t.rates {
		n += len(mr.values)
	}
	return n
}
