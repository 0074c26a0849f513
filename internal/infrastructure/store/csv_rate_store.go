// Package store internal/infrastructure/store/csv_rate_store.go
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
)

// exchangeRatesHeader is the fixed column set of the persisted file.
var exchangeRatesHeader = []string{"month", "currency", "rate"}

// CSVRateStore persists the rate table as a CSV file with the columns
// month, currency, rate. An empty path disables persistence: Load returns
// an empty table and Save is a no-op.
type CSVRateStore struct {
	path   string
	logger logger.Logger
}

// NewCSVRateStore creates a rate store backed by the CSV file at path.
func NewCSVRateStore(path string, log logger.Logger) *CSVRateStore {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &CSVRateStore{
		path:   path,
		logger: log,
	}
}

// Load reads the persisted table. A missing or non-regular file yields an
// empty table; a malformed header or row yields a ParsingError naming the
// file and the offending columns.
func (s *CSVRateStore) Load() (*entity.RateTable, error) {
	table := entity.NewRateTable()
	if s.path == "" {
		return table, nil
	}

	info, err := os.Stat(s.path)
	if err != nil || !info.Mode().IsRegular() {
		return table, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, entity.NewParsingError(s.path, "failed to open exchange rates file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, entity.NewParsingError(s.path, "failed to read exchange rates file", err)
	}
	if len(records) == 0 {
		return table, nil
	}

	columns, err := headerColumns(records[0])
	if err != nil {
		return nil, entity.NewParsingError(s.path, err.Error(), nil)
	}

	for _, record := range records[1:] {
		if len(record) != len(exchangeRatesHeader) {
			return nil, entity.NewParsingError(s.path,
				fmt.Sprintf("invalid columns %v, they should be %v", record, exchangeRatesHeader), nil)
		}

		month, err := time.Parse("2006-01-02", record[columns["month"]])
		if err != nil {
			return nil, entity.NewParsingError(s.path,
				fmt.Sprintf("invalid month %q", record[columns["month"]]), err)
		}

		rate, err := decimal.NewFromString(record[columns["rate"]])
		if err != nil {
			return nil, entity.NewParsingError(s.path,
				fmt.Sprintf("invalid rate %q", record[columns["rate"]]), err)
		}
		if !rate.IsPositive() {
			return nil, entity.NewParsingError(s.path,
				fmt.Sprintf("rate %q for %s in %s must be positive",
					record[columns["rate"]], record[columns["currency"]], record[columns["month"]]), nil)
		}

		table.Insert(month, record[columns["currency"]], rate)
	}

	s.logger.Debug("Loaded exchange rates file", map[string]interface{}{
		"path":    s.path,
		"entries": table.Len(),
	})

	return table, nil
}

// headerColumns validates the header as a set (order does not matter) and
// maps each expected column name to its position.
func headerColumns(header []string) (map[string]int, error) {
	got := make([]string, len(header))
	copy(got, header)
	sort.Strings(got)

	want := make([]string, len(exchangeRatesHeader))
	copy(want, exchangeRatesHeader)
	sort.Strings(want)

	if strings.Join(got, ",") != strings.Join(want, ",") {
		return nil, fmt.Errorf("invalid columns %v, they should be %v", header, exchangeRatesHeader)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	return columns, nil
}

// Save rewrites the persisted file with the full table, header first, rows
// in table iteration order. The write goes to a temp file in the same
// directory and is renamed over the target so a crash mid-write never
// leaves a truncated file behind.
func (s *CSVRateStore) Save(table *entity.RateTable) error {
	if s.path == "" {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp exchange rates file: %w", err)
	}
	tmpName := tmp.Name()

	// CreateTemp makes the file 0600; the rename would silently tighten the
	// permissions of a user-editable rates file. Carry the existing mode over,
	// or the usual default for a fresh file.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set temp exchange rates file permissions: %w", err)
	}

	writer := csv.NewWriter(tmp)
	if err := writer.Write(exchangeRatesHeader); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write exchange rates header: %w", err)
	}

	for _, e := range table.Entries() {
		record := []string{e.Month.Format("2006-01-02"), e.Currency, e.Rate.String()}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write exchange rates row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush exchange rates file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp exchange rates file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace exchange rates file: %w", err)
	}

	s.logger.Debug("Saved exchange rates file", map[string]interface{}{
		"path":    s.path,
		"entries": table.Len(),
	})

	return nil
}
