package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewCSVRateStore(filepath.Join(t.TempDir(), "does-not-exist.csv"), nil)

	table, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestLoadEmptyPath(t *testing.T) {
	s := NewCSVRateStore("", nil)

	table, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	// Save with no path is a no-op
	assert.NoError(t, s.Save(table))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	s := NewCSVRateStore(path, nil)

	table := entity.NewRateTable()
	march := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	june := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	table.Insert(march, "USD", decimal.RequireFromString("1.3783"))
	table.Insert(march, "EUR", decimal.RequireFromString("1.1601"))
	table.Insert(june, "CAD", decimal.RequireFromString("1.69"))

	require.NoError(t, s.Save(table))

	loaded, err := s.Load()
	require.NoError(t, err)

	entries := loaded.Entries()
	require.Len(t, entries, 3)

	// Same keys, same order, same decimal strings
	assert.Equal(t, march, entries[0].Month)
	assert.Equal(t, "USD", entries[0].Currency)
	assert.Equal(t, "1.3783", entries[0].Rate.String())
	assert.Equal(t, "EUR", entries[1].Currency)
	assert.Equal(t, "1.1601", entries[1].Rate.String())
	assert.Equal(t, june, entries[2].Month)
	assert.Equal(t, "CAD", entries[2].Currency)
	assert.Equal(t, "1.69", entries[2].Rate.String())
}

func TestSaveOverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	s := NewCSVRateStore(path, nil)

	table := entity.NewRateTable()
	month := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	table.Insert(month, "USD", decimal.RequireFromString("1.35"))
	require.NoError(t, s.Save(table))

	table.Insert(month, "USD", decimal.RequireFromString("1.36"))
	require.NoError(t, s.Save(table))

	loaded, err := s.Load()
	require.NoError(t, err)

	rate, ok := loaded.Rate(month, "USD")
	assert.True(t, ok)
	assert.Equal(t, "1.36", rate.String())
	assert.Equal(t, 1, loaded.Len())

	// No temp files left behind
	matches, err := filepath.Glob(path + ".tmp*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadHeaderTypo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	content := "month,currency,rat\n2021-03-01,USD,1.3783\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewCSVRateStore(path, nil)
	_, err := s.Load()

	var parseErr *entity.ParsingError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Source)
	assert.Contains(t, parseErr.Error(), "rat")
}

func TestLoadHeaderOrderInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	content := "currency,rate,month\nUSD,1.3783,2021-03-01\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewCSVRateStore(path, nil)
	table, err := s.Load()
	require.NoError(t, err)

	rate, ok := table.Rate(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), "USD")
	assert.True(t, ok)
	assert.Equal(t, "1.3783", rate.String())
}

func TestLoadRowMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	content := "month,currency,rate\n2021-03-01,USD\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewCSVRateStore(path, nil)
	_, err := s.Load()

	var parseErr *entity.ParsingError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Source)
	assert.Contains(t, parseErr.Error(), "USD")
}

func TestLoadBadMonth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	content := "month,currency,rate\nnot-a-date,USD,1.3783\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewCSVRateStore(path, nil)
	_, err := s.Load()

	var parseErr *entity.ParsingError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Source)
}

func TestLoadNonPositiveRate(t *testing.T) {
	for name, rate := range map[string]string{
		"zero":     "0",
		"negative": "-1.25",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rates.csv")
			content := "month,currency,rate\n2021-03-01,USD," + rate + "\n"
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			s := NewCSVRateStore(path, nil)
			_, err := s.Load()

			var parseErr *entity.ParsingError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, path, parseErr.Source)
			assert.Contains(t, parseErr.Error(), "positive")
			assert.Contains(t, parseErr.Error(), "USD")
		})
	}
}

func TestSavePreservesFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	require.NoError(t, os.WriteFile(path, []byte("month,currency,rate\n"), 0664))
	// WriteFile's mode is subject to the process umask; set the mode
	// explicitly so the test is umask-independent.
	require.NoError(t, os.Chmod(path, 0664))

	s := NewCSVRateStore(path, nil)

	table := entity.NewRateTable()
	table.Insert(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), "USD", decimal.RequireFromString("1.3783"))
	require.NoError(t, s.Save(table))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0664), info.Mode().Perm())
}

func TestSaveNewFileIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	s := NewCSVRateStore(path, nil)

	require.NoError(t, s.Save(entity.NewRateTable()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestLoadBadRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	content := "month,currency,rate\n2021-03-01,USD,abc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewCSVRateStore(path, nil)
	_, err := s.Load()

	var parseErr *entity.ParsingError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "abc")
}
