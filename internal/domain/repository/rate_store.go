// Package repository internal/domain/repository/rate_store.go
package repository

import (
	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
)

// RateStore persists the exchange-rate table between runs.
type RateStore interface {
	// Load reads the persisted table. A missing backing file yields an
	// empty table, not an error.
	Load() (*entity.RateTable, error)

	// Save rewrites the persisted table in full.
	Save(table *entity.RateTable) error
}
