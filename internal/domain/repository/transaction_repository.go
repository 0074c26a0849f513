package repository

import (
	"context"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
)

// TransactionRepository defines the interface for broker transaction storage
type TransactionRepository interface {
	// Store saves a transaction and returns its ID
	Store(ctx context.Context, transaction *entity.BrokerTransaction) (string, error)

	// FindByID retrieves a transaction by its unique identifier
	FindByID(ctx context.Context, id string) (*entity.BrokerTransaction, error)
}
