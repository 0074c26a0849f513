package service

import (
	"context"
	"strings"
	"time"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/cgt-tools/hmrc-rate-service/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionService handles business logic for broker transactions
type TransactionService struct {
	repo repository.TransactionRepository
}

// NewTransactionService creates a new transaction service
func NewTransactionService(repo repository.TransactionRepository) *TransactionService {
	return &TransactionService{repo: repo}
}

// CreateTransaction creates and stores a new broker transaction
func (s *TransactionService) CreateTransaction(ctx context.Context, desc string, date time.Time, amount decimal.Decimal, currency string) (string, error) {
	tx := &entity.BrokerTransaction{
		ID:          uuid.New().String(),
		Description: desc,
		Date:        date,
		Amount:      amount,
		Currency:    strings.ToUpper(currency),
	}

	if err := tx.Validate(); err != nil {
		return "", err
	}

	return s.repo.Store(ctx, tx)
}

// GetTransaction retrieves a transaction by ID
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*entity.BrokerTransaction, error) {
	return s.repo.FindByID(ctx, id)
}
