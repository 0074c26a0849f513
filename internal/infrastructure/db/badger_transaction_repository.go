package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cgt-tools/hmrc-rate-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

// BadgerTransactionRepository implements the transaction repository interface using BadgerDB
type BadgerTransactionRepository struct {
	db *badger.DB
}

// NewBadgerTransactionRepository creates a new BadgerDB transaction repository
func NewBadgerTransactionRepository(db *badger.DB) *BadgerTransactionRepository {
	return &BadgerTransactionRepository{db: db}
}

// Store saves a transaction and returns its ID
func (r *BadgerTransactionRepository) Store(ctx context.Context, tx *entity.BrokerTransaction) (string, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("tx:"+tx.ID), data)
	})

	if err != nil {
		return "", fmt.Errorf("failed to store transaction: %w", err)
	}

	return tx.ID, nil
}

// FindByID retrieves a transaction by its unique identifier
func (r *BadgerTransactionRepository) FindByID(ctx context.Context, id string) (*entity.BrokerTransaction, error) {
	var tx entity.BrokerTransaction

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("tx:" + id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tx)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &entity.TransactionNotFoundError{ID: id}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to retrieve transaction: %w", err)
	}

	return &tx, nil
}
